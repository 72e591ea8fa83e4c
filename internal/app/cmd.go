package app

import (
	"fmt"
	"sort"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	CommandServe   Command = "serve"
	CommandWorker  Command = "worker"
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はdistrolessイメージのDocker HEALTHCHECKから呼ばれる。
	CommandHealthcheck Command = "healthcheck"
)

// MigrateAction はmigrateサブコマンドの操作。
type MigrateAction string

const (
	MigrateUp      MigrateAction = "up"
	MigrateDown    MigrateAction = "down"
	MigrateVersion MigrateAction = "version"
)

var knownCommands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// Invocation は解析済みのコマンドライン。
type Invocation struct {
	Command Command
	Migrate MigrateAction
}

// ParseCommand はos.Args[1:]からサブコマンドを解析する。
// 引数が空ならserveとみなす。未知のサブコマンドはエラーにする。
func ParseCommand(args []string) (Invocation, error) {
	if len(args) == 0 || args[0] == "" {
		return Invocation{Command: CommandServe}, nil
	}

	cmd, ok := knownCommands[args[0]]
	if !ok {
		return Invocation{}, fmt.Errorf("unknown command %q (available: %s)", args[0], availableCommands())
	}
	inv := Invocation{Command: cmd}

	if cmd == CommandMigrate {
		inv.Migrate = MigrateUp
		if len(args) > 1 {
			switch action := MigrateAction(args[1]); action {
			case MigrateUp, MigrateDown, MigrateVersion:
				inv.Migrate = action
			default:
				return Invocation{}, fmt.Errorf("unknown migrate action %q (available: up, down, version)", args[1])
			}
		}
	}
	return inv, nil
}

func availableCommands() string {
	names := make([]string, 0, len(knownCommands))
	for name := range knownCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
