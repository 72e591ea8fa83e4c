// Command linkpage はプロフィールリンクページのWebサーバーとワーカーを起動する。
//
// 使い方:
//
//	linkpage [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/linkpage/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "linkpage: %v\n", err)
		os.Exit(1)
	}
}
