// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// User はサービス利用ユーザーを表す。
type User struct {
	ID        string
	Email     string
	Name      string
	Metadata  UserMetadata
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
	LastLoginAt    *time.Time // 未ログインの間はnil
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Role はユーザーの権限区分。
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// UserMetadata はusers.metadataに保存されるユーザー付帯情報。
// 永続化層では不透明なJSONとして扱い、ParseUserMetadataで境界検証する。
type UserMetadata struct {
	OnboardingComplete bool
	Role               Role
}

// rawUserMetadata はmetadata JSONのワイヤ形式。
// 型不一致を検出するため、値はjson.RawMessageで受ける。
type rawUserMetadata struct {
	OnboardingComplete json.RawMessage `json:"onboardingComplete"`
	Role               json.RawMessage `json:"role"`
}

// ParseUserMetadata はmetadata JSONを検証してUserMetadataに変換する。
// onboardingCompleteが欠落・非booleanの場合、またはJSON自体が壊れている場合はfalseとする。
// roleが未知または欠落の場合はRoleUserとする。
func ParseUserMetadata(raw []byte) UserMetadata {
	meta := UserMetadata{Role: RoleUser}
	if len(raw) == 0 {
		return meta
	}

	var wire rawUserMetadata
	if err := json.Unmarshal(raw, &wire); err != nil {
		return meta
	}

	var complete bool
	if err := json.Unmarshal(wire.OnboardingComplete, &complete); err == nil {
		meta.OnboardingComplete = complete
	}

	var role string
	if err := json.Unmarshal(wire.Role, &role); err == nil && Role(role) == RoleAdmin {
		meta.Role = RoleAdmin
	}

	return meta
}

// MarshalJSON はUserMetadataを永続化用のJSONに変換する。
func (m UserMetadata) MarshalJSON() ([]byte, error) {
	role := m.Role
	if role != RoleAdmin {
		role = RoleUser
	}
	return json.Marshal(struct {
		OnboardingComplete bool `json:"onboardingComplete"`
		Role               Role `json:"role"`
	}{
		OnboardingComplete: m.OnboardingComplete,
		Role:               role,
	})
}

// SessionState はリクエスト単位で解決されたセッションの状態を表す。
// 未ログインのリクエストではnilとして扱う。
type SessionState struct {
	SessionID string
	User      *User
}

// UserID はセッションのユーザーIDを返す。nilレシーバでは空文字列を返す。
func (s *SessionState) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}
