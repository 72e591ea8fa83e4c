// Package auth はOIDC認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/linkpage/internal/model"
	"github.com/hitoshi/linkpage/internal/repository"
)

// OAuthUserInfo はIdPから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google" 等
}

// OAuthProvider は認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はstateとnonceを埋め込んだ認可URLを生成する。
	GetLoginURL(state, nonce string) string
	// ExchangeCode は認可コードをトークンに交換し、nonceを検証してユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code, nonce string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		config:      config,
		now:         time.Now,
	}
}

// GetLoginURL は認可URLを生成する。
func (s *Service) GetLoginURL(state, nonce string) string {
	return s.oauth.GetLoginURL(state, nonce)
}

// HandleCallback は認可コールバックを処理し、セッションを発行する。
// 未登録ユーザーの場合はオンボーディング未完了のmetadataでusersとidentitiesを同時に作成する。
func (s *Service) HandleCallback(ctx context.Context, code, nonce string) (*model.Session, error) {
	userInfo, err := s.oauth.ExchangeCode(ctx, code, nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	now := s.now()
	var userID string
	if identity != nil {
		userID = identity.UserID
		// 最終ログイン日時は参考情報のため、更新失敗でログインを止めない
		if _, err := s.identRepo.RecordLogin(ctx, identity.ID, now); err != nil {
			slog.WarnContext(ctx, "failed to record login",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		slog.InfoContext(ctx, "existing user logged in",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	} else {
		newUser := &model.User{
			ID:    uuid.New().String(),
			Email: userInfo.Email,
			Name:  userInfo.Name,
			Metadata: model.UserMetadata{
				OnboardingComplete: false,
				Role:               model.RoleUser,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		newIdentity := &model.Identity{
			ID:             uuid.New().String(),
			UserID:         newUser.ID,
			Provider:       userInfo.Provider,
			ProviderUserID: userInfo.ProviderUserID,
			CreatedAt:      now,
			LastLoginAt:    &now,
		}

		if err := s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity); err != nil {
			return nil, fmt.Errorf("failed to create user and identity: %w", err)
		}

		userID = newUser.ID
		slog.InfoContext(ctx, "new user created",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	}

	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.InfoContext(ctx, "user logged out")
	return nil
}

// CurrentState はセッションIDから現在のセッション状態を解決する。
// セッションが存在しない、期限切れ、またはユーザーが削除済みの場合はnil, nilを返す。
func (s *Service) CurrentState(ctx context.Context, sessionID string) (*model.SessionState, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	return &model.SessionState{SessionID: session.ID, User: user}, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
