package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCConfig はOIDCプロバイダーの設定。
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	HTTPClient   *http.Client // 省略時はタイムアウト付きのクライアント
}

// OIDCProvider はOpenID Connectの認可コードフローによる認証を提供する。
// IDトークンの署名、発行者、audience、nonceを検証したうえでユーザー情報を返す。
type OIDCProvider struct {
	oauth      *oauth2.Config
	verifier   *gooidc.IDTokenVerifier
	provider   string
	httpClient *http.Client
}

// NewOIDCProvider はディスカバリーを行いOIDCProviderを生成する。
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig) (*OIDCProvider, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	ctx = gooidc.ClientContext(ctx, httpClient)
	op, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: %w", err)
	}

	return newOIDCProvider(cfg, op.Endpoint(), op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}), httpClient), nil
}

func newOIDCProvider(cfg OIDCConfig, endpoint oauth2.Endpoint, verifier *gooidc.IDTokenVerifier, httpClient *http.Client) *OIDCProvider {
	return &OIDCProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{gooidc.ScopeOpenID, "email", "profile"},
		},
		verifier:   verifier,
		provider:   providerName(cfg.IssuerURL),
		httpClient: httpClient,
	}
}

// providerName はidentities.providerに保存するIdP名を発行者URLから決める。
func providerName(issuerURL string) string {
	u, err := url.Parse(issuerURL)
	if err != nil || u.Host == "" {
		return "oidc"
	}
	if u.Host == "accounts.google.com" {
		return "google"
	}
	return u.Host
}

// GetLoginURL は認可エンドポイントへのURLを生成する。
func (p *OIDCProvider) GetLoginURL(state, nonce string) string {
	return p.oauth.AuthCodeURL(state,
		gooidc.Nonce(nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// idTokenClaims はIDトークンから読み取るクレーム。
type idTokenClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
	Nonce         string `json:"nonce"`
}

// ExchangeCode は認可コードをトークンに交換し、IDトークンを検証してユーザー情報を返す。
func (p *OIDCProvider) ExchangeCode(ctx context.Context, code, nonce string) (*OAuthUserInfo, error) {
	if code == "" {
		return nil, errors.New("authorization code is required")
	}
	if nonce == "" {
		return nil, errors.New("nonce is required")
	}

	ctx = gooidc.ClientContext(ctx, p.httpClient)
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("id_token missing from token response")
	}

	return p.verifyIDToken(ctx, rawIDToken, nonce)
}

func (p *OIDCProvider) verifyIDToken(ctx context.Context, rawIDToken, nonce string) (*OAuthUserInfo, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id_token: %w", err)
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse id_token claims: %w", err)
	}
	if claims.Nonce != nonce {
		return nil, errors.New("id_token nonce mismatch")
	}
	if claims.Subject == "" {
		return nil, errors.New("empty sub in id_token")
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, errors.New("email address is not verified")
	}

	name := claims.Name
	if name == "" {
		name = claims.Email
	}

	return &OAuthUserInfo{
		ProviderUserID: claims.Subject,
		Email:          claims.Email,
		Name:           name,
		Provider:       p.provider,
	}, nil
}

// NewRandomToken はstateやnonceに使うURLセーフなランダム文字列を生成する。
func NewRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// compile-time interface check
var _ OAuthProvider = (*OIDCProvider)(nil)
