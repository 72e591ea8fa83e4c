package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testIssuer   = "https://idp.example.com"
	testClientID = "client-1"
)

// signIDToken はテスト用のRS256署名付きIDトークンを生成する。
func signIDToken(t *testing.T, key *rsa.PrivateKey, claims map[string]any) string {
	t.Helper()

	header, err := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT", "kid": "test"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	signingInput := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(payload)
	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func baseClaims(nonce string) map[string]any {
	now := time.Now()
	return map[string]any{
		"iss":            testIssuer,
		"aud":            testClientID,
		"sub":            "sub-123",
		"email":          "alice@example.com",
		"email_verified": true,
		"name":           "Alice",
		"nonce":          nonce,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func newTestProvider(t *testing.T, tokenURL string) (*OIDCProvider, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keySet := &gooidc.StaticKeySet{PublicKeys: []crypto.PublicKey{key.Public()}}
	verifier := gooidc.NewVerifier(testIssuer, keySet, &gooidc.Config{ClientID: testClientID})

	cfg := OIDCConfig{
		IssuerURL:    testIssuer,
		ClientID:     testClientID,
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
	}
	endpoint := oauth2.Endpoint{AuthURL: testIssuer + "/auth", TokenURL: tokenURL}
	return newOIDCProvider(cfg, endpoint, verifier, http.DefaultClient), key
}

func TestOIDCProvider_GetLoginURL_ContainsRequiredParams(t *testing.T) {
	p, _ := newTestProvider(t, testIssuer+"/token")

	raw := p.GetLoginURL("state-1", "nonce-1")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "nonce-1", q.Get("nonce"))
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Contains(t, q.Get("scope"), "openid")
	assert.Contains(t, q.Get("scope"), "email")
}

func TestOIDCProvider_VerifyIDToken(t *testing.T) {
	p, key := newTestProvider(t, testIssuer+"/token")
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(c map[string]any)
		nonce   string
		wantErr bool
	}{
		{name: "正常", mutate: func(c map[string]any) {}, nonce: "n1"},
		{name: "nonce不一致", mutate: func(c map[string]any) {}, nonce: "other", wantErr: true},
		{name: "audience不一致", mutate: func(c map[string]any) { c["aud"] = "someone-else" }, nonce: "n1", wantErr: true},
		{name: "期限切れ", mutate: func(c map[string]any) { c["exp"] = time.Now().Add(-time.Hour).Unix() }, nonce: "n1", wantErr: true},
		{name: "メール未検証", mutate: func(c map[string]any) { c["email_verified"] = false }, nonce: "n1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := baseClaims("n1")
			tt.mutate(claims)
			info, err := p.verifyIDToken(ctx, signIDToken(t, key, claims), tt.nonce)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "sub-123", info.ProviderUserID)
			assert.Equal(t, "alice@example.com", info.Email)
			assert.Equal(t, "Alice", info.Name)
			assert.Equal(t, "idp.example.com", info.Provider)
		})
	}
}

func TestOIDCProvider_VerifyIDToken_ForeignKeyRejected(t *testing.T) {
	p, _ := newTestProvider(t, testIssuer+"/token")
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	_, err = p.verifyIDToken(context.Background(), signIDToken(t, otherKey, baseClaims("n1")), "n1")
	assert.Error(t, err)
}

func TestOIDCProvider_ExchangeCode_Success(t *testing.T) {
	var key *rsa.PrivateKey
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "auth-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     signIDToken(t, key, baseClaims("nonce-1")),
		})
	}))
	defer tokenServer.Close()

	p, k := newTestProvider(t, tokenServer.URL)
	key = k

	info, err := p.ExchangeCode(context.Background(), "auth-code", "nonce-1")
	require.NoError(t, err)
	assert.Equal(t, "sub-123", info.ProviderUserID)
}

func TestOIDCProvider_ExchangeCode_MissingIDToken(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "access", "token_type": "Bearer"})
	}))
	defer tokenServer.Close()

	p, _ := newTestProvider(t, tokenServer.URL)

	_, err := p.ExchangeCode(context.Background(), "auth-code", "nonce-1")
	assert.ErrorContains(t, err, "id_token missing")
}

func TestOIDCProvider_ExchangeCode_RequiresCodeAndNonce(t *testing.T) {
	p, _ := newTestProvider(t, testIssuer+"/token")

	_, err := p.ExchangeCode(context.Background(), "", "n")
	assert.Error(t, err)
	_, err = p.ExchangeCode(context.Background(), "c", "")
	assert.Error(t, err)
}

func TestNewOIDCProvider_Discovery(t *testing.T) {
	var issuer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 issuer,
			"authorization_endpoint": issuer + "/auth",
			"token_endpoint":         issuer + "/token",
			"jwks_uri":               issuer + "/jwks",
		})
	}))
	defer server.Close()
	issuer = server.URL

	p, err := NewOIDCProvider(context.Background(), OIDCConfig{
		IssuerURL:   issuer,
		ClientID:    testClientID,
		RedirectURL: "http://localhost:8080/auth/callback",
	})
	require.NoError(t, err)
	assert.Equal(t, issuer+"/token", p.oauth.Endpoint.TokenURL)
}

func TestNewOIDCProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config OIDCConfig
		errMsg string
	}{
		{"発行者なし", OIDCConfig{ClientID: "c", RedirectURL: "r"}, "issuer URL is required"},
		{"クライアントIDなし", OIDCConfig{IssuerURL: "https://x", RedirectURL: "r"}, "client ID is required"},
		{"リダイレクトURLなし", OIDCConfig{IssuerURL: "https://x", ClientID: "c"}, "redirect URL is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOIDCProvider(context.Background(), tt.config)
			assert.EqualError(t, err, tt.errMsg)
		})
	}
}

func TestProviderName(t *testing.T) {
	assert.Equal(t, "google", providerName("https://accounts.google.com"))
	assert.Equal(t, "login.example.com", providerName("https://login.example.com/realms/main"))
	assert.Equal(t, "oidc", providerName("::"))
}

func TestNewRandomToken_UniqueAndURLSafe(t *testing.T) {
	a, err := NewRandomToken()
	require.NoError(t, err)
	b, err := NewRandomToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "/")
}
