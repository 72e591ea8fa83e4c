package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"

	"github.com/hitoshi/linkpage/internal/model"
)

// URLGuard は利用者が入力した外部URLの検証と、外部取得用の安全なHTTPクライアントを提供する。
// リンクアイテムの登録とプロフィール画像の検証で使用される。
type URLGuard interface {
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// safeurlライブラリにより、プライベートIP、ループバック、リンクローカル、
	// メタデータIPへのリクエストが自動的にブロックされる。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はリンク先URLを静的に検証する。http/httpsのみ許可する。
	// 不正な場合はINVALID_URLのAppErrorを返す。
	ValidateURL(rawURL string) error

	// ValidateImageURL は画像URLを静的に検証する。httpsのみ許可する。
	ValidateImageURL(rawURL string) error
}

// maxURLLength は保存を受け付けるURLの最大長。
const maxURLLength = 2048

// allowedSchemes はSSRF防止で許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks はブロックされるネットワーク範囲。
// パッケージ初期化時に1回だけパースする。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927) - クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		// カレントネットワーク
		"0.0.0.0/8",
		// IPv6ループバック
		"::1/128",
		// IPv6リンクローカル
		"fe80::/10",
		// IPv6ユニークローカル
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// urlGuard はURLGuardの実装。
type urlGuard struct{}

// NewURLGuard はURLGuardの新しいインスタンスを生成する。
func NewURLGuard() *urlGuard {
	return &urlGuard{}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlのデフォルト設定により以下がブロックされる:
//   - プライベートIPアドレス (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16)
//   - ループバックアドレス (127.0.0.0/8, ::1)
//   - リンクローカルアドレス (169.254.0.0/16, fe80::/10)
//   - メタデータIPアドレス (169.254.169.254)
//
// safeurlはnet.DialerのControlフックでDNS解決後のIPアドレスを検証するため、
// DNS再バインディング攻撃にも対応している。
func (g *urlGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	wrappedClient := safeurl.Client(config)
	return wrappedClient.Client
}

// ValidateURL はリンク先URLを静的に検証する。
// DNS解決を伴わないため、DNS再バインディングはNewSafeClient側で防止される。
func (g *urlGuard) ValidateURL(rawURL string) error {
	return validateURL(rawURL, allowedSchemes)
}

// ValidateImageURL は画像URLを静的に検証する。
func (g *urlGuard) ValidateImageURL(rawURL string) error {
	return validateURL(rawURL, []string{"https"})
}

func validateURL(rawURL string, schemes []string) error {
	if strings.TrimSpace(rawURL) == "" {
		return model.NewInvalidURLError("URLが空です")
	}
	if len(rawURL) > maxURLLength {
		return model.NewInvalidURLError("URLが長すぎます")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return model.NewInvalidURLError("URLを解釈できません")
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !containsFold(schemes, scheme) {
		return model.NewInvalidURLError(fmt.Sprintf("%s以外のURLは使用できません", strings.Join(schemes, "/")))
	}
	if parsed.User != nil {
		return model.NewInvalidURLError("認証情報を含むURLは使用できません")
	}

	host := parsed.Hostname()
	if host == "" {
		return model.NewInvalidURLError("ホスト名がありません")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return model.NewInvalidURLError("内部ネットワークのアドレスは使用できません")
		}
		return nil
	}

	if isBlockedHostname(host) {
		return model.NewInvalidURLError("内部ネットワークのアドレスは使用できません")
	}

	return nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// isBlockedHostname はlocalhostおよびそのサブドメインを拒否する。
func isBlockedHostname(host string) bool {
	lower := strings.TrimSuffix(strings.ToLower(host), ".")
	return lower == "localhost" || strings.HasSuffix(lower, ".localhost")
}

// compile-time interface check
var _ URLGuard = (*urlGuard)(nil)
