package security

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/hitoshi/linkpage/internal/model"
)

// ImageProber はプロフィール画像URLが実際に画像を返すかを確認する。
type ImageProber interface {
	// Probe はURLにHEADリクエストを送り、2xxかつContent-Typeがimage/*であることを確認する。
	// 条件を満たさない場合はIMAGE_REJECTEDのAppErrorを返す。
	Probe(ctx context.Context, rawURL string) error
}

// httpImageProber はHTTPクライアントを使ったImageProberの実装。
// 本番ではURLGuard.NewSafeClientのクライアントを渡す。
type httpImageProber struct {
	client *http.Client
}

// NewImageProber はImageProberを生成する。
func NewImageProber(client *http.Client) *httpImageProber {
	return &httpImageProber{client: client}
}

// Probe はURLが画像を返すかを確認する。
func (p *httpImageProber) Probe(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return model.NewImageRejectedError("URLを解釈できません")
	}
	req.Header.Set("Accept", "image/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return model.NewImageRejectedError("画像を取得できませんでした")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.NewImageRejectedError(fmt.Sprintf("ステータス %d が返されました", resp.StatusCode))
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return model.NewImageRejectedError("画像ファイルではありません")
	}
	// SVGはスクリプトを含みうる
	if mediaType == "image/svg+xml" {
		return model.NewImageRejectedError("SVG画像は使用できません")
	}

	return nil
}

// compile-time interface check
var _ ImageProber = (*httpImageProber)(nil)
