// Package seo は公開ページに埋め込む構造化データ（JSON-LD）を生成する。
package seo

import (
	"bytes"
	"encoding/json"
	"html/template"
	"strings"

	"github.com/hitoshi/linkpage/internal/model"
)

type person struct {
	Type        string   `json:"@type"`
	Name        string   `json:"name"`
	Identifier  string   `json:"identifier"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image,omitempty"`
	SameAs      []string `json:"sameAs,omitempty"`
}

type profilePage struct {
	Context    string `json:"@context"`
	Type       string `json:"@type"`
	URL        string `json:"url"`
	MainEntity person `json:"mainEntity"`
}

// BuildProfileJSONLD はページのschema.org ProfilePageをJSON-LDとして返す。
// 戻り値は<script type="application/ld+json">内にそのまま出力できる。
func BuildProfileJSONLD(page *model.Page, baseURL string, sameAs []string) template.JS {
	if page == nil {
		return ""
	}
	doc := profilePage{
		Context: "https://schema.org",
		Type:    "ProfilePage",
		URL:     strings.TrimSuffix(baseURL, "/") + "/" + page.Handle,
		MainEntity: person{
			Type:        "Person",
			Name:        page.Title,
			Identifier:  page.Handle,
			Description: page.Bio,
			Image:       page.ImageURL,
			SameAs:      sameAs,
		},
	}
	return EscapeJSONLD(doc)
}

// EscapeJSONLD は値をJSONに変換し、<script>要素を閉じられないよう
// <, >, &, U+2028, U+2029 を\uエスケープする。変換できない値は空文字列を返す。
func EscapeJSONLD(v any) template.JS {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	out := strings.TrimSuffix(buf.String(), "\n")
	// 行区切り文字はscript内のJavaScript文字列を終端させうる
	out = strings.NewReplacer("\u2028", `\u2028`, "\u2029", `\u2029`).Replace(out)
	return template.JS(out)
}
