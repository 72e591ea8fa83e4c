package social

import "net/url"

// PersistedSocialMap はプラットフォームから保存済み識別子への対応を挿入順で保持する。
// ゼロ値は空のマップとして使える。
type PersistedSocialMap struct {
	keys   []Platform
	values map[Platform]string
}

// NewPersistedSocialMap は空のPersistedSocialMapを生成する。
func NewPersistedSocialMap() *PersistedSocialMap {
	return &PersistedSocialMap{values: make(map[Platform]string)}
}

// Set は識別子を登録する。既存のキーは位置を保ったまま値のみ更新する。
func (m *PersistedSocialMap) Set(p Platform, identifier string) {
	if m.values == nil {
		m.values = make(map[Platform]string)
	}
	if _, ok := m.values[p]; !ok {
		m.keys = append(m.keys, p)
	}
	m.values[p] = identifier
}

// Get は識別子を返す。
func (m *PersistedSocialMap) Get(p Platform) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[p]
	return v, ok
}

// Len は登録件数を返す。
func (m *PersistedSocialMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys は挿入順のキー一覧を返す。
func (m *PersistedSocialMap) Keys() []Platform {
	if m == nil {
		return nil
	}
	out := make([]Platform, len(m.keys))
	copy(out, m.keys)
	return out
}

// SerializePersistedSocialItems は保存済みの対応表を挿入順の{platform, username}列に変換する。
// 空のマップ（nilを含む）は空スライスを返す。
func SerializePersistedSocialItems(m *PersistedSocialMap) []SocialItem {
	items := make([]SocialItem, 0, m.Len())
	for _, p := range m.Keys() {
		items = append(items, SocialItem{Platform: p, Username: m.values[p]})
	}
	return items
}

// FormFieldName は編集フォームでのプラットフォームの入力フィールド名を返す。
func FormFieldName(p Platform) string {
	return "social_" + string(p)
}

// ParseSocialForm は編集フォームの入力を保存用の対応表に変換する。
// 対応プラットフォームの表示順に走査し、空の入力は除外する。
func ParseSocialForm(form url.Values) *PersistedSocialMap {
	m := NewPersistedSocialMap()
	for _, p := range platformOrder {
		v := normalizeUsername(form.Get(FormFieldName(p)))
		if v == "" {
			continue
		}
		m.Set(p, v)
	}
	return m
}
