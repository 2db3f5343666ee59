package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は検索APIが返すタイトル・著者名からHTMLを除去し、プレーンテキストにする。
// 検索APIはハイライト用の<em>タグなどを含むことがある。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はすべてのタグを除去するポリシーでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、bluemondayがエスケープした実体参照を元に戻す。
// 前後の空白は取り除く。
func (s *TextSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
