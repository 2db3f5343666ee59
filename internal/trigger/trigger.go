// Package trigger はリクエストURLの変更検知と購読を提供する。
// 値が前回と異なる場合にのみ、確定後に購読者を1回ずつ呼び出す。
package trigger

import "net/url"

// ComposeURL はエンドポイントと確定済み検索語からリクエストURLを組み立てる。
// 検索語はクエリ文字列としてエンコードする。
func ComposeURL(endpoint, term string) string {
	return endpoint + url.QueryEscape(term)
}

// Subscriber は値の変更時に新しい値で呼び出される。
type Subscriber func(value string)

// Value は現在のリクエストURLを保持する。
// 単一の制御ゴルーチンからのみ操作すること。
type Value struct {
	current     string
	set         bool
	subscribers []Subscriber
}

// New は未設定のValueを生成する。最初のSetは必ず変更として扱われる。
func New() *Value {
	return &Value{}
}

// Get は現在の値を返す。
func (v *Value) Get() string {
	return v.current
}

// Subscribe は変更通知の購読者を登録する。
func (v *Value) Subscribe(s Subscriber) {
	v.subscribers = append(v.subscribers, s)
}

// Set は値を更新し、前回と異なる場合は購読者へ通知する。
// 通知した場合はtrueを返す。
func (v *Value) Set(value string) bool {
	if v.set && v.current == value {
		return false
	}
	v.current = value
	v.set = true

	for _, s := range v.subscribers {
		s(value)
	}
	return true
}
