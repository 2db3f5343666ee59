// Package repository は検索語の永続化を担うキーバリューストア実装を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/hnsearch/internal/searchterm"
)

// KVRepository は文字列キーバリューの永続化インターフェース。
// searchterm.KVStoreと同じ契約を持つ。
type KVRepository interface {
	// Get はキーの値を返す。見つからない場合はfound=falseを返す。
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set はキーに値を保存する。既存の値は上書きする。
	Set(ctx context.Context, key, value string) error
}

var _ searchterm.KVStore = (KVRepository)(nil)
