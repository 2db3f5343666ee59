// Package searchterm は永続化された検索語（単一スカラー値）を提供する。
// キーバリューストアに1つの文字列を保存し、ストアが利用できない場合は
// メモリ上のみで動作を継続する。
package searchterm

import (
	"context"
	"errors"
	"log/slog"
)

// KVStore は永続キーバリューストアのインターフェース。
type KVStore interface {
	// Get はキーの値を返す。存在しない場合はfound=falseを返す。
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set はキーに値を保存する。
	Set(ctx context.Context, key, value string) error
}

// Binding はキーに紐づく検索語を保持し、変更のたびに永続化する。
// 単一の制御ゴルーチンからのみ操作すること。
type Binding struct {
	store    KVStore
	key      string
	value    string
	degraded bool
	// unsaved は直前の書き込みがctxの終了で中断され、valueが未保存であることを示す
	unsaved bool
	logger  *slog.Logger
}

// NewBinding はストアから値を読み込みBindingを生成する。
// 値が存在しない場合はdefaultValueを使用し、その値をストアに書き込む。
// 読み込みに失敗した場合はdefaultValueでメモリのみのモードに切り替える。
func NewBinding(ctx context.Context, store KVStore, key, defaultValue string, logger *slog.Logger) *Binding {
	b := &Binding{
		store:  store,
		key:    key,
		value:  defaultValue,
		logger: logger,
	}

	if store == nil {
		b.degraded = true
		return b
	}

	v, found, err := store.Get(ctx, key)
	if err != nil {
		b.fail("検索語の読み込みに失敗しました", err)
		return b
	}
	if found {
		b.value = v
		return b
	}
	b.persist(ctx)
	return b
}

// Value は現在の値を返す。
func (b *Binding) Value() string {
	return b.value
}

// Degraded は永続化を停止しメモリのみで動作しているかを返す。
func (b *Binding) Degraded() bool {
	return b.degraded
}

// Set は値を更新し、変更があれば同期的に永続化する。
// 永続化の失敗は呼び出し元に返さず、メモリのみのモードに切り替える。
// ctxの終了による失敗ではモードを切り替えず、次のSetで再度書き込む。
func (b *Binding) Set(ctx context.Context, value string) {
	if value == b.value && !b.unsaved {
		return
	}
	b.value = value
	b.persist(ctx)
}

func (b *Binding) persist(ctx context.Context) {
	if b.degraded {
		return
	}
	if err := b.store.Set(ctx, b.key, b.value); err != nil {
		b.fail("検索語の保存に失敗しました", err)
		return
	}
	b.unsaved = false
}

// fail はストアの失敗を記録する。ctxの終了が原因の場合は永続化を続ける。
func (b *Binding) fail(msg string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		b.unsaved = true
		b.logger.Warn(msg,
			slog.String("key", b.key),
			slog.String("error", err.Error()),
			slog.Bool("retry_on_next_set", true),
		)
		return
	}

	b.degraded = true
	b.logger.Warn(msg,
		slog.String("key", b.key),
		slog.String("error", err.Error()),
	)
}
