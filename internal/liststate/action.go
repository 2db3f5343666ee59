// Package liststate はストーリー一覧リソースの状態遷移（リデューサ）を提供する。
// 非同期フェッチのライフサイクル（idle → loading → success/failure）と
// 項目削除を1つの状態に畳み込む。
package liststate

import (
	"fmt"

	"github.com/hitoshi/hnsearch/internal/model"
)

// ActionKind はアクション種別を表す。ログとメトリクスのラベルに使用する。
type ActionKind string

const (
	KindFetchInit    ActionKind = "fetch_init"
	KindFetchSuccess ActionKind = "fetch_success"
	KindFetchFailure ActionKind = "fetch_failure"
	KindRemoveItem   ActionKind = "remove_item"
)

// Action はリデューサに渡すアクション。
// 非公開メソッドにより本パッケージ外での実装を禁止し、閉じた直和型として扱う。
type Action interface {
	Kind() ActionKind
	isAction()
}

// FetchInit はフェッチ開始を表す。
type FetchInit struct{}

// FetchSuccess はフェッチ成功を表す。Itemsで一覧を丸ごと置き換える。
type FetchSuccess struct {
	Items []model.Story
}

// FetchFailure はフェッチ失敗を表す。
type FetchFailure struct{}

// RemoveItem は指定objectIDの項目削除を表す。
type RemoveItem struct {
	ObjectID int
}

func (FetchInit) Kind() ActionKind    { return KindFetchInit }
func (FetchSuccess) Kind() ActionKind { return KindFetchSuccess }
func (FetchFailure) Kind() ActionKind { return KindFetchFailure }
func (RemoveItem) Kind() ActionKind   { return KindRemoveItem }

func (FetchInit) isAction()    {}
func (FetchSuccess) isAction() {}
func (FetchFailure) isAction() {}
func (RemoveItem) isAction()   {}

// UnknownActionError は未知のアクションがリデューサに渡されたことを表す。
// プログラミングエラーであり、Reduceはこの値でpanicする。
type UnknownActionError struct {
	Action Action
}

// Error はerrorインターフェースを実装する。
func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("liststate: unknown action %T", e.Action)
}
