// Package view は検索ビュー（1コンポーネント分の状態）を提供する。
// 下書き、確定済み検索語、リクエストURL、リスト状態を単一の制御ゴルーチンで管理する。
package view

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hitoshi/hnsearch/internal/liststate"
	"github.com/hitoshi/hnsearch/internal/metrics"
	"github.com/hitoshi/hnsearch/internal/model"
	"github.com/hitoshi/hnsearch/internal/searchterm"
	"github.com/hitoshi/hnsearch/internal/trigger"
	"github.com/hitoshi/hnsearch/internal/worker/fetch"
)

// CommitMode は下書きを確定するタイミングを表す。
type CommitMode string

const (
	// CommitOnSubmit は明示的なSubmitでのみ確定する。
	CommitOnSubmit CommitMode = "submit"
	// CommitOnKeystroke は下書きの更新ごとに確定する。
	CommitOnKeystroke CommitMode = "keystroke"
)

// Options はビューの設定。
type Options struct {
	Endpoint    string
	StorageKey  string
	DefaultTerm string
	CommitMode  CommitMode
}

// Snapshot はある時点のビューの状態。
type Snapshot struct {
	Items      []model.Story `json:"items"`
	IsLoading  bool          `json:"is_loading"`
	IsError    bool          `json:"is_error"`
	SearchTerm string        `json:"search_term"`
	Draft      string        `json:"draft"`
	RequestURL string        `json:"request_url"`
}

// View は1つの検索ビュー。
// 公開メソッドは任意のゴルーチンから呼び出せる。内部状態は制御ゴルーチンのみが触る。
type View struct {
	opts    Options
	kv      searchterm.KVStore
	logger  *slog.Logger
	metrics metrics.MetricsCollector

	loop      *Loop
	store     *liststate.Store
	trigger   *trigger.Value
	scheduler *fetch.Scheduler

	// 以下は制御ゴルーチンのみが操作する
	binding *searchterm.Binding
	draft   string
	waiters []chan struct{}

	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
}

// New はビューを生成する。マウントはStartで行う。
// kvがnilの場合、検索語はメモリ上のみで保持される。
func New(
	kv searchterm.KVStore,
	fetcher fetch.StoryFetcher,
	opts Options,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *View {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if opts.CommitMode == "" {
		opts.CommitMode = CommitOnSubmit
	}

	ctx, cancel := context.WithCancel(context.Background())
	v := &View{
		opts:    opts,
		kv:      kv,
		logger:  logger,
		metrics: collector,
		loop:    NewLoop(64),
		store:   liststate.NewStore(),
		trigger: trigger.New(),
		ctx:     ctx,
		cancel:  cancel,
	}
	v.scheduler = fetch.NewScheduler(fetcher, v.store, v.loop, logger, collector)

	v.store.Subscribe(v.onDispatch)
	v.trigger.Subscribe(func(url string) {
		v.scheduler.RunFetchCycle(v.ctx, url)
	})
	return v
}

// Start は制御ゴルーチンを起動してビューをマウントする。
// 保存済みの検索語（なければデフォルト）を読み込み、最初のフェッチサイクルを開始する。
func (v *View) Start(ctx context.Context) error {
	if !v.started.CompareAndSwap(false, true) {
		return fmt.Errorf("mount view: already started")
	}
	go v.loop.Run()

	err := v.loop.Do(ctx, func() {
		v.binding = searchterm.NewBinding(ctx, v.kv, v.opts.StorageKey, v.opts.DefaultTerm, v.logger)
		v.draft = v.binding.Value()

		v.logger.Info("ビューをマウントしました",
			slog.String("search_term", v.binding.Value()),
			slog.Bool("persist_degraded", v.binding.Degraded()),
		)
		v.trigger.Set(trigger.ComposeURL(v.opts.Endpoint, v.binding.Value()))
	})
	if err != nil {
		return fmt.Errorf("mount view: %w", err)
	}
	return nil
}

// SetDraft は入力欄の下書きを更新する。
// keystrokeモードでは同時に検索語として確定する。
func (v *View) SetDraft(ctx context.Context, term string) (Snapshot, error) {
	return v.mutate(ctx, func() {
		v.draft = term
		if v.opts.CommitMode == CommitOnKeystroke {
			v.commit()
		}
	})
}

// Submit は下書きを検索語として確定し、永続化してリクエストURLを再計算する。
// URLが変わらない場合はフェッチを開始しない。
func (v *View) Submit(ctx context.Context) (Snapshot, error) {
	return v.mutate(ctx, v.commit)
}

// SubmitTerm は下書きをtermに置き換えて確定する。
// 2つの操作は1つのタスクで行うため、間に他の下書き更新が入ることはない。
func (v *View) SubmitTerm(ctx context.Context, term string) (Snapshot, error) {
	return v.mutate(ctx, func() {
		v.draft = term
		v.commit()
	})
}

// Remove は指定したobjectIDのストーリーをリストから取り除く。
func (v *View) Remove(ctx context.Context, objectID int) (Snapshot, error) {
	return v.mutate(ctx, func() {
		v.store.Dispatch(liststate.RemoveItem{ObjectID: objectID})
	})
}

// mutate はfnを制御ゴルーチンで実行し、実行後の状態を返す。
// 積まれたタスクは呼び出し元のctxが終了しても実行されるため、完了かビューの停止まで待つ。
func (v *View) mutate(ctx context.Context, fn func()) (Snapshot, error) {
	var snap Snapshot
	err := v.loop.Do(context.WithoutCancel(ctx), func() {
		fn()
		snap = v.snapshot("")
	})
	return snap, err
}

// Snapshot は現在の状態を返す。filterが空でなければタイトルで絞り込む。
func (v *View) Snapshot(ctx context.Context, filter string) (Snapshot, error) {
	var snap Snapshot
	err := v.loop.Do(ctx, func() {
		snap = v.snapshot(filter)
	})
	return snap, err
}

// AwaitSettled はロード中でなくなるまで待ち、その時点の状態を返す。
func (v *View) AwaitSettled(ctx context.Context) (Snapshot, error) {
	for {
		var (
			snap    Snapshot
			settled bool
			ch      chan struct{}
		)
		err := v.loop.Do(ctx, func() {
			if !v.store.State().IsLoading {
				settled = true
				snap = v.snapshot("")
				return
			}
			ch = make(chan struct{})
			v.waiters = append(v.waiters, ch)
		})
		if err != nil {
			return Snapshot{}, err
		}
		if settled {
			return snap, nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-v.ctx.Done():
			return Snapshot{}, ErrStopped
		}
	}
}

// Stop はビューをアンマウントする。
// 進行中の呼び出しをキャンセルし、制御ゴルーチンを停止してサイクルの終了を待つ。
// 停止後に届いた結果は破棄される。
func (v *View) Stop() {
	v.cancel()
	v.loop.Stop()
	if v.started.Load() {
		v.loop.Wait()
	}
	v.scheduler.Wait()
	v.logger.Info("ビューをアンマウントしました")
}

// commit は下書きを確定する。書き込みはリクエストではなくビューの寿命に従う。
func (v *View) commit() {
	v.binding.Set(v.ctx, v.draft)
	v.trigger.Set(trigger.ComposeURL(v.opts.Endpoint, v.binding.Value()))
}

func (v *View) snapshot(filter string) Snapshot {
	st := v.store.State()
	items := make([]model.Story, len(st.Items))
	copy(items, st.Items)
	return Snapshot{
		Items:      model.FilterByTitle(items, filter),
		IsLoading:  st.IsLoading,
		IsError:    st.IsError,
		SearchTerm: v.binding.Value(),
		Draft:      v.draft,
		RequestURL: v.trigger.Get(),
	}
}

func (v *View) onDispatch(action liststate.Action, prev, next liststate.State) {
	v.metrics.RecordAction(string(action.Kind()))
	v.logger.Debug("アクションをディスパッチしました",
		slog.String("action", string(action.Kind())),
		slog.Int("item_count", len(next.Items)),
		slog.Bool("is_loading", next.IsLoading),
		slog.Bool("is_error", next.IsError),
	)

	if !next.IsLoading && len(v.waiters) > 0 {
		for _, ch := range v.waiters {
			close(ch)
		}
		v.waiters = nil
	}
}
