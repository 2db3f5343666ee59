package fetch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/hnsearch/internal/liststate"
	"github.com/hitoshi/hnsearch/internal/model"
)

// --- モック定義 ---

// mockFetcher はStoryFetcherのテスト用モック。
type mockFetcher struct {
	fetchFunc func(ctx context.Context, url string) ([]model.Story, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) ([]model.Story, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, url)
	}
	return nil, nil
}

// queueExecutor はPostされた関数をチャネルに積む。テストゴルーチンを制御ゴルーチンとして扱う。
type queueExecutor struct {
	tasks  chan func()
	closed bool
}

func newQueueExecutor() *queueExecutor {
	return &queueExecutor{tasks: make(chan func(), 16)}
}

func (q *queueExecutor) Post(fn func()) bool {
	if q.closed {
		return false
	}
	q.tasks <- fn
	return true
}

// runNext はPostされた関数を1つ受け取り、テストゴルーチン上で実行する。
func (q *queueExecutor) runNext(t *testing.T) {
	t.Helper()
	select {
	case fn := <-q.tasks:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for posted dispatch")
	}
}

// recordingStore はディスパッチされたアクション種別を記録するStore。
type recordingStore struct {
	mu    sync.Mutex
	store *liststate.Store
	kinds []liststate.ActionKind
}

func newRecordingStore() *recordingStore {
	return &recordingStore{store: liststate.NewStore()}
}

func (r *recordingStore) Dispatch(a liststate.Action) {
	r.mu.Lock()
	r.kinds = append(r.kinds, a.Kind())
	r.mu.Unlock()
	r.store.Dispatch(a)
}

func (r *recordingStore) Kinds() []liststate.ActionKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]liststate.ActionKind(nil), r.kinds...)
}

// syncBuffer は複数ゴルーチンから書き込まれるログを保持する。
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(buf *syncBuffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func storyA() model.Story {
	return model.Story{ObjectID: 1, Title: "A", URL: "https://a.example", Author: "a", NumComments: 1, Points: 10}
}

func storyB() model.Story {
	return model.Story{ObjectID: 2, Title: "B", URL: "https://b.example", Author: "b", NumComments: 0, Points: 3}
}

// --- テスト ---

func TestRunFetchCycle_DispatchesInitBeforeNetworkCall(t *testing.T) {
	var buf syncBuffer
	store := newRecordingStore()
	exec := newQueueExecutor()

	kindsAtCall := make(chan []liststate.ActionKind, 1)
	loadingAtCall := make(chan bool, 1)
	fetcher := &mockFetcher{fetchFunc: func(ctx context.Context, url string) ([]model.Story, error) {
		kindsAtCall <- store.Kinds()
		loadingAtCall <- store.store.State().IsLoading
		return []model.Story{storyA(), storyB()}, nil
	}}

	s := NewScheduler(fetcher, store, exec, newTestLogger(&buf), nil)
	s.RunFetchCycle(context.Background(), "https://hn.example/search?query=React")

	if diff := cmp.Diff([]liststate.ActionKind{liststate.KindFetchInit}, <-kindsAtCall); diff != "" {
		t.Errorf("dispatches before network call (-want +got):\n%s", diff)
	}
	if !<-loadingAtCall {
		t.Error("isLoading should be true while the call is in flight")
	}

	exec.runNext(t)
	s.Wait()

	want := liststate.State{Items: []model.Story{storyA(), storyB()}}
	if diff := cmp.Diff(want, store.store.State()); diff != "" {
		t.Errorf("final state mismatch (-want +got):\n%s", diff)
	}
	wantKinds := []liststate.ActionKind{liststate.KindFetchInit, liststate.KindFetchSuccess}
	if diff := cmp.Diff(wantKinds, store.Kinds()); diff != "" {
		t.Errorf("dispatch sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestRunFetchCycle_TerminalDispatchRunsOnlyViaExecutor(t *testing.T) {
	var buf syncBuffer
	store := newRecordingStore()
	exec := newQueueExecutor()
	fetcher := &mockFetcher{fetchFunc: func(context.Context, string) ([]model.Story, error) {
		return []model.Story{storyA()}, nil
	}}

	s := NewScheduler(fetcher, store, exec, newTestLogger(&buf), nil)
	s.RunFetchCycle(context.Background(), "u")
	s.Wait()

	// Postされただけでまだ実行されていない
	if got := store.Kinds(); len(got) != 1 {
		t.Fatalf("kinds = %v, want only FetchInit before the posted task runs", got)
	}
	exec.runNext(t)
	if got := store.Kinds(); len(got) != 2 || got[1] != liststate.KindFetchSuccess {
		t.Errorf("kinds = %v", got)
	}
}

func TestRunFetchCycle_FailureKeepsItems(t *testing.T) {
	var buf syncBuffer
	store := newRecordingStore()
	exec := newQueueExecutor()

	fail := false
	fetcher := &mockFetcher{fetchFunc: func(context.Context, string) ([]model.Story, error) {
		if fail {
			return nil, errors.New("connection reset")
		}
		return []model.Story{storyA(), storyB()}, nil
	}}

	s := NewScheduler(fetcher, store, exec, newTestLogger(&buf), nil)
	s.RunFetchCycle(context.Background(), "u1")
	exec.runNext(t)
	s.Wait()

	fail = true
	s.RunFetchCycle(context.Background(), "u2")
	exec.runNext(t)
	s.Wait()

	want := liststate.State{Items: []model.Story{storyA(), storyB()}, IsError: true}
	if diff := cmp.Diff(want, store.store.State()); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), "connection reset") {
		t.Errorf("failure detail should be logged, got %s", buf.String())
	}
}

func TestRunFetchCycle_FetcherPanicBecomesFailure(t *testing.T) {
	var buf syncBuffer
	store := newRecordingStore()
	exec := newQueueExecutor()
	fetcher := &mockFetcher{fetchFunc: func(context.Context, string) ([]model.Story, error) {
		panic("boom")
	}}

	s := NewScheduler(fetcher, store, exec, newTestLogger(&buf), nil)
	s.RunFetchCycle(context.Background(), "u")
	exec.runNext(t)
	s.Wait()

	if st := store.store.State(); !st.IsError || st.IsLoading {
		t.Errorf("state = %+v, want failure", st)
	}
}

func TestRunFetchCycle_StoppedExecutorDropsResult(t *testing.T) {
	var buf syncBuffer
	store := newRecordingStore()
	exec := newQueueExecutor()
	exec.closed = true

	fetcher := &mockFetcher{fetchFunc: func(context.Context, string) ([]model.Story, error) {
		return []model.Story{storyA()}, nil
	}}

	s := NewScheduler(fetcher, store, exec, newTestLogger(&buf), nil)
	s.RunFetchCycle(context.Background(), "u")
	s.Wait()

	if diff := cmp.Diff([]liststate.ActionKind{liststate.KindFetchInit}, store.Kinds()); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
}

// 進行中のサイクルはキャンセルされず、後から完了した古い結果が新しい結果を上書きする。
// 既知の制限としてこの挙動を固定する。
func TestRunFetchCycle_OverlappingCyclesLastSettledWins(t *testing.T) {
	var buf syncBuffer
	store := newRecordingStore()
	exec := newQueueExecutor()

	release := map[string]chan struct{}{
		"old": make(chan struct{}),
		"new": make(chan struct{}),
	}
	fetcher := &mockFetcher{fetchFunc: func(_ context.Context, url string) ([]model.Story, error) {
		<-release[url]
		if url == "old" {
			return []model.Story{storyA()}, nil
		}
		return []model.Story{storyB()}, nil
	}}

	s := NewScheduler(fetcher, store, exec, newTestLogger(&buf), nil)
	s.RunFetchCycle(context.Background(), "old")
	s.RunFetchCycle(context.Background(), "new")

	close(release["new"])
	exec.runNext(t)
	if diff := cmp.Diff([]model.Story{storyB()}, store.store.State().Items); diff != "" {
		t.Errorf("after newer settles (-want +got):\n%s", diff)
	}

	close(release["old"])
	exec.runNext(t)
	s.Wait()

	if diff := cmp.Diff([]model.Story{storyA()}, store.store.State().Items); diff != "" {
		t.Errorf("stale result should land last (-want +got):\n%s", diff)
	}
	wantKinds := []liststate.ActionKind{
		liststate.KindFetchInit, liststate.KindFetchInit,
		liststate.KindFetchSuccess, liststate.KindFetchSuccess,
	}
	if diff := cmp.Diff(wantKinds, store.Kinds()); diff != "" {
		t.Errorf("dispatch sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestRunFetchCycle_PassesContextAndURL(t *testing.T) {
	var buf syncBuffer
	store := newRecordingStore()
	exec := newQueueExecutor()

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "v")

	var gotURL string
	var gotValue any
	fetcher := &mockFetcher{fetchFunc: func(ctx context.Context, url string) ([]model.Story, error) {
		gotURL = url
		gotValue = ctx.Value(ctxKey{})
		return nil, nil
	}}

	s := NewScheduler(fetcher, store, exec, newTestLogger(&buf), nil)
	s.RunFetchCycle(ctx, "https://hn.example/search?query=Go")
	exec.runNext(t)
	s.Wait()

	if gotURL != "https://hn.example/search?query=Go" || gotValue != "v" {
		t.Errorf("fetcher got url=%q ctxValue=%v", gotURL, gotValue)
	}
}
