// Package fetch はリクエストURLごとのフェッチサイクル実行を提供する。
// FetchInitのディスパッチ、ネットワーク呼び出し、終端アクションのディスパッチを
// この順序で1回ずつ行う。
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/hnsearch/internal/liststate"
	"github.com/hitoshi/hnsearch/internal/metrics"
	"github.com/hitoshi/hnsearch/internal/model"
)

// StoryFetcher はURLからストーリー一覧を取得するインターフェース。
type StoryFetcher interface {
	Fetch(ctx context.Context, url string) ([]model.Story, error)
}

// Dispatcher はアクションをリデューサへ渡すインターフェース。
type Dispatcher interface {
	Dispatch(action liststate.Action)
}

// Executor は関数を制御ゴルーチン上で実行するインターフェース。
// 制御ゴルーチンが停止済みの場合、Postはfalseを返しfnを実行しない。
type Executor interface {
	Post(fn func()) bool
}

// Scheduler はフェッチサイクルを実行する。
// RunFetchCycleは制御ゴルーチンから呼び出すこと。
//
// 進行中のサイクルはキャンセルされず、順序保証もない。
// 古いサイクルの終端アクションが新しいサイクルの結果を上書きすることがある。
type Scheduler struct {
	fetcher    StoryFetcher
	dispatcher Dispatcher
	exec       Executor
	logger     *slog.Logger
	metrics    metrics.MetricsCollector

	wg sync.WaitGroup
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewScheduler(
	fetcher StoryFetcher,
	dispatcher Dispatcher,
	exec Executor,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Scheduler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Scheduler{
		fetcher:    fetcher,
		dispatcher: dispatcher,
		exec:       exec,
		logger:     logger,
		metrics:    collector,
	}
}

// RunFetchCycle はurlに対するフェッチサイクルを1回開始する。
// FetchInitはネットワーク呼び出しより前に同期的にディスパッチされ、
// 終端アクションは呼び出し完了後にExecutor経由で制御ゴルーチン上でディスパッチされる。
func (s *Scheduler) RunFetchCycle(ctx context.Context, url string) {
	cycleID := uuid.NewString()

	s.dispatcher.Dispatch(liststate.FetchInit{})
	s.metrics.RecordCycleStarted()

	s.logger.Info("フェッチサイクルを開始します",
		slog.String("cycle_id", cycleID),
		slog.String("url", url),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		start := time.Now()
		stories, err := s.fetch(ctx, url)
		duration := time.Since(start)

		var action liststate.Action
		if err != nil {
			s.logger.Warn("フェッチサイクルが失敗しました",
				slog.String("cycle_id", cycleID),
				slog.String("url", url),
				slog.String("error", err.Error()),
				slog.Float64("duration_ms", float64(duration.Milliseconds())),
			)
			s.metrics.RecordFetchCycle(metrics.ResultFailure, duration)
			action = liststate.FetchFailure{}
		} else {
			s.logger.Info("フェッチサイクルが完了しました",
				slog.String("cycle_id", cycleID),
				slog.String("url", url),
				slog.Int("story_count", len(stories)),
				slog.Float64("duration_ms", float64(duration.Milliseconds())),
			)
			s.metrics.RecordFetchCycle(metrics.ResultSuccess, duration)
			s.metrics.RecordStoriesReceived(len(stories))
			action = liststate.FetchSuccess{Items: stories}
		}

		if !s.exec.Post(func() { s.dispatcher.Dispatch(action) }) {
			s.logger.Info("ビューが停止済みのため結果を破棄しました",
				slog.String("cycle_id", cycleID),
			)
		}
	}()
}

// Wait は進行中のすべてのサイクルが終端アクションをPostし終えるまで待つ。
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// fetch はフェッチャーのpanicをエラーに変換する。
func (s *Scheduler) fetch(ctx context.Context, url string) (stories []model.Story, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("fetcher panicked: %v", rec)
		}
	}()
	return s.fetcher.Fetch(ctx, url)
}
