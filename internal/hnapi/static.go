package hnapi

import (
	"context"
	"time"

	"github.com/hitoshi/hnsearch/internal/model"
)

// StaticSource はチュートリアルの擬似非同期フェッチを再現するソース。
// URLに関係なく、遅延のあとにサンプルストーリーを返す。
type StaticSource struct {
	delay   time.Duration
	stories []model.Story
}

// NewStaticSource はStaticSourceを生成する。storiesがnilの場合はサンプルを使う。
func NewStaticSource(delay time.Duration, stories []model.Story) *StaticSource {
	if stories == nil {
		stories = model.SampleStories()
	}
	return &StaticSource{delay: delay, stories: stories}
}

// Fetch は遅延後にストーリーの複製を返す。ctxがキャンセルされた場合はFetchErrorを返す。
func (s *StaticSource) Fetch(ctx context.Context, url string) ([]model.Story, error) {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, &FetchError{URL: url, Err: ctx.Err()}
	case <-timer.C:
	}

	out := make([]model.Story, len(s.stories))
	copy(out, s.stories)
	return out, nil
}
