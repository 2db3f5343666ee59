package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/hnsearch/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 検索ビュー
	View SearchViewInterface

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → SecurityHeaders → CORS → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", NewHealthHandler(deps.HealthChecker, deps.Logger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	storiesHandler := NewStoriesHandler(deps.View, deps.Logger)

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/stories", func(r chi.Router) {
			r.Get("/", storiesHandler.GetStories)
			r.Delete("/{objectID}", storiesHandler.RemoveStory)
		})

		r.Route("/api/search", func(r chi.Router) {
			// POST /api/search - 検索確定（確定専用レート制限を追加）
			r.With(deps.RateLimiter.SubmitMiddleware()).Post("/", storiesHandler.Submit)
			r.Put("/draft", storiesHandler.SetDraft)
		})
	})

	return r
}
