package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/hnsearch/internal/middleware"
	"github.com/hitoshi/hnsearch/internal/model"
	"github.com/hitoshi/hnsearch/internal/view"
)

// maxRequestBodySize は検索語リクエストボディの上限バイト数。
const maxRequestBodySize = 4096

// SearchViewInterface はストーリーハンドラーが必要とする検索ビューのインターフェース。
type SearchViewInterface interface {
	// Snapshot は現在の状態を返す。filterが空でなければタイトルで絞り込む。
	Snapshot(ctx context.Context, filter string) (view.Snapshot, error)
	// SetDraft は下書きを更新する。
	SetDraft(ctx context.Context, term string) (view.Snapshot, error)
	// Submit は下書きを検索語として確定する。
	Submit(ctx context.Context) (view.Snapshot, error)
	// SubmitTerm は下書きをtermに置き換えて確定する。
	SubmitTerm(ctx context.Context, term string) (view.Snapshot, error)
	// Remove はストーリーをリストから取り除く。
	Remove(ctx context.Context, objectID int) (view.Snapshot, error)
}

// StoriesHandler は検索ビューのHTTPハンドラー。
type StoriesHandler struct {
	view   SearchViewInterface
	logger *slog.Logger
}

// NewStoriesHandler はStoriesHandlerを生成する。
func NewStoriesHandler(v SearchViewInterface, logger *slog.Logger) *StoriesHandler {
	return &StoriesHandler{
		view:   v,
		logger: logger,
	}
}

// searchRequest は検索語リクエストのボディ。
type searchRequest struct {
	Term *string `json:"term"`
}

// GetStories は現在のストーリー一覧と検索状態を返す。
// GET /api/stories?filter=xxx
func (h *StoriesHandler) GetStories(w http.ResponseWriter, r *http.Request) {
	snap, err := h.view.Snapshot(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		h.handleViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// SetDraft は入力欄の下書きを更新する。
// PUT /api/search/draft {"term": "..."}
func (h *StoriesHandler) SetDraft(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSearchRequest(w, r)
	if err != nil || req.Term == nil {
		writeAPIErrorResponse(w, model.NewInvalidBodyError())
		return
	}

	snap, err := h.view.SetDraft(r.Context(), *req.Term)
	if err != nil {
		h.handleViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Submit は下書きを検索語として確定する。
// ボディにtermが含まれる場合はその値で下書きを置き換えて確定する。フェッチ完了は待たずに202を返す。
// POST /api/search
func (h *StoriesHandler) Submit(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSearchRequest(w, r)
	if err != nil {
		writeAPIErrorResponse(w, model.NewInvalidBodyError())
		return
	}

	var snap view.Snapshot
	if req.Term != nil {
		snap, err = h.view.SubmitTerm(r.Context(), *req.Term)
	} else {
		snap, err = h.view.Submit(r.Context())
	}
	if err != nil {
		h.handleViewError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

// RemoveStory はストーリーをリストから取り除く。存在しないobjectIDでも成功を返す。
// DELETE /api/stories/{objectID}
func (h *StoriesHandler) RemoveStory(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "objectID")
	objectID, err := strconv.Atoi(raw)
	if err != nil {
		writeAPIErrorResponse(w, model.NewInvalidObjectIDError(raw))
		return
	}

	snap, err := h.view.Remove(r.Context(), objectID)
	if err != nil {
		h.handleViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleViewError はビューから返されたエラーをHTTPレスポンスに変換する。
func (h *StoriesHandler) handleViewError(w http.ResponseWriter, err error) {
	if errors.Is(err, view.ErrStopped) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeAPIErrorResponse(w, model.NewViewUnavailableError())
		return
	}

	h.logger.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, model.NewInternalError())
}

// decodeSearchRequest はボディをsearchRequestとして読み込む。空のボディはtermなしとして扱う。
func decodeSearchRequest(w http.ResponseWriter, r *http.Request) (searchRequest, error) {
	var req searchRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return searchRequest{}, err
	}
	return req, nil
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	middleware.WriteAPIError(w, apiErr)
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
