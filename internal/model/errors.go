package model

import (
	"fmt"
	"net/http"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Status   int    // HTTPステータスコード。0の場合は500として扱う
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// HTTPStatus はレスポンスに使うHTTPステータスコードを返す。
func (e *APIError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// 定義済みエラーコード
const (
	ErrCodeInvalidObjectID   = "INVALID_OBJECT_ID"
	ErrCodeInvalidBody       = "INVALID_REQUEST_BODY"
	ErrCodeViewUnavailable   = "VIEW_UNAVAILABLE"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewInvalidObjectIDError は不正なobjectID指定エラーを生成する。
func NewInvalidObjectIDError(raw string) *APIError {
	return &APIError{
		Status:   http.StatusBadRequest,
		Code:     ErrCodeInvalidObjectID,
		Message:  fmt.Sprintf("無効なobjectIDです: %s", raw),
		Category: "validation",
		Action:   "objectIDには整数を指定してください。",
	}
}

// NewInvalidBodyError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidBodyError() *APIError {
	return &APIError{
		Status:   http.StatusBadRequest,
		Code:     ErrCodeInvalidBody,
		Message:  "リクエストボディの形式が不正です。",
		Category: "validation",
		Action:   `{"term": "検索語"} の形式のJSONを送信してください。`,
	}
}

// NewViewUnavailableError は検索ビューが停止済みの場合のエラーを生成する。
func NewViewUnavailableError() *APIError {
	return &APIError{
		Status:   http.StatusServiceUnavailable,
		Code:     ErrCodeViewUnavailable,
		Message:  "検索ビューは停止しています。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Status:   http.StatusTooManyRequests,
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Status:   http.StatusInternalServerError,
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
