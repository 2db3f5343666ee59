// Package hnapi はストーリー検索APIのクライアントを提供する。
// HN Algolia検索API（JSON）、hnrss形式のRSS、チュートリアル用の擬似ソースに対応する。
package hnapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/hnsearch/internal/model"
)

const (
	// defaultMaxBodySize はレスポンスボディの既定上限（5MiB）。
	defaultMaxBodySize = 5 << 20
	userAgent          = "hnsearch/1.0"
)

// Decoder はレスポンスボディをストーリー列に変換する。
type Decoder interface {
	Decode(body []byte) ([]model.Story, error)
}

// Sanitizer はタイトル・著者名をプレーンテキストに変換する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// StatusRecorder は上流APIのHTTPステータスを記録する。
type StatusRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// FetchError はフェッチ失敗を表す唯一のエラー種別。
// 通信エラー、非2xxステータス、デコード失敗をすべてこの型で返す。
type FetchError struct {
	URL        string
	StatusCode int // 非2xxの場合のみ設定される
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client はHTTP GETでストーリー一覧を取得するクライアント。
type Client struct {
	httpClient  *http.Client
	decoder     Decoder
	sanitizer   Sanitizer
	recorder    StatusRecorder
	logger      *slog.Logger
	maxBodySize int64
}

// Option はClientの任意設定。
type Option func(*Client)

// WithSanitizer はタイトル・著者名のサニタイザを設定する。
func WithSanitizer(s Sanitizer) Option {
	return func(c *Client) { c.sanitizer = s }
}

// WithStatusRecorder はHTTPステータスの記録先を設定する。
func WithStatusRecorder(r StatusRecorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithMaxBodySize はレスポンスボディの上限を設定する。0以下は既定値を使う。
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// NewClient はClientを生成する。
func NewClient(httpClient *http.Client, decoder Decoder, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient:  httpClient,
		decoder:     decoder,
		logger:      logger,
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch はurlへGETリクエストを送り、ストーリー一覧を返す。
// 失敗はすべて*FetchErrorとして返す。
func (c *Client) Fetch(ctx context.Context, url string) ([]model.Story, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, application/rss+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if c.recorder != nil {
		c.recorder.RecordHTTPStatus(resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("response body exceeds %d bytes", c.maxBodySize)}
	}

	stories, err := c.decoder.Decode(body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("decode: %w", err)}
	}

	if c.sanitizer != nil {
		for i := range stories {
			stories[i].Title = c.sanitizer.Sanitize(stories[i].Title)
			stories[i].Author = c.sanitizer.Sanitize(stories[i].Author)
		}
	}

	c.logger.Debug("hnapi: fetch complete",
		slog.String("url", url),
		slog.Int("stories", len(stories)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return stories, nil
}
