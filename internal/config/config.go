package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ストーリー取得元の形式。
const (
	SourceAlgolia = "algolia"
	SourceRSS     = "rss"
	SourceStatic  = "static"
)

// 検索語の保存先。
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// 下書きの確定タイミング。
const (
	CommitSubmit    = "submit"
	CommitKeystroke = "keystroke"
)

// DefaultEndpoint はHN Algolia検索APIのエンドポイント。検索語を末尾に連結して使う。
const DefaultEndpoint = "https://hn.algolia.com/api/v1/search?query="

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Source
	HNAPIEndpoint string
	SourceFormat  string
	StaticDelay   time.Duration

	// Search view
	DefaultSearchTerm string
	SearchStorageKey  string
	CommitMode        string

	// Storage
	StoreBackend string
	DatabaseURL  string
	BoltPath     string

	// Fetch
	FetchTimeout time.Duration
	FetchMaxSize int64

	// Rate Limit (requests per minute)
	RateLimitGeneral int
	RateLimitSubmit  int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 列挙値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HNAPIEndpoint = getEnvString("HN_API_ENDPOINT", DefaultEndpoint)
	cfg.SourceFormat = strings.ToLower(getEnvString("SOURCE_FORMAT", SourceAlgolia))
	cfg.StaticDelay = getEnvDuration("STATIC_DELAY", 2*time.Second)

	cfg.DefaultSearchTerm = getEnvString("DEFAULT_SEARCH_TERM", "React")
	cfg.SearchStorageKey = getEnvString("SEARCH_STORAGE_KEY", "search")
	cfg.CommitMode = strings.ToLower(getEnvString("COMMIT_MODE", CommitSubmit))

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.BoltPath = getEnvString("BOLT_PATH", "hnsearch.db")
	cfg.StoreBackend = strings.ToLower(getEnvString("STORE_BACKEND", defaultBackend(cfg.DatabaseURL)))

	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 0)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSubmit = getEnvInt("RATE_LIMIT_SUBMIT", 30)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", "info"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var invalid []string

	if !oneOf(c.SourceFormat, SourceAlgolia, SourceRSS, SourceStatic) {
		invalid = append(invalid, "SOURCE_FORMAT="+c.SourceFormat)
	}
	if !oneOf(c.CommitMode, CommitSubmit, CommitKeystroke) {
		invalid = append(invalid, "COMMIT_MODE="+c.CommitMode)
	}
	if !oneOf(c.StoreBackend, BackendMemory, BackendBolt, BackendPostgres) {
		invalid = append(invalid, "STORE_BACKEND="+c.StoreBackend)
	}
	if !oneOf(c.LogLevel, "debug", "info", "warn", "error") {
		invalid = append(invalid, "LOG_LEVEL="+c.LogLevel)
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment variables: %v", invalid)
	}

	if c.StoreBackend == BackendPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", BackendPostgres)
	}
	return nil
}

// defaultBackend はDATABASE_URLの有無から保存先の既定値を決める。
func defaultBackend(databaseURL string) string {
	if databaseURL != "" {
		return BackendPostgres
	}
	return BackendBolt
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
