package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/hnsearch/internal/config"
	"github.com/hitoshi/hnsearch/internal/database"
	"github.com/hitoshi/hnsearch/internal/handler"
	"github.com/hitoshi/hnsearch/internal/hnapi"
	"github.com/hitoshi/hnsearch/internal/logger"
	"github.com/hitoshi/hnsearch/internal/metrics"
	"github.com/hitoshi/hnsearch/internal/middleware"
	"github.com/hitoshi/hnsearch/internal/model"
	"github.com/hitoshi/hnsearch/internal/repository"
	"github.com/hitoshi/hnsearch/internal/searchterm"
	"github.com/hitoshi/hnsearch/internal/security"
	"github.com/hitoshi/hnsearch/internal/view"
	"github.com/hitoshi/hnsearch/internal/worker/fetch"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	log := logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, log, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを作り直す
	log = logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, log, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。ログとsearchの結果はwに出力する。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, log, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("source_format", cfg.SourceFormat),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("commit_mode", cfg.CommitMode),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg, log)
	case CommandSearch:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runSearch(ctx, cfg, log, w, SearchTerm(args))
	default:
		return runServe(cfg, log)
	}
}

// runServe はAPIサーバーモードで起動する。
// 保存先を開き、検索ビューをマウントし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config, log *slog.Logger) error {
	// 1. 保存先
	store, err := openStorage(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// 3. ストーリー取得元
	fetcher, err := buildFetcher(cfg, log, collector)
	if err != nil {
		return err
	}

	// 4. 検索ビューのマウント（最初のフェッチサイクルが始まる）
	v := newView(cfg, store.kv, fetcher, log, collector)
	mountCtx, cancelMount := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelMount()
	if err := v.Start(mountCtx); err != nil {
		return err
	}
	defer v.Stop()

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSubmit),
		log,
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		View:              v,
		HealthChecker:     store.health,
		MetricsHandler:    metrics.Handler(reg),
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	log.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runSearch は検索ビューをマウントし、最初のフェッチサイクルの結果をwに出力する。
// termが指定された場合は確定してからその結果を待つ。
func runSearch(ctx context.Context, cfg *config.Config, log *slog.Logger, w io.Writer, term string) error {
	store, err := openStorage(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	fetcher, err := buildFetcher(cfg, log, metrics.Nop{})
	if err != nil {
		return err
	}

	v := newView(cfg, store.kv, fetcher, log, metrics.Nop{})
	if err := v.Start(ctx); err != nil {
		return err
	}
	defer v.Stop()

	if term != "" {
		if _, err := v.SubmitTerm(ctx, term); err != nil {
			return fmt.Errorf("submit: %w", err)
		}
	}

	snap, err := v.AwaitSettled(ctx)
	if err != nil {
		return fmt.Errorf("wait for fetch: %w", err)
	}
	if snap.IsError {
		return fmt.Errorf("search %q failed", snap.SearchTerm)
	}

	return printStories(w, snap)
}

// printStories はストーリー一覧を表形式で出力する。
func printStories(w io.Writer, snap view.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "# %s (%d stories)\n", snap.SearchTerm, len(snap.Items))
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tCOMMENTS\tPOINTS\tURL")
	for _, s := range snap.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n", s.ObjectID, s.Title, s.Author, s.NumComments, s.Points, s.URL)
	}
	return tw.Flush()
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, log *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("migrate requires DATABASE_URL")
	}

	log.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// storage は検索語の保存先と、その後始末をまとめたもの。
type storage struct {
	kv     searchterm.KVStore
	health handler.HealthChecker
	close  func() error
}

// Close は保存先を閉じる。
func (s *storage) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// openStorage はSTORE_BACKENDに従って検索語の保存先を開く。
// boltファイルを開けない場合は警告を出してメモリのみで動作する。
func openStorage(cfg *config.Config, log *slog.Logger) (*storage, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return &storage{kv: searchterm.NewMemoryStore()}, nil

	case config.BackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			// 読み書きに失敗した時点でBindingがメモリのみに切り替わる
			log.Warn("database is not reachable", slog.String("error", err.Error()))
		} else {
			log.Info("database connection established")
		}
		return &storage{
			kv:     repository.NewPostgresKVRepo(db),
			health: db,
			close:  db.Close,
		}, nil

	default:
		repo, err := repository.OpenBoltKVRepo(cfg.BoltPath)
		if err != nil {
			log.Warn("failed to open bolt store, search term will not be persisted",
				slog.String("path", cfg.BoltPath),
				slog.String("error", err.Error()),
			)
			return &storage{}, nil
		}
		return &storage{kv: repo, close: repo.Close}, nil
	}
}

// buildFetcher はSOURCE_FORMATに従ってストーリー取得元を構築する。
// HTTP経由の取得元はSSRF対策済みクライアントを使い、エンドポイントを起動時に検証する。
func buildFetcher(cfg *config.Config, log *slog.Logger, collector metrics.MetricsCollector) (fetch.StoryFetcher, error) {
	if cfg.SourceFormat == config.SourceStatic {
		return hnapi.NewStaticSource(cfg.StaticDelay, model.SampleStories()), nil
	}

	guard := security.NewEndpointGuard()
	if err := guard.ValidateEndpoint(cfg.HNAPIEndpoint); err != nil {
		return nil, fmt.Errorf("invalid HN_API_ENDPOINT: %w", err)
	}

	var decoder hnapi.Decoder = hnapi.AlgoliaDecoder{}
	if cfg.SourceFormat == config.SourceRSS {
		decoder = hnapi.RSSDecoder{}
	}

	return hnapi.NewClient(
		guard.NewSafeClient(cfg.FetchTimeout),
		decoder,
		log,
		hnapi.WithSanitizer(security.NewTextSanitizer()),
		hnapi.WithStatusRecorder(collector),
		hnapi.WithMaxBodySize(cfg.FetchMaxSize),
	), nil
}

func newView(cfg *config.Config, kv searchterm.KVStore, fetcher fetch.StoryFetcher, log *slog.Logger, collector metrics.MetricsCollector) *view.View {
	return view.New(kv, fetcher, view.Options{
		Endpoint:    cfg.HNAPIEndpoint,
		StorageKey:  cfg.SearchStorageKey,
		DefaultTerm: cfg.DefaultSearchTerm,
		CommitMode:  view.CommitMode(cfg.CommitMode),
	}, log, collector)
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
