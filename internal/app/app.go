package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/bgmx/internal/bangumi"
	"github.com/hitoshi/bgmx/internal/config"
	"github.com/hitoshi/bgmx/internal/curated"
	"github.com/hitoshi/bgmx/internal/database"
	"github.com/hitoshi/bgmx/internal/handler"
	"github.com/hitoshi/bgmx/internal/logger"
	"github.com/hitoshi/bgmx/internal/metrics"
	"github.com/hitoshi/bgmx/internal/middleware"
	"github.com/hitoshi/bgmx/internal/repository"
	"github.com/hitoshi/bgmx/internal/security"
	"github.com/hitoshi/bgmx/internal/subject"
	"github.com/hitoshi/bgmx/internal/worker/refresh"
)

// curatedFetchTimeout は外部データセット取得のタイムアウト。
const curatedFetchTimeout = 60 * time.Second

// Init はアプリケーションの初期化を行う。
// .envを読み込み、JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envがあれば環境変数に読み込む
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
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

	var migrateOpts MigrateOptions
	if cmd == CommandMigrate {
		opts, err := ParseMigrateArgs(args[1:])
		if err != nil {
			return err
		}
		migrateOpts = opts
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandSync:
		return runSync(cfg)
	case CommandMigrate:
		return runMigrate(cfg, migrateOpts)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newRegistry はプロセスとGoランタイムのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newSubjectService はリポジトリを組み立ててサービス層を生成する。
func newSubjectService(db *sql.DB, recorder subject.FoldRecorder, logger *slog.Logger) *subject.Service {
	return subject.NewService(
		repository.NewPostgresBangumiRepo(db),
		repository.NewPostgresSubjectRepo(db),
		repository.NewPostgresRevisionRepo(db),
		repository.NewPostgresCalendarRepo(db),
		recorder,
		logger,
	)
}

// buildRouter はAPIサーバーの全依存関係をワイヤリングしたルーターを返す。
// 返却されたRateLimiterはサーバー停止時にStopする。
func buildRouter(cfg *config.Config, db *sql.DB, reg *prometheus.Registry, logger *slog.Logger) (http.Handler, *middleware.RateLimiter) {
	collector := metrics.NewCollector(reg)
	svc := newSubjectService(db, collector, logger)
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitWrite))

	deps := &handler.RouterDeps{
		Logger:            logger,
		HTTPRecorder:      collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		APISecret:         cfg.APISecret,
		RateLimiter:       rateLimiter,

		SubjectService:  svc,
		BangumiService:  svc,
		CalendarService: svc,

		HealthCheck: func(ctx context.Context) error {
			return database.Ping(ctx, db, 2*time.Second)
		},
		MetricsHandler: metrics.Handler(reg),
	}

	return handler.NewRouter(deps), rateLimiter
}

// buildScheduler は同期workerの依存関係をワイヤリングしたスケジューラを返す。
// リモート列挙にはリポジトリを、保存先にはサービス層を使い、取得のたびに条目を再構築する。
func buildScheduler(cfg *config.Config, db *sql.DB, reg *prometheus.Registry, logger *slog.Logger) (*refresh.Scheduler, error) {
	overrides, err := curated.LoadOverrides(cfg.CuratedOverridesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load curated overrides: %w", err)
	}

	collector := metrics.NewCollector(reg)
	svc := newSubjectService(db, collector, logger)

	upstream := bangumi.NewClient(
		&http.Client{Timeout: cfg.BangumiTimeout},
		logger,
		bangumi.Options{
			BaseURL:   cfg.BangumiAPIURL,
			UserAgent: cfg.BangumiUserAgent,
			RateLimit: cfg.BangumiRateLimit,
		},
	)
	curatedClient := &http.Client{Timeout: curatedFetchTimeout}
	if curated.IsRemote(cfg.CuratedDataURL) {
		if err := security.ValidateURL(cfg.CuratedDataURL); err != nil {
			return nil, fmt.Errorf("invalid curated data URL: %w", err)
		}
		curatedClient = security.NewSafeClient(curatedFetchTimeout)
	}
	source := curated.NewSource(
		curatedClient,
		logger,
		curated.Options{Location: cfg.CuratedDataURL, Overrides: overrides},
	)

	return refresh.NewScheduler(
		svc,
		source,
		refresh.NewBangumiUpdater(upstream, svc),
		collector,
		logger,
		refresh.Config{
			Concurrency:    cfg.SyncConcurrency,
			MaxRetryRounds: cfg.SyncRetry,
			UpdateEnabled:  true,
		},
	), nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. ルーターの構築
	router, rateLimiter := buildRouter(cfg, db, newRegistry(), slog.Default())
	defer rateLimiter.Stop()

	// 3. HTTPサーバーの起動
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

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、同期スケジューラを起動する。メトリクスは SERVER_PORT の /metrics で公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. スケジューラの構築
	reg := newRegistry()
	scheduler, err := buildScheduler(cfg, db, reg, slog.Default())
	if err != nil {
		return err
	}

	// 3. メトリクスサーバーの起動
	metricsServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      metrics.SetupMetricsRoute(reg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sync_interval", cfg.SyncInterval),
		slog.Int("concurrency", cfg.SyncConcurrency),
		slog.Int("retry", cfg.SyncRetry),
	)

	// 同期スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.SyncInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config, opts MigrateOptions) error {
	slog.Info("running database migrations",
		slog.String("action", string(opts.Action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch opts.Action {
	case MigrateDown:
		if err := database.RollbackMigrations(cfg.DatabaseURL, opts.Steps); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case MigrateVersion:
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runSync は同期処理を1回実行して終了する。
// 個別の条目の更新失敗はログに残し、エラーとしては返さない。
func runSync(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	scheduler, err := buildScheduler(cfg, db, newRegistry(), slog.Default())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := scheduler.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	for _, id := range res.ErrorIDs() {
		slog.Warn("subject refresh failed",
			slog.Int64("subject_id", id),
			slog.String("error", res.Errors[id].Err.Error()),
		)
	}
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
