package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/hitoshi/bgmx/internal/bangumi"
)

// DefaultCuratedDataURL は外部データセット（bangumi-data）の取得元。
const DefaultCuratedDataURL = "https://unpkg.com/bangumi-data@0/dist/data.json"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Auth
	APISecret string

	// Upstream (bgm.tv)
	BangumiAPIURL    string
	BangumiUserAgent string
	BangumiRateLimit float64
	BangumiTimeout   time.Duration

	// Sync
	SyncInterval    time.Duration
	SyncConcurrency int
	SyncRetry       int

	// Curated dataset
	CuratedDataURL       string
	CuratedOverridesFile string

	// Rate Limit
	RateLimitWrite int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// LoadDotEnv は指定された.envファイルを環境変数に読み込む。
// 既に設定されている環境変数は上書きしない。ファイルが存在しない場合は何もしない。
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.APISecret = os.Getenv("API_SECRET")
	if cfg.APISecret == "" {
		missing = append(missing, "API_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.BangumiAPIURL = getEnvString("BANGUMI_API_URL", bangumi.DefaultBaseURL)
	cfg.BangumiUserAgent = getEnvString("BANGUMI_USER_AGENT", bangumi.DefaultUserAgent)
	cfg.BangumiRateLimit = getEnvFloat("BANGUMI_RATE_LIMIT", 4)
	cfg.BangumiTimeout = getEnvDuration("BANGUMI_TIMEOUT", 15*time.Second)
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", 24*time.Hour)
	cfg.SyncConcurrency = getEnvInt("SYNC_CONCURRENCY", 3)
	cfg.SyncRetry = getEnvInt("SYNC_RETRY", 3)
	cfg.CuratedDataURL = getEnvString("CURATED_DATA_URL", DefaultCuratedDataURL)
	cfg.CuratedOverridesFile = getEnvString("CURATED_OVERRIDES_FILE", "")
	cfg.RateLimitWrite = getEnvInt("RATE_LIMIT_WRITE", 60)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

	return cfg, nil
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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
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
