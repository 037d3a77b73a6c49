// Package cli はbgmwサーバーを操作するコマンドラインツール bgmx を実装する。
//
// 設定は次の順で解決する（後のものが優先）。
//   - $HOME/.bgmx.yaml（--config で別ファイルを指定できる）
//   - カレントディレクトリの .env
//   - BGMX_ で始まる環境変数（APIシークレットのみ SECRET も参照する）
//   - コマンドラインフラグ
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hitoshi/bgmx/internal/client"
	"github.com/hitoshi/bgmx/internal/config"
	"github.com/hitoshi/bgmx/internal/logger"
)

const envPrefix = "BGMX"

// Options はコマンドの入出力先と依存を指定する。
// 未指定のフィールドには標準入出力と http.DefaultClient 相当の値を使う。
type Options struct {
	Stdout     io.Writer
	Stderr     io.Writer
	HTTPClient *http.Client
	Version    string
}

// app は1回のコマンド実行で共有する状態を持つ。
type app struct {
	opts       Options
	v          *viper.Viper
	configFile string
	logger     *slog.Logger
}

// NewRootCommand はbgmxのルートコマンドを生成する。
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	a := &app{
		opts:   opts,
		v:      viper.New(),
		logger: logger.SetupText(opts.Stderr, slog.LevelInfo),
	}

	root := &cobra.Command{
		Use:   "bgmx",
		Short: "bgmw の条目データを操作するCLI",
		Long: `bgmx は bgmw サーバーの条目・修正履歴・放送カレンダーを参照、更新するCLIです。

書き込み系のコマンドには APIシークレット（--secret、BGMX_SECRET または SECRET）が必要です。`,
		Version:           opts.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "設定ファイル (デフォルト: $HOME/.bgmx.yaml)")
	pf.String("base-url", client.DefaultBaseURL, "bgmw APIのベースURL")
	pf.StringP("secret", "s", "", "bgmw APIのシークレット")
	pf.Int("retry", 3, "GETリクエストの再試行回数")
	pf.BoolP("verbose", "v", false, "デバッグログを出力する")

	root.AddCommand(
		a.newSyncCommand(),
		a.newSubjectCommand(),
		a.newBangumiCommand(),
		a.newCalendarCommand(),
	)
	return root
}

// setup は設定ファイル・環境変数・フラグを読み込み、ロガーを設定する。
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	v := a.v
	if a.configFile != "" {
		v.SetConfigFile(a.configFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".bgmx")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("secret", envPrefix+"_SECRET", "SECRET"); err != nil {
		return fmt.Errorf("環境変数のバインドに失敗しました: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("フラグのバインドに失敗しました: %w", err)
	}

	level := slog.LevelInfo
	if v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	a.logger = logger.SetupText(a.opts.Stderr, level)
	if used := v.ConfigFileUsed(); used != "" {
		a.logger.Debug("設定ファイルを読み込みました", slog.String("path", used))
	}
	return nil
}

// client はbgmw APIのクライアントを生成する。
func (a *app) client() *client.Client {
	return client.New(a.opts.HTTPClient, a.logger, client.Options{
		BaseURL: a.v.GetString("base-url"),
		Secret:  a.v.GetString("secret"),
		Retry:   a.v.GetInt("retry"),
	})
}

// requireSecret は書き込み系コマンドの実行前にシークレットの有無を確認する。
func (a *app) requireSecret() error {
	if a.v.GetString("secret") == "" {
		return client.ErrSecretRequired
	}
	return nil
}

func parseID(name, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s が不正です: %q", name, s)
	}
	return id, nil
}

// Execute はシグナルで中断できるコンテキストでbgmxを実行し、終了コードを返す。
func Execute(version string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := NewRootCommand(Options{Version: version})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "エラー:", err)
		return 1
	}
	return 0
}
