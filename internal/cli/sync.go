package cli

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitoshi/bgmx/internal/bangumi"
	"github.com/hitoshi/bgmx/internal/config"
	"github.com/hitoshi/bgmx/internal/curated"
	"github.com/hitoshi/bgmx/internal/model"
	"github.com/hitoshi/bgmx/internal/printer"
	"github.com/hitoshi/bgmx/internal/report"
	"github.com/hitoshi/bgmx/internal/worker/refresh"
)

func (a *app) newSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "bgmw のデータをローカルに同期する",
	}
	cmd.AddCommand(a.newSyncSubjectCommand(), a.newSyncBangumiCommand())
	return cmd
}

func (a *app) newSyncSubjectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subject",
		Short: "全条目を取得し、放送年月ごとのJSONファイルに書き出す",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c := a.client()

			var subjects []*model.Subject
			for s, err := range c.Subjects(ctx) {
				if err != nil {
					return fmt.Errorf("条目一覧の取得に失敗しました: %w", err)
				}
				subjects = append(subjects, s)
			}
			a.logger.Info("条目一覧を取得しました", slog.Int("count", len(subjects)))

			paths, err := report.DumpSubjects(ctx, a.v.GetString("out-dir"), subjects)
			if err != nil {
				return err
			}

			printer.New(a.opts.Stdout).Summary(
				fmt.Sprintf("条目 %d 件", len(subjects)),
				fmt.Sprintf("ファイル %d 件", len(paths)),
			)
			return nil
		},
	}
	cmd.Flags().String("out-dir", "data/subject", "出力先ディレクトリ")
	return cmd
}

func (a *app) newSyncBangumiCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bangumi",
		Short: "bgm.tv の条目データを更新し、ローカルに書き出す",
		Long: `bgmw に登録済みの条目と bangumi-data の項目を列挙し、bgm.tv から最新のデータを取得します。

--update-server が有効でシークレットが指定されている場合は、取得したデータを bgmw に書き込みます。
それ以外の場合は bgmw に保存済みのデータをそのまま書き出します。`,
		Args: cobra.NoArgs,
		RunE: a.runSyncBangumi,
	}
	f := cmd.Flags()
	f.Bool("update-server", true, "取得したデータを bgmw に書き込む")
	f.String("log", "sync-bangumi.md", "同期ログの出力先")
	f.String("out-dir", "data/bangumi", "出力先ディレクトリ")
	f.Int("concurrency", 3, "同時に実行する更新の上限")
	f.String("curated", config.DefaultCuratedDataURL, "bangumi-data のURLまたはファイルパス。空の場合は使用しない")
	f.String("overrides", "", "タイトルと条目IDの対応表 (YAML)")
	f.String("bangumi-api", bangumi.DefaultBaseURL, "bgm.tv APIのベースURL")
	f.Float64("rate-limit", 4, "bgm.tv APIへの1秒あたりの最大リクエスト数")
	return cmd
}

func (a *app) runSyncBangumi(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c := a.client()

	enabled := a.v.GetBool("update-server")
	if enabled && !c.HasSecret() {
		a.logger.Warn("APIシークレットが指定されていないため、bgmw のデータは更新しません")
		enabled = false
	}

	var source refresh.CuratedEnumerator
	if loc := a.v.GetString("curated"); loc != "" {
		overrides, err := curated.LoadOverrides(a.v.GetString("overrides"))
		if err != nil {
			return err
		}
		source = curated.NewSource(a.opts.HTTPClient, a.logger, curated.Options{
			Location:  loc,
			Overrides: overrides,
		})
	}

	upstream := bangumi.NewClient(a.opts.HTTPClient, a.logger, bangumi.Options{
		BaseURL:   a.v.GetString("bangumi-api"),
		RateLimit: a.v.GetFloat64("rate-limit"),
	})

	scheduler := refresh.NewScheduler(c, source, refresh.NewBangumiUpdater(upstream, c), nil, a.logger, refresh.Config{
		Concurrency:    a.v.GetInt("concurrency"),
		MaxRetryRounds: a.v.GetInt("retry"),
		UpdateEnabled:  enabled,
	})

	res, runErr := scheduler.Run(ctx)
	if res == nil {
		return runErr
	}

	title := fmt.Sprintf("bgmx sync bangumi (%s)", time.Now().Format(time.DateTime))
	if err := report.WriteSyncLogFile(a.v.GetString("log"), title, res); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("同期処理が中断されました: %w", runErr)
	}

	bangumis := slices.Collect(maps.Values(res.Updated))
	if _, err := report.DumpBangumis(ctx, a.v.GetString("out-dir"), bangumis); err != nil {
		return err
	}

	printer.New(a.opts.Stdout).Summary(
		fmt.Sprintf("更新 %d 件", len(res.Updated)),
		fmt.Sprintf("未対応付け %d 件", len(res.Unknown)),
		fmt.Sprintf("失敗 %d 件", len(res.Errors)),
	)
	return nil
}
