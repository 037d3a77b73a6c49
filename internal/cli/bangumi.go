package cli

import (
	"github.com/spf13/cobra"

	"github.com/hitoshi/bgmx/internal/bangumi"
	"github.com/hitoshi/bgmx/internal/printer"
	"github.com/hitoshi/bgmx/internal/worker/refresh"
)

func (a *app) newBangumiCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bangumi",
		Short: "bgm.tv の条目データを操作する",
	}
	cmd.AddCommand(a.newBangumiSubjectCommand(), a.newBangumiUpdateCommand())
	return cmd
}

func (a *app) newBangumiSubjectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "subject <subject_id>",
		Short: "bgmw に保存されている bgm.tv の条目データを表示する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("subject_id", args[0])
			if err != nil {
				return err
			}
			b, err := a.client().GetBangumi(cmd.Context(), id)
			if err != nil {
				return err
			}
			printer.New(a.opts.Stdout).Bangumi(b)
			return nil
		},
	}
}

func (a *app) newBangumiUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <subject_id>",
		Short: "bgm.tv から条目データを取得し、bgmw に書き込む",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("subject_id", args[0])
			if err != nil {
				return err
			}
			if err := a.requireSecret(); err != nil {
				return err
			}

			upstream := bangumi.NewClient(a.opts.HTTPClient, a.logger, bangumi.Options{
				BaseURL: a.v.GetString("bangumi-api"),
			})
			b, err := refresh.NewBangumiUpdater(upstream, a.client()).Update(cmd.Context(), id)
			if err != nil {
				return err
			}
			printer.New(a.opts.Stdout).Bangumi(b)
			return nil
		},
	}
	cmd.Flags().String("bangumi-api", bangumi.DefaultBaseURL, "bgm.tv APIのベースURL")
	return cmd
}
