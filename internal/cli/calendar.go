package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hitoshi/bgmx/internal/model"
	"github.com/hitoshi/bgmx/internal/printer"
	"github.com/hitoshi/bgmx/internal/report"
	"github.com/hitoshi/bgmx/internal/subject"
)

func (a *app) newCalendarCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "現在の放送カレンダーを表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cal, err := a.client().GetCalendar(cmd.Context())
			if err != nil {
				return err
			}
			printer.New(a.opts.Stdout).Calendar(cal)

			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				return nil
			}
			version, _ := cmd.Flags().GetString("file-version")
			full, _ := cmd.Flags().GetBool("full")
			return report.DumpCalendar(out, cal, version, full)
		},
	}
	f := cmd.Flags()
	f.String("out", "", "放送カレンダーを書き出すファイル")
	f.String("file-version", "", "書き出すファイルに記録するバージョン")
	f.Bool("full", false, "概要や別名を含む完全な条目を書き出す")

	cmd.AddCommand(a.newCalendarUpdateCommand())
	return cmd
}

// calendarInput は放送カレンダーの入力ファイルの形式。JSONでも記述できる。
//
//	calendar:
//	  - id: 400602
//	    platform: tv
//	    weekday: 4
//	  - id: 424883
//	    platform: web
type calendarInput struct {
	Calendar []struct {
		ID       int64  `yaml:"id"`
		Platform string `yaml:"platform"`
		Weekday  *int   `yaml:"weekday"`
	} `yaml:"calendar"`
}

// readCalendarFile は入力ファイルを読み込み、放送カレンダーの行として検証する。
func readCalendarFile(path string) ([]model.CalendarEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("放送カレンダーの読み込みに失敗しました: %w", err)
	}

	var in calendarInput
	if err := yaml.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("放送カレンダーのパースに失敗しました: %w", err)
	}

	entries := make([]model.CalendarEntry, 0, len(in.Calendar))
	for _, row := range in.Calendar {
		entries = append(entries, model.CalendarEntry{
			ID:       row.ID,
			Platform: model.CalendarPlatform(row.Platform),
			Weekday:  row.Weekday,
		})
	}
	if err := subject.ValidateCalendar(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (a *app) newCalendarUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update <file>",
		Short: "放送カレンダーを置き換える",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readCalendarFile(args[0])
			if err != nil {
				return err
			}
			if err := a.requireSecret(); err != nil {
				return err
			}

			n, err := a.client().UpdateCalendar(cmd.Context(), entries)
			if err != nil {
				return err
			}
			printer.New(a.opts.Stdout).Summary(fmt.Sprintf("放送カレンダーを %d 件で更新しました", n))
			return nil
		},
	}
}
