package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hitoshi/bgmx/internal/model"
	"github.com/hitoshi/bgmx/internal/printer"
	"github.com/hitoshi/bgmx/internal/revision"
	"github.com/hitoshi/bgmx/internal/subject"
)

func (a *app) newSubjectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subject <subject_id>",
		Short: "bgmw の条目を表示する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("subject_id", args[0])
			if err != nil {
				return err
			}
			data, err := a.client().GetSubject(cmd.Context(), id)
			if err != nil {
				return err
			}
			printer.New(a.opts.Stdout).Subject(data)
			return nil
		},
	}
	cmd.AddCommand(a.newRevisionCommand())
	return cmd
}

func (a *app) newRevisionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revision",
		Short: "条目の修正履歴を操作する",
	}
	cmd.AddCommand(
		a.newRevisionListCommand(),
		a.newRevisionCreateCommand(),
		a.newRevisionToggleCommand("enable", "修正履歴を有効にする", true),
		a.newRevisionToggleCommand("disable", "修正履歴を無効にする", false),
	)
	return cmd
}

func (a *app) newRevisionListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <subject_id>",
		Short: "無効なものを含む全修正履歴を表示する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("subject_id", args[0])
			if err != nil {
				return err
			}
			if err := a.requireSecret(); err != nil {
				return err
			}
			data, err := a.client().ListRevisions(cmd.Context(), id)
			if err != nil {
				return err
			}
			printer.New(a.opts.Stdout).Subject(data)
			return nil
		},
	}
}

func (a *app) newRevisionCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <subject_id>",
		Short: "修正履歴を作成する",
		Long: `修正履歴を作成し、条目を再構築します。

search.include / search.exclude / search.keywords には --value を繰り返して文字列の一覧を指定します。
search.after / search.before には --value で日時 (RFC3339 または 2006-01-02) を1つ指定します。
--value を省略した field.set は値を消去します。--json で値をJSONのまま指定することもできます。`,
		Example: `  bgmx subject revision create 400602 --op set.add --path search.include --value 芙莉莲
  bgmx subject revision create 400602 --op field.set --path search.after --value 2023-09-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("subject_id", args[0])
			if err != nil {
				return err
			}
			if err := a.requireSecret(); err != nil {
				return err
			}

			f := cmd.Flags()
			op, _ := f.GetString("op")
			path, _ := f.GetString("path")
			values, _ := f.GetStringArray("value")
			raw, _ := f.GetString("json")

			detail, err := buildRevisionDetail(model.Operation(op), path, values, raw)
			if err != nil {
				return err
			}

			data, err := a.client().CreateRevision(cmd.Context(), id, detail)
			if err != nil {
				return err
			}
			printer.New(a.opts.Stdout).Subject(data)
			return nil
		},
	}
	f := cmd.Flags()
	f.String("op", string(model.OperationSetAdd), "操作 (set.add, set.delete, field.set)")
	f.String("path", "", "対象のパス ("+strings.Join(revision.Paths(), ", ")+")")
	f.StringArray("value", nil, "値。一覧の場合は繰り返して指定する")
	f.String("json", "", "値をJSONで指定する")
	cmd.MarkFlagsMutuallyExclusive("value", "json")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

// buildRevisionDetail はフラグの値から修正内容を組み立て、適用できるかを検証する。
func buildRevisionDetail(op model.Operation, path string, values []string, raw string) (model.RevisionDetail, error) {
	detail := model.RevisionDetail{Operation: op, Path: path}
	if !op.Valid() {
		return detail, fmt.Errorf("不明な操作です: %q", op)
	}
	spec, ok := revision.LookupPath(path)
	if !ok {
		return detail, fmt.Errorf("不明なパスです: %q", path)
	}

	switch {
	case raw != "":
		if !json.Valid([]byte(raw)) {
			return detail, errors.New("--json の値が不正なJSONです")
		}
		detail.Value = json.RawMessage(raw)
	case spec.IsList():
		if values == nil {
			values = []string{}
		}
		detail.Value, _ = json.Marshal(values)
	case len(values) == 0:
		detail.Value = json.RawMessage("null")
	case len(values) == 1:
		detail.Value, _ = json.Marshal(values[0])
	default:
		return detail, fmt.Errorf("%s には値を1つだけ指定できます", path)
	}

	if err := revision.Validate(detail); err != nil {
		return detail, fmt.Errorf("修正内容が不正です: %w", err)
	}
	return detail, nil
}

func (a *app) newRevisionToggleCommand(use, short string, enable bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <subject_id> <revision_id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("subject_id", args[0])
			if err != nil {
				return err
			}
			revisionID, err := parseID("revision_id", args[1])
			if err != nil {
				return err
			}
			if err := a.requireSecret(); err != nil {
				return err
			}

			c := a.client()
			var data *subject.SubjectWithRevisions
			if enable {
				data, err = c.EnableRevision(cmd.Context(), id, revisionID)
			} else {
				data, err = c.DisableRevision(cmd.Context(), id, revisionID)
			}
			if err != nil {
				return err
			}
			printer.New(a.opts.Stdout).Subject(data)
			return nil
		},
	}
}
