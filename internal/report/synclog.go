package report

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/hitoshi/bgmx/internal/worker/refresh"
)

// WriteSyncLog は同期結果のうち、対応付けられなかった項目と更新に失敗した条目をMarkdownで書き出す。
func WriteSyncLog(w io.Writer, title string, res *refresh.Result) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "## %s\n\n", title)
	fmt.Fprintf(bw, "- 更新: %d 件\n", len(res.Updated))
	fmt.Fprintf(bw, "- 未対応付け: %d 件\n", len(res.Unknown))
	fmt.Fprintf(bw, "- 失敗: %d 件\n\n", len(res.Errors))

	if len(res.Unknown) > 0 {
		fmt.Fprint(bw, "### bangumi-data\n\n")
		for _, item := range res.Unknown {
			fmt.Fprintf(bw, "- bangumi IDがありません: %s\n", item.Title)
		}
		fmt.Fprintln(bw)
	}

	if len(res.Errors) > 0 {
		fmt.Fprint(bw, "### 更新エラー\n\n")
		for _, id := range res.ErrorIDs() {
			fmt.Fprintf(bw, "- 更新失敗 %d : %v\n", id, res.Errors[id].Err)
		}
		fmt.Fprintln(bw)
	}

	return bw.Flush()
}

// WriteSyncLogFile は同期ログをpathに書き出す。
func WriteSyncLogFile(path, title string, res *refresh.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ログファイルの作成に失敗しました: %w", err)
	}
	if err := WriteSyncLog(f, title, res); err != nil {
		f.Close()
		return fmt.Errorf("ログファイルの書き込みに失敗しました: %w", err)
	}
	return f.Close()
}
