package curated

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Overrides はデータセットのタイトルからbgm.tvの条目IDへの対応表。
type Overrides map[string]int64

// overridesFile はオーバーライドファイルの形式。
//
//	overrides:
//	  "タイトル": 12345
type overridesFile struct {
	Overrides map[string]int64 `yaml:"overrides"`
}

// Lookup はタイトルに対応する条目IDを返す。前後の空白は無視する。
func (o Overrides) Lookup(title string) (int64, bool) {
	if o == nil {
		return 0, false
	}
	id, ok := o[strings.TrimSpace(title)]
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

// ParseOverrides はYAML形式のオーバーライドを読み込む。
func ParseOverrides(r io.Reader) (Overrides, error) {
	var f overridesFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return Overrides{}, nil
		}
		return nil, fmt.Errorf("オーバーライドのパースに失敗しました: %w", err)
	}

	out := make(Overrides, len(f.Overrides))
	for title, id := range f.Overrides {
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		if id <= 0 {
			return nil, fmt.Errorf("不正な条目IDです: %q: %d", title, id)
		}
		out[title] = id
	}
	return out, nil
}

// LoadOverrides はオーバーライドファイルを読み込む。
// pathが空またはファイルが存在しない場合は空の対応表を返す。
func LoadOverrides(path string) (Overrides, error) {
	if path == "" {
		return Overrides{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Overrides{}, nil
		}
		return nil, fmt.Errorf("オーバーライドファイルを開けませんでした: %w", err)
	}
	defer f.Close()
	return ParseOverrides(f)
}
