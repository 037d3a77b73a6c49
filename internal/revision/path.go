// Package revision は条目の修正履歴（Revision）を基底スナップショットに畳み込む処理を提供する。
// 書き換え可能なフィールドは閉じた列挙（Field）で表現し、
// 各フィールドは型付きのgetter/setterにコンパイル時に束縛される。
package revision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/bgmx/internal/model"
)

var (
	// ErrUnsupportedPath は許可リストにないパスが指定されたことを示す。
	ErrUnsupportedPath = errors.New("unsupported revision path")
	// ErrUnsupportedOperation はパスの型に適用できない操作が指定されたことを示す。
	ErrUnsupportedOperation = errors.New("unsupported revision operation")
	// ErrInvalidValue は値がパスの型として解釈できないことを示す。
	ErrInvalidValue = errors.New("invalid revision value")
)

// Field は修正可能なフィールドの列挙。
type Field int

const (
	FieldSearchInclude Field = iota + 1
	FieldSearchExclude
	FieldSearchKeywords
	FieldSearchAfter
	FieldSearchBefore
)

// String はフィールドのドット区切りパスを返す。
func (f Field) String() string {
	if spec, ok := specFor(f); ok {
		return spec.Path
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

type valueKind int

const (
	kindList valueKind = iota + 1
	kindTime
)

// PathSpec は許可リストの1エントリ。
// パス文字列と、Subject.Search上の型付きアクセサの組を保持する。
type PathSpec struct {
	Field Field
	Path  string
	kind  valueKind
	list  func(*model.SubjectSearch) *[]string
	time  func(*model.SubjectSearch) **time.Time
}

// IsList はリスト型（集合操作可能）のフィールドかどうかを返す。
func (p PathSpec) IsList() bool {
	return p.kind == kindList
}

var pathSpecs = []PathSpec{
	{
		Field: FieldSearchInclude,
		Path:  "search.include",
		kind:  kindList,
		list:  func(s *model.SubjectSearch) *[]string { return &s.Include },
	},
	{
		Field: FieldSearchExclude,
		Path:  "search.exclude",
		kind:  kindList,
		list:  func(s *model.SubjectSearch) *[]string { return &s.Exclude },
	},
	{
		Field: FieldSearchKeywords,
		Path:  "search.keywords",
		kind:  kindList,
		list:  func(s *model.SubjectSearch) *[]string { return &s.Keywords },
	},
	{
		Field: FieldSearchAfter,
		Path:  "search.after",
		kind:  kindTime,
		time:  func(s *model.SubjectSearch) **time.Time { return &s.After },
	},
	{
		Field: FieldSearchBefore,
		Path:  "search.before",
		kind:  kindTime,
		time:  func(s *model.SubjectSearch) **time.Time { return &s.Before },
	},
}

// Paths は許可されたパスの一覧を定義順で返す。
func Paths() []string {
	paths := make([]string, len(pathSpecs))
	for i, spec := range pathSpecs {
		paths[i] = spec.Path
	}
	return paths
}

// LookupPath はパス文字列に対応するPathSpecを返す。
// 許可リストにないパスの場合はfalseを返す。
func LookupPath(path string) (PathSpec, bool) {
	switch path {
	case "search.include":
		return specFor(FieldSearchInclude)
	case "search.exclude":
		return specFor(FieldSearchExclude)
	case "search.keywords":
		return specFor(FieldSearchKeywords)
	case "search.after":
		return specFor(FieldSearchAfter)
	case "search.before":
		return specFor(FieldSearchBefore)
	default:
		return PathSpec{}, false
	}
}

func specFor(f Field) (PathSpec, bool) {
	i := int(f) - 1
	if i < 0 || i >= len(pathSpecs) {
		return PathSpec{}, false
	}
	return pathSpecs[i], true
}

// Validate は修正内容が適用可能かどうかを検証する。
// 修正履歴の作成時に呼び出し、畳み込みで中断する修正が保存されるのを防ぐ。
func Validate(detail model.RevisionDetail) error {
	spec, ok := LookupPath(detail.Path)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedPath, detail.Path)
	}
	_, err := spec.decode(detail)
	return err
}

// change はデコード済みの修正内容。適用前に検証を終えておくことで、
// 適用途中での部分的な書き換えを防ぐ。
type change struct {
	op   model.Operation
	list []string
	time *time.Time
}

func (p PathSpec) decode(detail model.RevisionDetail) (change, error) {
	c := change{op: detail.Operation}
	switch detail.Operation {
	case model.OperationSetAdd, model.OperationSetDelete:
		if p.kind != kindList {
			return c, fmt.Errorf("%w: %s on %s", ErrUnsupportedOperation, detail.Operation, p.Path)
		}
		list, err := decodeList(detail.Value)
		if err != nil {
			return c, err
		}
		if list == nil {
			return c, fmt.Errorf("%w: %s requires a list", ErrInvalidValue, detail.Operation)
		}
		c.list = list
	case model.OperationFieldSet:
		switch p.kind {
		case kindList:
			list, err := decodeList(detail.Value)
			if err != nil {
				return c, err
			}
			c.list = list
		case kindTime:
			t, err := decodeTime(detail.Value)
			if err != nil {
				return c, err
			}
			c.time = t
		}
	default:
		return c, fmt.Errorf("%w: %q", ErrUnsupportedOperation, detail.Operation)
	}
	return c, nil
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

func decodeList(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: expected a string list: %v", ErrInvalidValue, err)
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

// decodeTime はミリ秒のUNIX時刻、RFC3339文字列、または日付文字列（2006-01-02）を受け付ける。
func decodeTime(raw json.RawMessage) (*time.Time, error) {
	if isNull(raw) {
		return nil, nil
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		t := time.UnixMilli(ms).UTC()
		return &t, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: expected a timestamp", ErrInvalidValue)
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: unparsable timestamp %q", ErrInvalidValue, s)
}
