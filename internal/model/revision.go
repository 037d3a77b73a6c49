package model

import (
	"encoding/json"
	"time"
)

// Operation は修正操作の種別を表す。
type Operation string

const (
	// OperationSetAdd は集合への要素追加（重複なしの和集合）。
	OperationSetAdd Operation = "set.add"
	// OperationSetDelete は集合からの要素削除。
	OperationSetDelete Operation = "set.delete"
	// OperationFieldSet はフィールド値の上書き。
	OperationFieldSet Operation = "field.set"
)

// Valid は定義済みの操作種別かどうかを返す。
func (o Operation) Valid() bool {
	switch o {
	case OperationSetAdd, OperationSetDelete, OperationFieldSet:
		return true
	default:
		return false
	}
}

// RevisionDetail は1件の修正内容。
// Value の型は Path と Operation の組み合わせによって決まる。
type RevisionDetail struct {
	Operation Operation       `json:"operation"`
	Path      string          `json:"path"`
	Value     json.RawMessage `json:"value"`
}

// Revision は条目に対する修正履歴の1エントリ。
// 作成後は Enabled 以外を変更しない。無効化は論理的な切り替えで、行は削除しない。
type Revision struct {
	ID        int64          `json:"id"`
	SubjectID int64          `json:"subjectId"`
	Enabled   bool           `json:"enabled"`
	Detail    RevisionDetail `json:"detail"`
	CreatedAt time.Time      `json:"createdAt"`
}
