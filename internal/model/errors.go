// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, subject, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeSubjectNotFound  = "SUBJECT_NOT_FOUND"
	ErrCodeBangumiNotFound  = "BANGUMI_NOT_FOUND"
	ErrCodeRevisionNotFound = "REVISION_NOT_FOUND"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeInvalidRevision  = "INVALID_REVISION"
	ErrCodeInvalidCalendar  = "INVALID_CALENDAR"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
)

// NewSubjectNotFoundError は条目未検出エラーを生成する。
func NewSubjectNotFoundError(subjectID int64) *APIError {
	return &APIError{
		Code:     ErrCodeSubjectNotFound,
		Message:  fmt.Sprintf("指定された条目が見つかりません: %d", subjectID),
		Category: "subject",
		Action:   "条目IDを確認してください。",
	}
}

// NewBangumiNotFoundError はbangumiデータ未検出エラーを生成する。
func NewBangumiNotFoundError(bangumiID int64) *APIError {
	return &APIError{
		Code:     ErrCodeBangumiNotFound,
		Message:  fmt.Sprintf("指定されたbangumiデータが見つかりません: %d", bangumiID),
		Category: "subject",
		Action:   "先に同期コマンドでbangumiデータを登録してください。",
	}
}

// NewRevisionNotFoundError は修正履歴未検出エラーを生成する。
func NewRevisionNotFoundError(subjectID, revisionID int64) *APIError {
	return &APIError{
		Code:     ErrCodeRevisionNotFound,
		Message:  fmt.Sprintf("指定された修正履歴が見つかりません: subject=%d revision=%d", subjectID, revisionID),
		Category: "subject",
		Action:   "修正履歴の一覧からIDを確認してください。",
	}
}

// NewInvalidRequestError は入力値不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力値を確認してください。",
	}
}

// NewInvalidRevisionError は修正内容の検証エラーを生成する。
func NewInvalidRevisionError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRevision,
		Message:  fmt.Sprintf("修正内容が不正です: %s", reason),
		Category: "validation",
		Action:   "search.include、search.exclude、search.keywords、search.after、search.before のいずれかを指定してください。",
	}
}

// NewInvalidCalendarError はカレンダー入力の検証エラーを生成する。
func NewInvalidCalendarError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCalendar,
		Message:  fmt.Sprintf("カレンダーが不正です: %s", reason),
		Category: "validation",
		Action:   "platformはtvまたはweb、weekdayは0〜6で指定してください。",
	}
}

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "APIシークレットを Authorization ヘッダーに指定してください。",
	}
}
