package model

import "fmt"

// SyncError は同期処理における1件の条目更新失敗を表す。
// Permanent がfalseのものはリトライ対象。全ラウンドを終えても残ったものはtrueになる。
type SyncError struct {
	ID        int64
	Round     int // 0は初回フェーズ、1以降はリトライラウンド
	Permanent bool
	Err       error
}

// Error はerrorインターフェースを実装する。
func (e *SyncError) Error() string {
	return fmt.Sprintf("subject %d: %v", e.ID, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *SyncError) Unwrap() error {
	return e.Err
}
