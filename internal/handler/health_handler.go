package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker は依存先の疎通確認を行う関数。
type HealthChecker func(ctx context.Context) error

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// NewHealthHandler はヘルスチェックのハンドラーを返す。
// check がnilでなければデータベースなどの疎通を確認し、失敗時は503を返す。
func NewHealthHandler(check HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{OK: false, Message: "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{OK: true, Message: "bgmx"})
	}
}
