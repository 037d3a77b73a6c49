// Package handler はbgmwのHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bgmx/internal/middleware"
	"github.com/hitoshi/bgmx/internal/model"
	"github.com/hitoshi/bgmx/internal/pagination"
)

// dataResponse は成功レスポンスの統一フォーマット。
type dataResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

// pageResponse はカーソルページの成功レスポンス。次ページがない場合 nextCursor はnull。
type pageResponse struct {
	OK         bool   `json:"ok"`
	Data       any    `json:"data"`
	NextCursor *int64 `json:"nextCursor"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeData は {"ok": true, "data": ...} を200で書き込む。
func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, dataResponse{OK: true, Data: data})
}

// writePage はカーソルページを200で書き込む。
func writePage[T any](w http.ResponseWriter, page pagination.Page[T]) {
	writeJSON(w, http.StatusOK, pageResponse{OK: true, Data: page.Data, NextCursor: page.NextCursor})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, r, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	middleware.WriteInternalServerError(w, r)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeSubjectNotFound, model.ErrCodeBangumiNotFound, model.ErrCodeRevisionNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidRevision, model.ErrCodeInvalidCalendar:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeInvalidRequest は400 INVALID_REQUEST を書き込む。
func writeInvalidRequest(w http.ResponseWriter, r *http.Request, reason string) {
	middleware.WriteErrorResponse(w, r, http.StatusBadRequest, model.NewInvalidRequestError(reason))
}

// idParam はURLパラメータを正の整数として解釈する。
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pageParams はクエリの cursor と limit を解釈する。
// cursor の既定値は0、limit の既定値は100で最大1000。
func pageParams(r *http.Request) (cursor int64, limit int, ok bool) {
	q := r.URL.Query()

	if v := q.Get("cursor"); v != "" {
		c, err := strconv.ParseInt(v, 10, 64)
		if err != nil || c < 0 {
			return 0, 0, false
		}
		cursor = c
	}

	limit = pagination.DefaultLimit
	if v := q.Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l <= 0 || l > pagination.MaxLimit {
			return 0, 0, false
		}
		limit = l
	}
	return cursor, limit, true
}

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 4 << 20

// decodeBody はリクエストボディをJSONとして読み込む。
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
