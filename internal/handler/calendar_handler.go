package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/bgmx/internal/model"
)

// CalendarServiceInterface は放送カレンダーのハンドラーが必要とするサービスインターフェース。
type CalendarServiceInterface interface {
	GetCalendar(ctx context.Context) (*model.Calendar, error)
	UpdateCalendar(ctx context.Context, entries []model.CalendarEntry) error
}

// CalendarHandler は放送カレンダーのHTTPハンドラー。
type CalendarHandler struct {
	service CalendarServiceInterface
}

// NewCalendarHandler はCalendarHandlerを生成する。
func NewCalendarHandler(service CalendarServiceInterface) *CalendarHandler {
	return &CalendarHandler{service: service}
}

// updateCalendarRequest はカレンダー更新リクエストのボディ。
type updateCalendarRequest struct {
	Calendar []model.CalendarEntry `json:"calendar"`
}

// GetCalendar は曜日ごとの放送一覧とWeb配信一覧を返す。
// GET /calendar
func (h *CalendarHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	cal, err := h.service.GetCalendar(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeData(w, cal)
}

// UpdateCalendar はカレンダー全体を置き換える。
// POST /calendar
func (h *CalendarHandler) UpdateCalendar(w http.ResponseWriter, r *http.Request) {
	var req updateCalendarRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeInvalidRequest(w, r, "リクエストボディの解析に失敗しました")
		return
	}
	if req.Calendar == nil {
		writeInvalidRequest(w, r, "calendar is required")
		return
	}

	if err := h.service.UpdateCalendar(r.Context(), req.Calendar); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeData(w, map[string]int{"count": len(req.Calendar)})
}
