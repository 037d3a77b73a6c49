package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/bgmx/internal/model"
	"github.com/hitoshi/bgmx/internal/pagination"
)

// BangumiServiceInterface はbgm.tv生データのハンドラーが必要とするサービスインターフェース。
type BangumiServiceInterface interface {
	GetBangumi(ctx context.Context, id int64) (*model.Bangumi, error)
	PutBangumi(ctx context.Context, id int64, data *model.BangumiData) (*model.Bangumi, error)
	ListBangumis(ctx context.Context, cursor int64, limit int) (pagination.Page[*model.Bangumi], error)
}

// BangumiHandler はbgm.tv生データのHTTPハンドラー。
type BangumiHandler struct {
	service BangumiServiceInterface
}

// NewBangumiHandler はBangumiHandlerを生成する。
func NewBangumiHandler(service BangumiServiceInterface) *BangumiHandler {
	return &BangumiHandler{service: service}
}

// putBangumiRequest は生データ保存リクエストのボディ。
type putBangumiRequest struct {
	Data *model.BangumiData `json:"data"`
}

// GetBangumi は生データを返す。
// GET /bangumi/{id}
func (h *BangumiHandler) GetBangumi(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeInvalidRequest(w, r, "id must be a positive integer")
		return
	}

	bangumi, err := h.service.GetBangumi(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeData(w, bangumi)
}

// PutBangumi は生データを保存し、条目を再構築する。
// PUT /bangumi/{id}
func (h *BangumiHandler) PutBangumi(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeInvalidRequest(w, r, "id must be a positive integer")
		return
	}

	var req putBangumiRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeInvalidRequest(w, r, "リクエストボディの解析に失敗しました")
		return
	}

	bangumi, err := h.service.PutBangumi(r.Context(), id, req.Data)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeData(w, bangumi)
}

// ListBangumis は生データをカーソルでページ分割して返す。
// GET /bangumis?cursor=&limit=
func (h *BangumiHandler) ListBangumis(w http.ResponseWriter, r *http.Request) {
	cursor, limit, ok := pageParams(r)
	if !ok {
		writeInvalidRequest(w, r, "cursor must be >= 0 and limit must be in 1..1000")
		return
	}

	page, err := h.service.ListBangumis(r.Context(), cursor, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writePage(w, page)
}
