package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/bgmx/internal/model"
	"github.com/hitoshi/bgmx/internal/pagination"
	"github.com/hitoshi/bgmx/internal/subject"
)

// SubjectServiceInterface は条目ハンドラーが必要とするサービスインターフェース。
type SubjectServiceInterface interface {
	// GetSubject は条目と有効な修正履歴を返す。
	GetSubject(ctx context.Context, id int64) (*subject.SubjectWithRevisions, error)
	// ListRevisions は条目と全修正履歴を返す。
	ListRevisions(ctx context.Context, id int64) (*subject.SubjectWithRevisions, error)
	// CreateRevision は修正履歴を作成して条目を再構築する。
	CreateRevision(ctx context.Context, id int64, detail model.RevisionDetail) (*subject.SubjectWithRevisions, error)
	// EnableRevision は修正履歴を有効にして条目を再構築する。
	EnableRevision(ctx context.Context, id, revisionID int64) (*subject.SubjectWithRevisions, error)
	// DisableRevision は修正履歴を無効にして条目を再構築する。
	DisableRevision(ctx context.Context, id, revisionID int64) (*subject.SubjectWithRevisions, error)
	// ListSubjects は条目をカーソルでページ分割して返す。
	ListSubjects(ctx context.Context, cursor int64, limit int) (pagination.Page[*model.Subject], error)
}

// SubjectHandler は条目と修正履歴のHTTPハンドラー。
type SubjectHandler struct {
	service SubjectServiceInterface
}

// NewSubjectHandler はSubjectHandlerを生成する。
func NewSubjectHandler(service SubjectServiceInterface) *SubjectHandler {
	return &SubjectHandler{service: service}
}

// createRevisionRequest は修正履歴作成リクエストのボディ。
type createRevisionRequest struct {
	Detail *model.RevisionDetail `json:"detail"`
}

// GetSubject は条目と有効な修正履歴を返す。
// GET /subject/{id}
func (h *SubjectHandler) GetSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeInvalidRequest(w, r, "id must be a positive integer")
		return
	}

	result, err := h.service.GetSubject(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeData(w, result)
}

// ListRevisions は無効化されたものを含む全修正履歴を返す。
// GET /subject/{id}/revisions
func (h *SubjectHandler) ListRevisions(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeInvalidRequest(w, r, "id must be a positive integer")
		return
	}

	result, err := h.service.ListRevisions(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeData(w, result)
}

// CreateRevision は修正履歴を作成する。
// POST /subject/{id}/revision
func (h *SubjectHandler) CreateRevision(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeInvalidRequest(w, r, "id must be a positive integer")
		return
	}

	var req createRevisionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeInvalidRequest(w, r, "リクエストボディの解析に失敗しました")
		return
	}
	if req.Detail == nil {
		writeInvalidRequest(w, r, "detail is required")
		return
	}

	result, err := h.service.CreateRevision(r.Context(), id, *req.Detail)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeData(w, result)
}

// EnableRevision は修正履歴を有効にする。
// PUT /subject/{id}/revision/{rid}
func (h *SubjectHandler) EnableRevision(w http.ResponseWriter, r *http.Request) {
	h.toggleRevision(w, r, h.service.EnableRevision)
}

// DisableRevision は修正履歴を無効にする。行は削除しない。
// DELETE /subject/{id}/revision/{rid}
func (h *SubjectHandler) DisableRevision(w http.ResponseWriter, r *http.Request) {
	h.toggleRevision(w, r, h.service.DisableRevision)
}

func (h *SubjectHandler) toggleRevision(
	w http.ResponseWriter,
	r *http.Request,
	toggle func(ctx context.Context, id, revisionID int64) (*subject.SubjectWithRevisions, error),
) {
	id, ok := idParam(r, "id")
	if !ok {
		writeInvalidRequest(w, r, "id must be a positive integer")
		return
	}
	rid, ok := idParam(r, "rid")
	if !ok {
		writeInvalidRequest(w, r, "rid must be a positive integer")
		return
	}

	result, err := toggle(r.Context(), id, rid)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeData(w, result)
}

// ListSubjects は条目をカーソルでページ分割して返す。
// GET /subjects?cursor=&limit=
func (h *SubjectHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	cursor, limit, ok := pageParams(r)
	if !ok {
		writeInvalidRequest(w, r, "cursor must be >= 0 and limit must be in 1..1000")
		return
	}

	page, err := h.service.ListSubjects(r.Context(), cursor, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writePage(w, page)
}
