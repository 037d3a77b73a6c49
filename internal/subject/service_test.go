package subject

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/bgmx/internal/model"
	"github.com/hitoshi/bgmx/internal/pagination"
)

// --- モック ---

// memStore はテスト用のインメモリリポジトリ。4つのリポジトリインターフェースをすべて満たす。
type memStore struct {
	bangumis  map[int64]*model.Bangumi
	subjects  map[int64]*model.Subject
	revisions []model.Revision
	calendar  []model.CalendarEntry
	nextRevID int64

	upsertSubjectFn func(ctx context.Context, s *model.Subject) (*model.Subject, error)
}

func newMemStore() *memStore {
	return &memStore{
		bangumis: make(map[int64]*model.Bangumi),
		subjects: make(map[int64]*model.Subject),
	}
}

type bangumiRepo struct{ *memStore }
type subjectRepo struct{ *memStore }
type revisionRepo struct{ *memStore }
type calendarRepo struct{ *memStore }

func (r bangumiRepo) FindByID(ctx context.Context, id int64) (*model.Bangumi, error) {
	return r.bangumis[id], nil
}
func (r bangumiRepo) Upsert(ctx context.Context, id int64, data *model.BangumiData) (*model.Bangumi, error) {
	b := &model.Bangumi{ID: id, Data: *data}
	r.bangumis[id] = b
	return b, nil
}
func (r bangumiRepo) ListAfter(ctx context.Context, cursor int64, limit int) ([]*model.Bangumi, error) {
	var out []*model.Bangumi
	for _, id := range sortedKeys(r.bangumis) {
		if id > cursor && len(out) < limit {
			out = append(out, r.bangumis[id])
		}
	}
	return out, nil
}

func (r subjectRepo) FindByID(ctx context.Context, id int64) (*model.Subject, error) {
	return r.subjects[id], nil
}
func (r subjectRepo) Upsert(ctx context.Context, s *model.Subject) (*model.Subject, error) {
	if r.upsertSubjectFn != nil {
		return r.upsertSubjectFn(ctx, s)
	}
	r.subjects[s.ID] = s
	return s, nil
}
func (r subjectRepo) ListAfter(ctx context.Context, cursor int64, limit int) ([]*model.Subject, error) {
	var out []*model.Subject
	for _, id := range sortedKeys(r.subjects) {
		if id > cursor && len(out) < limit {
			out = append(out, r.subjects[id])
		}
	}
	return out, nil
}

func (r revisionRepo) Create(ctx context.Context, subjectID int64, detail model.RevisionDetail) (*model.Revision, error) {
	r.nextRevID++
	rev := model.Revision{ID: r.nextRevID, SubjectID: subjectID, Enabled: true, Detail: detail}
	r.revisions = append(r.revisions, rev)
	return &rev, nil
}
func (r revisionRepo) ListEnabled(ctx context.Context, subjectID int64) ([]model.Revision, error) {
	out := []model.Revision{}
	for _, rev := range r.revisions {
		if rev.SubjectID == subjectID && rev.Enabled {
			out = append(out, rev)
		}
	}
	return out, nil
}
func (r revisionRepo) ListAll(ctx context.Context, subjectID int64) ([]model.Revision, error) {
	out := []model.Revision{}
	for _, rev := range r.revisions {
		if rev.SubjectID == subjectID {
			out = append(out, rev)
		}
	}
	return out, nil
}
func (r revisionRepo) Enable(ctx context.Context, subjectID, revisionID int64) (*model.Revision, error) {
	return r.set(subjectID, revisionID, true), nil
}
func (r revisionRepo) Disable(ctx context.Context, subjectID, revisionID int64) (*model.Revision, error) {
	return r.set(subjectID, revisionID, false), nil
}
func (r revisionRepo) set(subjectID, revisionID int64, enabled bool) *model.Revision {
	for i := range r.revisions {
		if r.revisions[i].ID == revisionID && r.revisions[i].SubjectID == subjectID {
			r.revisions[i].Enabled = enabled
			rev := r.revisions[i]
			return &rev
		}
	}
	return nil
}

func (r calendarRepo) Replace(ctx context.Context, entries []model.CalendarEntry) error {
	r.calendar = slices.Clone(entries)
	return nil
}
func (r calendarRepo) ListActive(ctx context.Context) ([]model.CalendarSubject, error) {
	var out []model.CalendarSubject
	for _, e := range r.calendar {
		s, ok := r.subjects[e.ID]
		if !ok {
			continue
		}
		out = append(out, model.CalendarSubject{Subject: *s, Platform: e.Platform, Weekday: e.Weekday})
	}
	return out, nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

type mockFoldRecorder struct {
	results []bool
}

func (m *mockFoldRecorder) RecordFold(ok bool) { m.results = append(m.results, ok) }

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestService(store *memStore, recorder FoldRecorder, buf *bytes.Buffer) *Service {
	return NewService(bangumiRepo{store}, subjectRepo{store}, revisionRepo{store}, calendarRepo{store}, recorder, newTestLogger(buf))
}

func listDetail(op model.Operation, path string, values ...string) model.RevisionDetail {
	raw, _ := json.Marshal(values)
	return model.RevisionDetail{Operation: op, Path: path, Value: raw}
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorであるべき: %v", err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
}

// --- テスト ---

func TestService_PutBangumi_BuildsSubject(t *testing.T) {
	var buf bytes.Buffer
	store := newMemStore()
	svc := newTestService(store, nil, &buf)

	_, err := svc.PutBangumi(context.Background(), 1, &model.BangumiData{
		ID:      1,
		Name:    "Frieren",
		NameCN:  "葬送的芙莉莲",
		Summary: "<p>旅の&amp;物語</p>",
	})
	if err != nil {
		t.Fatalf("PutBangumi に失敗: %v", err)
	}

	s := store.subjects[1]
	if s == nil {
		t.Fatal("条目が保存されるべき")
	}
	if s.Title != "葬送的芙莉莲" {
		t.Errorf("Title = %q", s.Title)
	}
	if s.Data.Summary != "旅の&物語" {
		t.Errorf("Summary = %q", s.Data.Summary)
	}
	if !slices.Equal(s.Search.Include, []string{"葬送的芙莉莲", "Frieren"}) {
		t.Errorf("Search.Include = %v", s.Search.Include)
	}
}

func TestService_PutBangumi_ReappliesRevisions(t *testing.T) {
	var buf bytes.Buffer
	store := newMemStore()
	svc := newTestService(store, nil, &buf)
	ctx := context.Background()

	if _, err := svc.PutBangumi(ctx, 1, &model.BangumiData{ID: 1, Name: "A"}); err != nil {
		t.Fatalf("PutBangumi に失敗: %v", err)
	}
	if _, err := svc.CreateRevision(ctx, 1, listDetail(model.OperationSetAdd, "search.keywords", "kw")); err != nil {
		t.Fatalf("CreateRevision に失敗: %v", err)
	}

	// 生データの更新後も修正履歴は保持される
	if _, err := svc.PutBangumi(ctx, 1, &model.BangumiData{ID: 1, Name: "B"}); err != nil {
		t.Fatalf("PutBangumi に失敗: %v", err)
	}
	s := store.subjects[1]
	if s.Title != "B" {
		t.Errorf("Title = %q, want B", s.Title)
	}
	if !slices.Equal(s.Search.Keywords, []string{"kw"}) {
		t.Errorf("Search.Keywords = %v", s.Search.Keywords)
	}
}

func TestService_PutBangumi_Validation(t *testing.T) {
	var buf bytes.Buffer
	svc := newTestService(newMemStore(), nil, &buf)

	_, err := svc.PutBangumi(context.Background(), 1, nil)
	assertAPIErrorCode(t, err, model.ErrCodeInvalidRequest)

	_, err = svc.PutBangumi(context.Background(), 1, &model.BangumiData{ID: 2})
	assertAPIErrorCode(t, err, model.ErrCodeInvalidRequest)
}

func TestService_GetSubject_NotFound(t *testing.T) {
	var buf bytes.Buffer
	svc := newTestService(newMemStore(), nil, &buf)

	_, err := svc.GetSubject(context.Background(), 42)
	assertAPIErrorCode(t, err, model.ErrCodeSubjectNotFound)
}

func TestService_GetSubject_ReturnsEnabledRevisionsOnly(t *testing.T) {
	var buf bytes.Buffer
	store := newMemStore()
	svc := newTestService(store, nil, &buf)
	ctx := context.Background()

	svc.PutBangumi(ctx, 1, &model.BangumiData{ID: 1, Name: "A"})
	svc.CreateRevision(ctx, 1, listDetail(model.OperationSetAdd, "search.include", "x"))
	svc.CreateRevision(ctx, 1, listDetail(model.OperationSetAdd, "search.include", "y"))
	if _, err := svc.DisableRevision(ctx, 1, 1); err != nil {
		t.Fatalf("DisableRevision に失敗: %v", err)
	}

	got, err := svc.GetSubject(ctx, 1)
	if err != nil {
		t.Fatalf("GetSubject に失敗: %v", err)
	}
	if len(got.Revisions) != 1 || got.Revisions[0].ID != 2 {
		t.Errorf("Revisions = %+v", got.Revisions)
	}
	if !slices.Equal(got.Subject.Search.Include, []string{"A", "y"}) {
		t.Errorf("Search.Include = %v", got.Subject.Search.Include)
	}

	all, err := svc.ListRevisions(ctx, 1)
	if err != nil {
		t.Fatalf("ListRevisions に失敗: %v", err)
	}
	if len(all.Revisions) != 2 {
		t.Errorf("ListRevisions = %d件, want 2", len(all.Revisions))
	}
}

func TestService_CreateRevision_FoldsInOrder(t *testing.T) {
	var buf bytes.Buffer
	store := newMemStore()
	recorder := &mockFoldRecorder{}
	svc := newTestService(store, recorder, &buf)
	ctx := context.Background()

	svc.PutBangumi(ctx, 1, &model.BangumiData{ID: 1, Name: "A"})
	svc.CreateRevision(ctx, 1, listDetail(model.OperationSetAdd, "search.include", "B"))
	svc.CreateRevision(ctx, 1, listDetail(model.OperationSetAdd, "search.include", "C"))
	got, err := svc.CreateRevision(ctx, 1, listDetail(model.OperationSetDelete, "search.include", "A"))
	if err != nil {
		t.Fatalf("CreateRevision に失敗: %v", err)
	}

	if !slices.Equal(got.Subject.Search.Include, []string{"B", "C"}) {
		t.Errorf("Search.Include = %v, want [B C]", got.Subject.Search.Include)
	}
	if len(got.Revisions) != 3 {
		t.Errorf("Revisions = %d件, want 3", len(got.Revisions))
	}
	for i, ok := range recorder.results {
		if !ok {
			t.Errorf("fold[%d] は成功すべき", i)
		}
	}
}

func TestService_CreateRevision_NormalizesListValues(t *testing.T) {
	var buf bytes.Buffer
	store := newMemStore()
	svc := newTestService(store, nil, &buf)
	ctx := context.Background()

	svc.PutBangumi(ctx, 1, &model.BangumiData{ID: 1, Name: "A"})
	// か + 結合用濁点 はNFCで が になる
	if _, err := svc.CreateRevision(ctx, 1, listDetail(model.OperationSetAdd, "search.keywords", " \u304b\u3099 ", "", "\u304c")); err != nil {
		t.Fatalf("CreateRevision に失敗: %v", err)
	}

	var stored []string
	json.Unmarshal(store.revisions[0].Detail.Value, &stored)
	if !slices.Equal(stored, []string{"\u304c"}) {
		t.Errorf("保存された値 = %q, want [が]", stored)
	}
}

func TestService_CreateRevision_Invalid(t *testing.T) {
	var buf bytes.Buffer
	store := newMemStore()
	svc := newTestService(store, nil, &buf)
	ctx := context.Background()
	svc.PutBangumi(ctx, 1, &model.BangumiData{ID: 1, Name: "A"})

	tests := []struct {
		name   string
		detail model.RevisionDetail
	}{
		{"未知のパス", listDetail(model.OperationSetAdd, "bogus.path", "x")},
		{"未知の操作", listDetail("set.merge", "search.include", "x")},
		{"時刻への集合操作", listDetail(model.OperationSetAdd, "search.after", "x")},
		{"値の型不一致", model.RevisionDetail{Operation: model.OperationSetAdd, Path: "search.include", Value: json.RawMessage(`"x"`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRevision(ctx, 1, tt.detail)
			assertAPIErrorCode(t, err, model.ErrCodeInvalidRevision)
		})
	}
	if len(store.revisions) != 0 {
		t.Errorf("不正な修正履歴は保存されないべき: %d件", len(store.revisions))
	}
}

func TestService_CreateRevision_BangumiNotFound(t *testing.T) {
	var buf bytes.Buffer
	svc := newTestService(newMemStore(), nil, &buf)

	_, err := svc.CreateRevision(context.Background(), 9, listDetail(model.OperationSetAdd, "search.include", "x"))
	assertAPIErrorCode(t, err, model.ErrCodeBangumiNotFound)
}

func TestService_ToggleRevision_NotFound(t *testing.T) {
	var buf bytes.Buffer
	store := newMemStore()
	svc := newTestService(store, nil, &buf)
	ctx := context.Background()
	svc.PutBangumi(ctx, 1, &model.BangumiData{ID: 1, Name: "A"})

	_, err := svc.EnableRevision(ctx, 1, 99)
	assertAPIErrorCode(t, err, model.ErrCodeRevisionNotFound)

	_, err = svc.DisableRevision(ctx, 2, 1)
	assertAPIErrorCode(t, err, model.ErrCodeBangumiNotFound)
}

func TestService_Rebuild_PartialFoldIsPersisted(t *testing.T) {
	var buf bytes.Buffer
	store := newMemStore()
	recorder := &mockFoldRecorder{}
	svc := newTestService(store, recorder, &buf)
	ctx := context.Background()

	b, _ := svc.PutBangumi(ctx, 1, &model.BangumiData{ID: 1, Name: "A"})
	// 作成時の検証を経由しない壊れた修正履歴
	store.revisions = append(store.revisions,
		model.Revision{ID: 1, SubjectID: 1, Enabled: true, Detail: listDetail(model.OperationSetAdd, "search.keywords", "k")},
		model.Revision{ID: 2, SubjectID: 1, Enabled: true, Detail: listDetail(model.OperationSetAdd, "bogus.path", "x")},
		model.Revision{ID: 3, SubjectID: 1, Enabled: true, Detail: listDetail(model.OperationSetAdd, "search.exclude", "e")},
	)

	s, err := svc.Rebuild(ctx, b)
	if err != nil {
		t.Fatalf("Rebuild に失敗: %v", err)
	}
	if !slices.Equal(s.Search.Keywords, []string{"k"}) {
		t.Errorf("Keywords = %v", s.Search.Keywords)
	}
	if s.Search.Exclude != nil {
		t.Errorf("失敗以降の修正は適用されないべき: %v", s.Search.Exclude)
	}
	if got := recorder.results[len(recorder.results)-1]; got {
		t.Error("RecordFold(false) が記録されるべき")
	}
	if !strings.Contains(buf.String(), "途中までの結果を保存します") {
		t.Errorf("警告ログが出力されるべき: %s", buf.String())
	}
}

func TestService_Rebuild_StoreError(t *testing.T) {
	var buf bytes.Buffer
	store := newMemStore()
	store.upsertSubjectFn = func(ctx context.Context, s *model.Subject) (*model.Subject, error) {
		return nil, errors.New("db down")
	}
	svc := newTestService(store, nil, &buf)

	_, err := svc.PutBangumi(context.Background(), 1, &model.BangumiData{ID: 1, Name: "A"})
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Errorf("保存エラーが伝播すべき: %v", err)
	}
}

func TestService_ListAndWalkBangumis(t *testing.T) {
	var buf bytes.Buffer
	store := newMemStore()
	svc := newTestService(store, nil, &buf)
	ctx := context.Background()
	for id := int64(1); id <= 3; id++ {
		svc.PutBangumi(ctx, id, &model.BangumiData{ID: id, Name: "x"})
	}

	page, err := svc.ListBangumis(ctx, 0, 2)
	if err != nil {
		t.Fatalf("ListBangumis に失敗: %v", err)
	}
	if len(page.Data) != 2 || page.NextCursor == nil || *page.NextCursor != 2 {
		t.Errorf("page = %+v", page)
	}

	subjects, err := svc.ListSubjects(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListSubjects に失敗: %v", err)
	}
	if len(subjects.Data) != 1 || subjects.NextCursor != nil {
		t.Errorf("subjects = %+v", subjects)
	}

	all, err := pagination.Collect(svc.Bangumis(ctx))
	if err != nil {
		t.Fatalf("Bangumis に失敗: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Bangumis = %d件, want 3", len(all))
	}
}

func TestService_Calendar(t *testing.T) {
	var buf bytes.Buffer
	store := newMemStore()
	svc := newTestService(store, nil, &buf)
	ctx := context.Background()
	for id := int64(1); id <= 3; id++ {
		svc.PutBangumi(ctx, id, &model.BangumiData{ID: id, Name: "x", Date: time.Now().Format(time.DateOnly)})
	}

	sunday := 6
	err := svc.UpdateCalendar(ctx, []model.CalendarEntry{
		{ID: 1, Platform: model.CalendarPlatformTV, Weekday: &sunday},
		{ID: 2, Platform: model.CalendarPlatformWeb},
		{ID: 3, Platform: model.CalendarPlatformTV}, // 曜日なしのTVはWebに入る
		{ID: 4, Platform: model.CalendarPlatformWeb}, // 条目なし
	})
	if err != nil {
		t.Fatalf("UpdateCalendar に失敗: %v", err)
	}

	cal, err := svc.GetCalendar(ctx)
	if err != nil {
		t.Fatalf("GetCalendar に失敗: %v", err)
	}
	if len(cal.Calendar[6]) != 1 || cal.Calendar[6][0].ID != 1 {
		t.Errorf("Calendar[6] = %+v", cal.Calendar[6])
	}
	if len(cal.Web) != 2 {
		t.Errorf("Web = %d件, want 2", len(cal.Web))
	}
	for i := 0; i < 6; i++ {
		if cal.Calendar[i] == nil {
			t.Errorf("Calendar[%d] は空スライスであるべき", i)
		}
	}
}

func TestValidateCalendar(t *testing.T) {
	bad := 7
	neg := -1
	tests := []struct {
		name    string
		entries []model.CalendarEntry
		wantErr bool
	}{
		{"空", nil, false},
		{"正常", []model.CalendarEntry{{ID: 1, Platform: model.CalendarPlatformWeb}}, false},
		{"不正なplatform", []model.CalendarEntry{{ID: 1, Platform: "radio"}}, true},
		{"曜日が範囲外", []model.CalendarEntry{{ID: 1, Platform: model.CalendarPlatformTV, Weekday: &bad}}, true},
		{"負の曜日", []model.CalendarEntry{{ID: 1, Platform: model.CalendarPlatformTV, Weekday: &neg}}, true},
		{"不正なID", []model.CalendarEntry{{ID: 0, Platform: model.CalendarPlatformWeb}}, true},
		{"ID重複", []model.CalendarEntry{{ID: 1, Platform: model.CalendarPlatformWeb}, {ID: 1, Platform: model.CalendarPlatformWeb}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCalendar(tt.entries)
			if tt.wantErr {
				assertAPIErrorCode(t, err, model.ErrCodeInvalidCalendar)
			} else if err != nil {
				t.Errorf("エラーを返すべきではない: %v", err)
			}
		})
	}
}
