package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/bgmx/internal/middleware"
	"github.com/hitoshi/bgmx/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	HTTPRecorder      middleware.HTTPRecorder
	CORSAllowedOrigin string
	APISecret         string
	RateLimiter       *middleware.RateLimiter

	// サービス
	SubjectService  SubjectServiceInterface
	BangumiService  BangumiServiceInterface
	CalendarService CalendarServiceInterface

	// 任意
	HealthCheck    HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestID → Logging → Recovery → SecurityHeaders → CORS
//
// 書き込み系と修正履歴一覧のルートには、さらに BearerAuth → RateLimit(Write) を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.HTTPRecorder))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeInvalidRoute(w, r, http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeInvalidRoute(w, r, http.StatusMethodNotAllowed)
	})

	subjectHandler := NewSubjectHandler(deps.SubjectService)
	bangumiHandler := NewBangumiHandler(deps.BangumiService)
	calendarHandler := NewCalendarHandler(deps.CalendarService)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthCheck))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Get("/subject/{id}", subjectHandler.GetSubject)
	r.Get("/subjects", subjectHandler.ListSubjects)
	r.Get("/bangumi/{id}", bangumiHandler.GetBangumi)
	r.Get("/bangumis", bangumiHandler.ListBangumis)
	r.Get("/calendar", calendarHandler.GetCalendar)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: BearerAuth → RateLimit(Write)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewBearerAuthMiddleware(deps.APISecret))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.WriteMiddleware())
		}

		r.Get("/subject/{id}/revisions", subjectHandler.ListRevisions)
		r.Post("/subject/{id}/revision", subjectHandler.CreateRevision)
		r.Put("/subject/{id}/revision/{rid}", subjectHandler.EnableRevision)
		r.Delete("/subject/{id}/revision/{rid}", subjectHandler.DisableRevision)
		r.Put("/bangumi/{id}", bangumiHandler.PutBangumi)
		r.Post("/calendar", calendarHandler.UpdateCalendar)
	})

	return r
}

// writeInvalidRoute は存在しないルートへのアクセスに統一フォーマットで応答する。
func writeInvalidRoute(w http.ResponseWriter, r *http.Request, status int) {
	middleware.WriteErrorResponse(w, r, status, &model.APIError{
		Code:     "ROUTE_NOT_FOUND",
		Message:  http.StatusText(status),
		Category: "validation",
		Action:   "APIのパスとメソッドを確認してください。",
	})
}
