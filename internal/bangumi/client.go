// Package bangumi はbgm.tv APIのクライアントを提供する。
// 条目データの取得と、上流への呼び出し間隔の制御を含む。
package bangumi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/hitoshi/bgmx/internal/model"
)

const (
	// DefaultBaseURL はbgm.tv APIのベースURL。
	DefaultBaseURL = "https://api.bgm.tv"
	// DefaultUserAgent はbgm.tv APIに送るUser-Agent。
	// bgm.tvはUser-Agentの指定を求めている。
	DefaultUserAgent = "hitoshi/bgmx (https://github.com/hitoshi/bgmx)"
	// maxResponseSize はレスポンスボディの最大サイズ（4MB）。
	maxResponseSize = 4 << 20
)

// ErrNotFound は条目がbgm.tvに存在しないことを示す。
var ErrNotFound = errors.New("bangumi subject not found")

// StatusError はbgm.tv APIが想定外のステータスを返したことを示す。
type StatusError struct {
	StatusCode int
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("bgm.tv APIがステータス %d を返しました", e.StatusCode)
}

// Temporary は時間をおいて再試行すれば成功しうるステータスかどうかを返す（429/5xx）。
func (e *StatusError) Temporary() bool {
	return ClassifyHTTPStatus(e.StatusCode) == StatusBackoff
}

// StatusClass はHTTPステータスコードに基づく応答の分類。
type StatusClass int

const (
	// StatusOK は取得成功（200）。
	StatusOK StatusClass = iota
	// StatusMissing は条目が存在しない（404/410）。
	StatusMissing
	// StatusDenied は認証・権限エラー（401/403）。
	StatusDenied
	// StatusBackoff は時間をおいて再試行すべきステータス（429/5xx）。
	StatusBackoff
	// StatusUnknown は未知のステータスコード。
	StatusUnknown
)

// ClassifyHTTPStatus はHTTPステータスコードを分類する。
func ClassifyHTTPStatus(statusCode int) StatusClass {
	switch {
	case statusCode == http.StatusOK:
		return StatusOK
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return StatusMissing
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return StatusDenied
	case statusCode == http.StatusTooManyRequests:
		return StatusBackoff
	case statusCode >= 500:
		return StatusBackoff
	default:
		return StatusUnknown
	}
}

// Options はClientの設定。
type Options struct {
	BaseURL   string  // 空の場合は DefaultBaseURL
	UserAgent string  // 空の場合は DefaultUserAgent
	RateLimit float64 // 1秒あたりの最大リクエスト数。0以下の場合は制限しない
}

// Client はbgm.tv APIのクライアント。
// 複数のgoroutineから同時に使用できる。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		limiter:    limiter,
	}
}

// GetSubject は条目データを取得する。
// 条目が存在しない場合は ErrNotFound を返す。
func (c *Client) GetSubject(ctx context.Context, id int64) (*model.BangumiData, error) {
	if id <= 0 {
		return nil, fmt.Errorf("不正な条目IDです: %d", id)
	}

	reqURL, err := url.JoinPath(c.baseURL, "v0", "subjects", strconv.FormatInt(id, 10))
	if err != nil {
		return nil, fmt.Errorf("リクエストURLの構築に失敗しました: %w", err)
	}

	// 上流への呼び出し間隔を制御する
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("bgm.tv APIの呼び出しに失敗しました",
			slog.Int64("subject_id", id),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case StatusOK:
	case StatusMissing:
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	default:
		c.logger.Warn("bgm.tv APIがエラーステータスを返しました",
			slog.Int64("subject_id", id),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var data model.BangumiData
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error("bgm.tv APIのレスポンスのパースに失敗しました",
			slog.Int64("subject_id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if data.ID == 0 {
		data.ID = id
	}
	return &data, nil
}
