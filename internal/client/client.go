// Package client はbgmw APIのクライアントを提供する。
// CLIから条目・修正履歴・bgm.tv生データ・放送カレンダーを読み書きする。
package client

import (
	"bytes"
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
	"time"
)

const (
	// DefaultBaseURL はbgmw APIのデフォルトのベースURL。
	DefaultBaseURL = "https://bgm.animes.garden"
	// maxResponseSize はレスポンスボディの最大サイズ（16MB）。
	maxResponseSize = 16 << 20
	// initialBackoff はリトライの初回待機時間。
	initialBackoff = 500 * time.Millisecond
	// maxBackoff はリトライの最大待機時間。
	maxBackoff = 8 * time.Second
)

// ErrSecretRequired は書き込み系APIの呼び出しにAPIシークレットが設定されていないことを示す。
var ErrSecretRequired = errors.New("APIシークレットが設定されていません")

// ResponseError はbgmw APIがエラーレスポンスを返したことを示す。
type ResponseError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

// Error はerrorインターフェースを実装する。
func (e *ResponseError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("bgmw APIがステータス %d を返しました", e.StatusCode)
	}
	if e.RequestID != "" {
		return fmt.Sprintf("[%s] %s (status=%d, request_id=%s)", e.Code, e.Message, e.StatusCode, e.RequestID)
	}
	return fmt.Sprintf("[%s] %s (status=%d)", e.Code, e.Message, e.StatusCode)
}

// Temporary は時間をおいて再試行すれば成功しうるレスポンスかどうかを返す（429/5xx）。
func (e *ResponseError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// envelope はbgmw APIのレスポンス形式。
type envelope struct {
	OK         bool            `json:"ok"`
	Data       json.RawMessage `json:"data"`
	NextCursor *int64          `json:"nextCursor"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

// Options はClientの設定。
type Options struct {
	BaseURL string // 空の場合は DefaultBaseURL
	Secret  string // 書き込み系APIに使うBearerトークン
	Retry   int    // GETリクエストを再試行する回数
}

// Client はbgmw APIのクライアント。
// 複数のgoroutineから同時に使用できる。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	secret     string
	retry      int
	backoff    func(attempt int) time.Duration
}

// New はClientの新しいインスタンスを生成する。
func New(httpClient *http.Client, logger *slog.Logger, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		secret:     opts.Secret,
		retry:      opts.Retry,
		backoff:    calculateBackoff,
	}
}

// HasSecret は書き込み系APIを呼び出せるかどうかを返す。
func (c *Client) HasSecret() bool {
	return c.secret != ""
}

// calculateBackoff は試行回数に基づいて指数バックオフの待機時間を計算する。
func calculateBackoff(attempt int) time.Duration {
	delay := initialBackoff
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// get はGETリクエストを送信する。一時的な失敗は設定回数まで再試行する。
func (c *Client) get(ctx context.Context, path string, query url.Values, auth bool) (*envelope, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retry; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
			c.logger.Warn("bgmw APIへのリクエストを再試行します",
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()),
			)
		}

		env, err := c.do(ctx, http.MethodGet, path, query, nil, auth)
		if err == nil {
			return env, nil
		}
		if !retryable(ctx, err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// retryable はエラーが再試行の対象かどうかを判定する。
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, ErrSecretRequired) {
		return false
	}
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr.Temporary()
	}
	var decodeErr *decodeError
	return !errors.As(err, &decodeErr)
}

// decodeError はレスポンスの形式が不正であることを示す。
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "レスポンスJSONのパースに失敗しました: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// do は1回のHTTPリクエストを送信し、成功レスポンスのエンベロープを返す。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, auth bool) (*envelope, error) {
	if auth && c.secret == "" {
		return nil, ErrSecretRequired
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bgmw APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &ResponseError{StatusCode: resp.StatusCode}
		}
		return nil, &decodeError{err: err}
	}
	if resp.StatusCode != http.StatusOK || !env.OK {
		respErr := &ResponseError{StatusCode: resp.StatusCode, RequestID: env.RequestID}
		if env.Error != nil {
			respErr.Code = env.Error.Code
			respErr.Message = env.Error.Message
		}
		c.logger.Debug("bgmw APIがエラーを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("code", respErr.Code),
		)
		return nil, respErr
	}
	return &env, nil
}

// decodeData はエンベロープのdataをvにデコードする。
func decodeData(env *envelope, v any) error {
	if err := json.Unmarshal(env.Data, v); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

func pathID(id int64) string {
	return strconv.FormatInt(id, 10)
}
