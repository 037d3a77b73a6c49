// Package curated は外部の番組データセット（bangumi-data）の読み込みを提供する。
// データセットの各項目からbgm.tvの条目IDを取り出し、
// IDを持たない項目にはタイトルで対応付けるオーバーライドを適用する。
package curated

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/hitoshi/bgmx/internal/model"
)

const (
	// siteBangumi はbangumi-dataでbgm.tvを表すサイト名。
	siteBangumi = "bangumi"
	// maxDatasetSize はデータセットの最大サイズ（64MB）。
	maxDatasetSize = 64 << 20
)

// dataset はbangumi-dataのdata.jsonのうち使用する部分。
type dataset struct {
	Items []datasetItem `json:"items"`
}

type datasetItem struct {
	Title string        `json:"title"`
	Type  string        `json:"type"`
	Begin string        `json:"begin"`
	Sites []datasetSite `json:"sites"`
}

type datasetSite struct {
	Site string `json:"site"`
	ID   string `json:"id"`
}

// Options はSourceの設定。
type Options struct {
	// Location はデータセットの取得元。http(s)のURLまたはローカルファイルのパス。
	Location string
	// Overrides はタイトルから条目IDへの対応表。データセット側にIDがない項目にだけ適用する。
	Overrides Overrides
}

// Source は外部データセットを取得し、項目を列挙する。
type Source struct {
	httpClient *http.Client
	logger     *slog.Logger
	location   string
	overrides  Overrides
}

// NewSource はSourceの新しいインスタンスを生成する。
func NewSource(httpClient *http.Client, logger *slog.Logger, opts Options) *Source {
	return &Source{
		httpClient: httpClient,
		logger:     logger,
		location:   opts.Location,
		overrides:  opts.Overrides,
	}
}

// Items はデータセットの項目を列挙する。
// 取得またはパースに失敗した場合はエラーを1回だけyieldして終了する。
func (s *Source) Items(ctx context.Context) iter.Seq2[model.CuratedItem, error] {
	return func(yield func(model.CuratedItem, error) bool) {
		items, err := s.Load(ctx)
		if err != nil {
			yield(model.CuratedItem{}, err)
			return
		}
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Load はデータセットを取得し、オーバーライドを適用した項目一覧を返す。
func (s *Source) Load(ctx context.Context) ([]model.CuratedItem, error) {
	rc, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	items, err := Decode(io.LimitReader(rc, maxDatasetSize))
	if err != nil {
		return nil, err
	}

	resolved := 0
	for i := range items {
		if items[i].Resolved() {
			continue
		}
		if id, ok := s.overrides.Lookup(items[i].Title); ok {
			items[i].BangumiID = id
			resolved++
		}
	}

	s.logger.Info("外部データセットを読み込みました",
		slog.String("location", s.location),
		slog.Int("items", len(items)),
		slog.Int("overridden", resolved),
	)
	return items, nil
}

// IsRemote はlocationがHTTP(S)で取得するURLかどうかを返す。
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func (s *Source) open(ctx context.Context) (io.ReadCloser, error) {
	if s.location == "" {
		return nil, fmt.Errorf("データセットの取得元が設定されていません")
	}
	if !IsRemote(s.location) {
		f, err := os.Open(s.location)
		if err != nil {
			return nil, fmt.Errorf("データセットファイルを開けませんでした: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("データセットの取得に失敗しました",
			slog.String("location", s.location),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("データセットの取得に失敗しました: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("データセットの取得元がステータス %d を返しました", resp.StatusCode)
	}
	return resp.Body, nil
}

// Decode はbangumi-data形式のJSONを項目一覧にデコードする。
// bgm.tvのサイトIDが数値として解釈できない項目は未対応付けとして扱う。
func Decode(r io.Reader) ([]model.CuratedItem, error) {
	var ds dataset
	if err := json.NewDecoder(r).Decode(&ds); err != nil {
		return nil, fmt.Errorf("データセットのパースに失敗しました: %w", err)
	}

	items := make([]model.CuratedItem, 0, len(ds.Items))
	for _, it := range ds.Items {
		items = append(items, model.CuratedItem{
			Title:     it.Title,
			Begin:     it.Begin,
			Type:      it.Type,
			BangumiID: bangumiSiteID(it.Sites),
		})
	}
	return items, nil
}

func bangumiSiteID(sites []datasetSite) int64 {
	for _, site := range sites {
		if site.Site != siteBangumi {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(site.ID), 10, 64)
		if err != nil || id <= 0 {
			return 0
		}
		return id
	}
	return 0
}
