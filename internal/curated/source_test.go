package curated

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hitoshi/bgmx/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

const datasetJSON = `{
	"siteMeta": {"bangumi": {"title": "番组计划", "urlTemplate": "https://bangumi.tv/subject/{{id}}"}},
	"items": [
		{
			"title": "葬送のフリーレン",
			"type": "tv",
			"begin": "2023-09-29T14:00:00.000Z",
			"sites": [{"site": "bilibili", "id": "28237119"}, {"site": "bangumi", "id": "400602"}]
		},
		{
			"title": "ぼっち・ざ・ろっく！",
			"type": "tv",
			"begin": "2022-10-08T15:00:00.000Z",
			"sites": [{"site": "bangumi", "id": "328609"}]
		},
		{
			"title": "未登録の番組",
			"type": "web",
			"begin": "",
			"sites": [{"site": "bilibili", "id": "1"}]
		},
		{
			"title": "壊れたID",
			"type": "tv",
			"begin": "",
			"sites": [{"site": "bangumi", "id": "abc"}]
		}
	]
}`

func TestDecode_ExtractsBangumiSiteID(t *testing.T) {
	items, err := Decode(strings.NewReader(datasetJSON))
	if err != nil {
		t.Fatalf("Decode がエラーを返した: %v", err)
	}

	want := []model.CuratedItem{
		{Title: "葬送のフリーレン", Type: "tv", Begin: "2023-09-29T14:00:00.000Z", BangumiID: 400602},
		{Title: "ぼっち・ざ・ろっく！", Type: "tv", Begin: "2022-10-08T15:00:00.000Z", BangumiID: 328609},
		{Title: "未登録の番組", Type: "web"},
		{Title: "壊れたID", Type: "tv"},
	}
	if len(items) != len(want) {
		t.Fatalf("len(items) = %d, want %d", len(items), len(want))
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("items[%d] = %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"items": [`)); err == nil {
		t.Error("不正なJSONでエラーが返されなかった")
	}
}

func TestSource_Items_FromHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(datasetJSON))
	}))
	defer server.Close()

	var buf bytes.Buffer
	src := NewSource(server.Client(), newTestLogger(&buf), Options{
		Location:  server.URL + "/data.json",
		Overrides: Overrides{"未登録の番組": 999},
	})

	var got []model.CuratedItem
	for item, err := range src.Items(context.Background()) {
		if err != nil {
			t.Fatalf("Items がエラーをyieldした: %v", err)
		}
		got = append(got, item)
	}

	if len(got) != 4 {
		t.Fatalf("len(got) = %d, want 4", len(got))
	}
	if got[2].BangumiID != 999 {
		t.Errorf("オーバーライドが適用されていない: %+v", got[2])
	}
	if got[3].Resolved() {
		t.Errorf("対応付けられていない項目が解決済みになっている: %+v", got[3])
	}
	if !strings.Contains(buf.String(), `"overridden":1`) {
		t.Errorf("ログに overridden が含まれていない: %s", buf.String())
	}
}

func TestSource_Load_OverrideDoesNotReplaceSiteID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(datasetJSON), 0o600); err != nil {
		t.Fatalf("ファイルの書き込みに失敗: %v", err)
	}

	var buf bytes.Buffer
	src := NewSource(http.DefaultClient, newTestLogger(&buf), Options{
		Location:  path,
		Overrides: Overrides{"葬送のフリーレン": 1},
	})

	items, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}
	if items[0].BangumiID != 400602 {
		t.Errorf("BangumiID = %d, want 400602", items[0].BangumiID)
	}
}

func TestSource_Items_HTTPErrorYieldsOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	var buf bytes.Buffer
	src := NewSource(server.Client(), newTestLogger(&buf), Options{Location: server.URL})

	var errs int
	for _, err := range src.Items(context.Background()) {
		if err == nil {
			t.Fatal("エラーではない項目がyieldされた")
		}
		errs++
	}
	if errs != 1 {
		t.Errorf("errs = %d, want 1", errs)
	}
}

func TestSource_Items_EmptyLocation(t *testing.T) {
	var buf bytes.Buffer
	src := NewSource(http.DefaultClient, newTestLogger(&buf), Options{})

	for _, err := range src.Items(context.Background()) {
		if err == nil {
			t.Fatal("取得元が未設定なのにエラーにならなかった")
		}
	}
}

func TestSource_Items_StopsWhenConsumerBreaks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(datasetJSON), 0o600); err != nil {
		t.Fatalf("ファイルの書き込みに失敗: %v", err)
	}

	var buf bytes.Buffer
	src := NewSource(http.DefaultClient, newTestLogger(&buf), Options{Location: path})

	count := 0
	for range src.Items(context.Background()) {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestIsRemote(t *testing.T) {
	tests := map[string]bool{
		"https://unpkg.com/bangumi-data@0/dist/data.json": true,
		"http://example.com/data.json":                    true,
		"data/bangumi-data.json":                          false,
		"/var/lib/bgmx/data.json":                         false,
		"ftp://example.com/data.json":                     false,
	}
	for location, want := range tests {
		if got := IsRemote(location); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", location, got, want)
		}
	}
}
