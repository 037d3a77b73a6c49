package model

// CalendarPlatform は放送カレンダー上の配信区分。
type CalendarPlatform string

const (
	// CalendarPlatformTV は曜日ごとのTV放送枠。
	CalendarPlatformTV CalendarPlatform = "tv"
	// CalendarPlatformWeb はWeb配信（曜日なし）。
	CalendarPlatformWeb CalendarPlatform = "web"
)

// CalendarEntry は放送カレンダーの1行。
// Weekday は 0(月)〜6(日)。Web配信の場合はnil。
type CalendarEntry struct {
	ID       int64            `json:"id"`
	Platform CalendarPlatform `json:"platform"`
	Weekday  *int             `json:"weekday"`
}

// CalendarSubject はカレンダー情報を付与したSubject。
type CalendarSubject struct {
	Subject
	Platform CalendarPlatform `json:"platform"`
	Weekday  *int             `json:"weekday"`
}

// Calendar は曜日ごとのTV放送一覧とWeb配信一覧。
type Calendar struct {
	Calendar [7][]CalendarSubject `json:"calendar"`
	Web      []CalendarSubject    `json:"web"`
}
