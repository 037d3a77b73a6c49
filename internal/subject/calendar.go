package subject

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/bgmx/internal/model"
)

// GetCalendar は曜日ごとのTV放送一覧とWeb配信一覧を返す。
// platformがtvで曜日があるものは曜日の列に、それ以外はWeb配信に入る。
func (s *Service) GetCalendar(ctx context.Context) (*model.Calendar, error) {
	rows, err := s.calendarRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("カレンダーの取得に失敗しました: %w", err)
	}

	cal := &model.Calendar{Web: []model.CalendarSubject{}}
	for i := range cal.Calendar {
		cal.Calendar[i] = []model.CalendarSubject{}
	}
	for _, row := range rows {
		if row.Platform == model.CalendarPlatformTV && row.Weekday != nil {
			cal.Calendar[*row.Weekday] = append(cal.Calendar[*row.Weekday], row)
			continue
		}
		cal.Web = append(cal.Web, row)
	}
	return cal, nil
}

// UpdateCalendar はカレンダー全体を置き換える。
func (s *Service) UpdateCalendar(ctx context.Context, entries []model.CalendarEntry) error {
	if err := ValidateCalendar(entries); err != nil {
		return err
	}
	if err := s.calendarRepo.Replace(ctx, entries); err != nil {
		return fmt.Errorf("カレンダーの更新に失敗しました: %w", err)
	}
	s.logger.Info("カレンダーを更新しました", slog.Int("count", len(entries)))
	return nil
}

// ValidateCalendar はカレンダー入力を検証する。
func ValidateCalendar(entries []model.CalendarEntry) error {
	seen := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if e.ID <= 0 {
			return model.NewInvalidCalendarError(fmt.Sprintf("invalid id %d", e.ID))
		}
		if _, ok := seen[e.ID]; ok {
			return model.NewInvalidCalendarError(fmt.Sprintf("duplicated id %d", e.ID))
		}
		seen[e.ID] = struct{}{}

		switch e.Platform {
		case model.CalendarPlatformTV, model.CalendarPlatformWeb:
		default:
			return model.NewInvalidCalendarError(fmt.Sprintf("invalid platform %q", e.Platform))
		}
		if e.Weekday != nil && (*e.Weekday < 0 || *e.Weekday > 6) {
			return model.NewInvalidCalendarError(fmt.Sprintf("invalid weekday %d", *e.Weekday))
		}
	}
	return nil
}
