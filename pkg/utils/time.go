package utils

import (
	"strconv"
	"time"
)

// TimeRange - временной интервал [Start, End]
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// LastNHours возвращает интервал последних n часов до now (UTC).
// n <= 0 трактуется как 1.
func LastNHours(now time.Time, n int) TimeRange {
	if n <= 0 {
		n = 1
	}
	now = now.UTC()
	return TimeRange{
		Start: now.Add(-time.Duration(n) * time.Hour),
		End:   now,
	}
}

// HoursSince - часы от since до now, округленные до 2 знаков.
// Для будущего since возвращает 0.
func HoursSince(since, now time.Time) float64 {
	if since.IsZero() || now.Before(since) {
		return 0
	}
	return Round(now.Sub(since).Hours(), 2)
}

// FormatDuration форматирует продолжительность удержания позиции
//
// Примеры: "45s", "5m30s", "2h15m", "3d5h"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return itoa(days) + "d" + nonZero(hours, "h")
	case hours > 0:
		return itoa(hours) + "h" + nonZero(minutes, "m")
	case minutes > 0:
		return itoa(minutes) + "m" + nonZero(seconds, "s")
	default:
		return itoa(seconds) + "s"
	}
}

func nonZero(v int, unit string) string {
	if v == 0 {
		return ""
	}
	return itoa(v) + unit
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
