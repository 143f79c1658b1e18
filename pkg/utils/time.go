package utils

import (
	"fmt"
	"strconv"
	"time"
)

// ============================================================
// Торговые сутки (UTC)
// ============================================================

// GetDayStart возвращает начало текущих суток в UTC
func GetDayStart() time.Time {
	return GetDayStartFrom(time.Now().UTC())
}

// GetDayStartFrom возвращает начало суток для указанного времени в UTC
//
// Пример:
//
//	GetDayStartFrom(2024-01-15 14:30:45 UTC) // 2024-01-15 00:00:00 UTC
func GetDayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsNewTradingDay сообщает, что now относится к более поздним UTC-суткам, чем lastReset.
// Нулевой lastReset всегда считается устаревшим.
func IsNewTradingDay(lastReset, now time.Time) bool {
	if lastReset.IsZero() {
		return true
	}
	return GetDayStartFrom(now).After(GetDayStartFrom(lastReset))
}

// ============================================================
// Таймфреймы свечей
// ============================================================

// TimeframeToDuration переводит таймфрейм биржи ("1m", "5m", "4h", "1d", "1w") в time.Duration
func TimeframeToDuration(tf string) (time.Duration, error) {
	if len(tf) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}

	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}

	var unit time.Duration
	switch tf[len(tf)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}

	return time.Duration(n) * unit, nil
}

// ============================================================
// Форматирование
// ============================================================

// FormatDuration форматирует продолжительность без дробной части секунд
//
// Примеры:
//   - "45s"
//   - "5m30s"
//   - "2h15m0s"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	return d.Truncate(time.Second).String()
}

// FromUnixMillis конвертирует миллисекунды Unix в time.Time (UTC)
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
