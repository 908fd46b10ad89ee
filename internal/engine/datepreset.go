package engine

import "time"

// DatePreset is a symbolic date range clients may pass instead of a literal
// date value. Presets expand to half-open UTC intervals [start, end).
type DatePreset string

const (
	PresetToday     DatePreset = "today"
	PresetYesterday DatePreset = "yesterday"
	PresetLast7     DatePreset = "last7days"
	PresetLast30    DatePreset = "last30days"
	PresetThisMonth DatePreset = "thisMonth"
	PresetLastMonth DatePreset = "lastMonth"
	PresetThisYear  DatePreset = "thisYear"
)

var datePresets = map[DatePreset]bool{
	PresetToday: true, PresetYesterday: true, PresetLast7: true,
	PresetLast30: true, PresetThisMonth: true, PresetLastMonth: true,
	PresetThisYear: true,
}

// IsDatePreset reports whether s names a known preset.
func IsDatePreset(s string) bool { return datePresets[DatePreset(s)] }

// ResolvePreset expands a preset relative to now into [start, end) in UTC.
// The second return is false for unknown presets.
func ResolvePreset(p DatePreset, now time.Time) (time.Time, time.Time, bool) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch p {
	case PresetToday:
		return day, day.AddDate(0, 0, 1), true
	case PresetYesterday:
		return day.AddDate(0, 0, -1), day, true
	case PresetLast7:
		return day.AddDate(0, 0, -7), day.AddDate(0, 0, 1), true
	case PresetLast30:
		return day.AddDate(0, 0, -30), day.AddDate(0, 0, 1), true
	case PresetThisMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0), true
	case PresetLastMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start.AddDate(0, -1, 0), start, true
	case PresetThisYear:
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0), true
	}
	return time.Time{}, time.Time{}, false
}
