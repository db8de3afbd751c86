package models

import "time"

// Pagination carries paging metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// MonthRange returns the half-open instant range [start, end) covering the
// given calendar month in UTC.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// InMonth reports whether the instant falls inside the month range.
func InMonth(t, monthStart, monthEnd time.Time) bool {
	return !t.Before(monthStart) && t.Before(monthEnd)
}

// DateOnly truncates an instant to its calendar day, ignoring time-of-day.
func DateOnly(t time.Time) string {
	return t.Format("2006-01-02")
}
