package utils

import "time"

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}

// ProfitRecognitionTime returns the timestamp at which yield for an
// activation day is recognized: the next calendar day at 01:00 UTC.
// Reconciliation depends on this exact offset; it must not follow the
// actual batch execution time.
func ProfitRecognitionTime(activationDate time.Time) time.Time {
	d := DateOnly(activationDate).AddDate(0, 0, 1)
	return time.Date(d.Year(), d.Month(), d.Day(), 1, 0, 0, 0, time.UTC)
}
