package utils

import "time"

func Ptr[T any](v T) *T {
	return &v
}

// Deref nil 时返回零值
func Deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// StartOfDay t 所在自然日零点，保留时区
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
