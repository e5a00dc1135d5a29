package core

import (
	"fmt"
	"strings"
	"time"
)

// MonthKey identifies one calendar month and is also its storage key ("YYYY-MM").
type MonthKey struct {
	Year  int
	Month int // 1-12
}

func NewMonthKey(year, month int) MonthKey {
	return MonthKey{Year: year, Month: month}
}

// MonthOf returns the key of the month containing t.
func MonthOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: int(t.Month())}
}

// ParseMonthKey parses the "YYYY-MM" form.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}

func (m MonthKey) Validate() error {
	if m.Month < 1 || m.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidMonth, m.Month)
	}
	if m.Year < 1 || m.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidMonth, m.Year)
	}
	return nil
}

func (m MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// AddMonths moves the key by n months, n may be negative.
func (m MonthKey) AddMonths(n int) MonthKey {
	t := time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return MonthOf(t)
}

// MaxTrailingMonths bounds every trailing window read from the store.
const MaxTrailingMonths = 120

// Trailing returns the n months before m, most recent first. m itself is
// not included. n is clamped to [0, MaxTrailingMonths].
func (m MonthKey) Trailing(n int) []MonthKey {
	n = max(0, min(n, MaxTrailingMonths))
	out := make([]MonthKey, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, m.AddMonths(-i))
	}
	return out
}

func (m MonthKey) Before(o MonthKey) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}
