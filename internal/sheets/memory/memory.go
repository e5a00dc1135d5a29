// Package memory is an in-process sheets exporter for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	ports "budgetflow/internal/sheets"
)

type Store struct {
	mu     sync.Mutex
	rows   map[string]ports.Summary
	order  []string
	writes int
}

var (
	_ ports.SummaryWriter = (*Store)(nil)
	_ ports.SummaryReader = (*Store)(nil)
)

func New() *Store {
	return &Store{rows: make(map[string]ports.Summary)}
}

// WriteMonthSummary stores s, replacing an older summary for the month.
func (s *Store) WriteMonthSummary(_ context.Context, sum ports.Summary) (string, error) {
	if sum.Month == "" {
		return "", errors.New("summary without month")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[sum.Month]; !ok {
		s.order = append(s.order, sum.Month)
	}
	sum.CategoryTotals = slices.Clone(sum.CategoryTotals)
	s.rows[sum.Month] = sum
	s.writes++
	return fmt.Sprintf("mem:%d", slices.Index(s.order, sum.Month)+1), nil
}

func (s *Store) ReadMonthSummary(_ context.Context, month string) (ports.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.rows[month]
	if !ok {
		return ports.Summary{}, fmt.Errorf("%w: %s", ports.ErrSummaryNotFound, month)
	}
	sum.CategoryTotals = slices.Clone(sum.CategoryTotals)
	return sum, nil
}

// Writes counts every successful WriteMonthSummary.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
