package features

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/aegis/v13/screener/internal/contracts"
)

// MemorySource is an in-memory bar store (tests, dry runs, fixtures)
type MemorySource struct {
	mu   sync.RWMutex
	bars map[string][]contracts.Bar // instrument → 오름차순
}

// NewMemorySource creates an empty source
func NewMemorySource() *MemorySource {
	return &MemorySource{bars: make(map[string][]contracts.Bar)}
}

// Add appends bars and keeps each series sorted by date
func (m *MemorySource) Add(bars ...contracts.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	touched := make(map[string]struct{})
	for _, b := range bars {
		b.Date = contracts.TruncateDate(b.Date)
		m.bars[b.InstrumentID] = append(m.bars[b.InstrumentID], b)
		touched[b.InstrumentID] = struct{}{}
	}
	for id := range touched {
		series := m.bars[id]
		sort.SliceStable(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	}
}

// ListInstruments returns instrument ids in ascending order
func (m *MemorySource) ListInstruments(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.bars))
	for id := range m.bars {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// LatestBars returns up to n bars ending on or before asOf
func (m *MemorySource) LatestBars(ctx context.Context, instrumentID string, asOf time.Time, n int) ([]contracts.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	asOf = contracts.TruncateDate(asOf)
	series := m.bars[instrumentID]
	end := sort.Search(len(series), func(i int) bool { return series[i].Date.After(asOf) })
	start := end - n
	if start < 0 {
		start = 0
	}
	return copyBars(series[start:end]), nil
}

// BarsOn returns every bar of one date
func (m *MemorySource) BarsOn(ctx context.Context, date time.Time) ([]contracts.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	date = contracts.TruncateDate(date)
	out := make([]contracts.Bar, 0)
	for _, series := range m.bars {
		for _, b := range series {
			if b.Date.Equal(date) {
				out = append(out, b)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstrumentID < out[j].InstrumentID })
	return out, nil
}

// GetByInstrumentAndDateRange returns bars within [from, to]
func (m *MemorySource) GetByInstrumentAndDateRange(ctx context.Context, instrumentID string, from, to time.Time) ([]contracts.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	from, to = contracts.TruncateDate(from), contracts.TruncateDate(to)
	out := make([]contracts.Bar, 0)
	for _, b := range m.bars[instrumentID] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

// ForwardBars returns up to days bars strictly after eventDate
func (m *MemorySource) ForwardBars(ctx context.Context, instrumentID string, eventDate time.Time, days int) ([]contracts.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	eventDate = contracts.TruncateDate(eventDate)
	out := make([]contracts.Bar, 0, days)
	for _, b := range m.bars[instrumentID] {
		if b.Date.After(eventDate) {
			out = append(out, b)
			if len(out) == days {
				break
			}
		}
	}
	return out, nil
}

func copyBars(in []contracts.Bar) []contracts.Bar {
	out := make([]contracts.Bar, len(in))
	copy(out, in)
	return out
}
