package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vce/pkg/model"
)

// MemoryStore keeps every series in process memory. It is the default
// backend: positions are propagated at server start and live as long as it.
type MemoryStore struct {
	mu     sync.RWMutex
	series map[string][]model.PositionSample
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{series: make(map[string][]model.PositionSample)}
}

// WriteSamples appends the batch atomically: if any sample would break a
// host's ordering nothing is written.
func (m *MemoryStore) WriteSamples(_ context.Context, samples []model.PositionSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	last := make(map[string]time.Time)
	for _, s := range samples {
		prev, ok := last[s.Host]
		if !ok {
			if hist := m.series[s.Host]; len(hist) > 0 {
				prev, ok = hist[len(hist)-1].Time, true
			}
		}
		if ok && !s.Time.After(prev) {
			return fmt.Errorf("%w: host=%s time=%s last=%s", ErrOutOfOrder, s.Host, s.Time.Format(time.RFC3339Nano), prev.Format(time.RFC3339Nano))
		}
		last[s.Host] = s.Time
	}
	for _, s := range samples {
		m.series[s.Host] = append(m.series[s.Host], s)
	}
	return nil
}

func (m *MemoryStore) LatestBefore(_ context.Context, t time.Time) (map[string]model.PositionSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]model.PositionSample, len(m.series))
	for host, hist := range m.series {
		// first index strictly after t
		i := sort.Search(len(hist), func(i int) bool { return hist[i].Time.After(t) })
		if i > 0 {
			out[host] = hist[i-1]
		}
	}
	return out, nil
}

func (m *MemoryStore) SeriesFor(_ context.Context, host string) ([]model.PositionSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.PositionSample(nil), m.series[host]...), nil
}

func (m *MemoryStore) HasSamples(context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.series) > 0, nil
}

func (m *MemoryStore) Close() error { return nil }
