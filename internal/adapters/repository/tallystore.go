package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/stagedrops/pkg/metrics"
)

const defaultMetricsUpdateInterval = 5 * time.Second

// Snapshot is an immutable copy of the totals published after every write.
type Snapshot struct {
	Totals map[string]int
	Ranked []Entry
}

// TallyStore is an in-memory Store. Reads are served from the latest
// snapshot; writes rebuild it under the write lock.
type TallyStore struct {
	mu     sync.Mutex
	totals map[string]int

	snapshot atomic.Pointer[Snapshot]

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	closeOnce             sync.Once
}

// NewTallyStore constructs an empty store and starts its metrics updater.
func NewTallyStore(ctx context.Context, opts ...Option) *TallyStore {
	s := &TallyStore{
		totals:                make(map[string]int),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.publishLocked()
	s.startMetricsUpdater(ctx)

	return s
}

// Close stops the metrics updater.
func (s *TallyStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Add implements Store.Add.
func (s *TallyStore) Add(_ context.Context, itemID string, quantity int) (int, error) {
	if itemID == "" {
		return 0, ErrEmptyItemID
	}
	if quantity < 0 {
		return 0, fmt.Errorf("%w: %d for %s", ErrInvalidQuantity, quantity, itemID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.totals[itemID] += quantity
	total := s.totals[itemID]
	s.publishLocked()

	return total, nil
}

// All implements Store.All.
func (s *TallyStore) All(_ context.Context) map[string]int {
	src := s.snapshot.Load().Totals
	out := make(map[string]int, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Ranked implements Store.Ranked.
func (s *TallyStore) Ranked(_ context.Context) []Entry {
	src := s.snapshot.Load().Ranked
	out := make([]Entry, len(src))
	copy(out, src)
	return out
}

// Count implements Store.Count.
func (s *TallyStore) Count(_ context.Context) int {
	return len(s.snapshot.Load().Totals)
}

func (s *TallyStore) publishLocked() {
	totals := make(map[string]int, len(s.totals))
	ranked := make([]Entry, 0, len(s.totals))
	for id, q := range s.totals {
		totals[id] = q
		ranked = append(ranked, Entry{ItemID: id, Quantity: q})
	}
	SortEntries(ranked)
	s.snapshot.Store(&Snapshot{Totals: totals, Ranked: ranked})
}

func (s *TallyStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateSessionItems(s.Count(ctx))
			}
		}
	}()
}

// SortEntries orders entries by quantity desc, then item id asc.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Quantity != entries[j].Quantity {
			return entries[i].Quantity > entries[j].Quantity
		}
		return entries[i].ItemID < entries[j].ItemID
	})
}
