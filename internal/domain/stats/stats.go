// Package stats merges recognized drops into the session totals and builds
// the per-round aggregate view.
package stats

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/stagedrops/internal/adapters/repository"
	"github.com/okian/stagedrops/internal/domain/model"
	"github.com/okian/stagedrops/internal/domain/notify"
	"github.com/okian/stagedrops/pkg/logger"
	"github.com/okian/stagedrops/pkg/metrics"
)

// Subtask names the aggregation step in notifications.
const Subtask = "StageDrops"

// ItemNames resolves display names for item ids.
type ItemNames interface {
	ItemName(itemID string) string
}

// StageCatalog resolves stage metadata from a stage code and difficulty.
type StageCatalog interface {
	Stage(code string, difficulty model.Difficulty) (model.StageRecord, bool)
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithItemNames sets the display name lookup.
func WithItemNames(names ItemNames) Option {
	return func(a *Aggregator) {
		if names != nil {
			a.names = names
		}
	}
}

// WithStageCatalog sets the stage metadata lookup.
func WithStageCatalog(catalog StageCatalog) Option {
	return func(a *Aggregator) {
		if catalog != nil {
			a.catalog = catalog
		}
	}
}

// WithSink sets the notification sink.
func WithSink(sink notify.Sink) Option {
	return func(a *Aggregator) {
		if sink != nil {
			a.sink = sink
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

type noNames struct{}

func (noNames) ItemName(string) string { return "" }

type noStages struct{}

func (noStages) Stage(string, model.Difficulty) (model.StageRecord, bool) {
	return model.StageRecord{}, false
}

// Aggregator owns the session drop totals and the last round info.
type Aggregator struct {
	store   repository.Store
	names   ItemNames
	catalog StageCatalog
	sink    notify.Sink
	logger  logger.Logger

	mu     sync.RWMutex
	latest *model.RoundInfo
}

// NewAggregator creates an aggregator over store.
func NewAggregator(store repository.Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:   store,
		names:   noNames{},
		catalog: noStages{},
		sink:    notify.Fanout{},
		logger:  logger.Get().Named("stats"),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Merge adds the round's drops to the totals, builds the round info, stores
// it as the latest and emits one drops-updated notification.
func (a *Aggregator) Merge(ctx context.Context, analysis model.Analysis) (model.RoundInfo, error) {
	// A rejected round must not leave part of its drops in the totals.
	for _, d := range analysis.Drops {
		if d.Quantity < 0 {
			return model.RoundInfo{}, fmt.Errorf("merge %s: %w: %d", d.ItemID, repository.ErrInvalidQuantity, d.Quantity)
		}
	}

	added := make(map[string]int, len(analysis.Drops))
	for _, d := range analysis.Drops {
		if d.ItemID == "" {
			// unidentified items only show up in the raw list
			continue
		}
		if _, err := a.store.Add(ctx, d.ItemID, d.Quantity); err != nil {
			return model.RoundInfo{}, fmt.Errorf("merge %s: %w", d.ItemID, err)
		}
		added[d.ItemID] += d.Quantity
		metrics.RecordDrop(d.ItemID, d.Quantity)
	}

	entries := a.store.Ranked(ctx)
	info := model.RoundInfo{
		Stars: analysis.Stars,
		Stats: make([]model.ItemStat, 0, len(entries)),
		Drops: make([]model.DropRecord, len(analysis.Drops)),
		Stage: model.StageInfo{StageCode: analysis.Stage.Code},
	}
	copy(info.Drops, analysis.Drops)
	for _, e := range entries {
		info.Stats = append(info.Stats, model.ItemStat{
			ItemID:      e.ItemID,
			ItemName:    a.displayName(e.ItemID),
			Quantity:    e.Quantity,
			AddQuantity: added[e.ItemID],
		})
	}
	SortStats(info.Stats)

	if analysis.Stage.Code != "" {
		if rec, ok := a.catalog.Stage(analysis.Stage.Code, analysis.Stage.Difficulty); ok {
			info.Stage.StageID = rec.StageID
		}
	}

	a.mu.Lock()
	snapshot := info
	a.latest = &snapshot
	a.mu.Unlock()

	metrics.UpdateSessionItems(len(info.Stats))
	a.logger.Info(ctx, "drops updated",
		logger.String("stage", info.Stage.StageCode),
		logger.String("stageId", info.Stage.StageID),
		logger.Int("stars", info.Stars),
		logger.Int("items", len(info.Stats)),
	)

	n := model.NewNotification(model.KindDropsUpdated, Subtask, "")
	n.Round = &snapshot
	a.sink.Notify(ctx, n)

	return info, nil
}

// Latest returns the last round info, if any round was merged.
func (a *Aggregator) Latest() (model.RoundInfo, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.latest == nil {
		return model.RoundInfo{}, false
	}
	return *a.latest, true
}

// Totals returns a copy of the session totals.
func (a *Aggregator) Totals(ctx context.Context) map[string]int {
	return a.store.All(ctx)
}

func (a *Aggregator) displayName(itemID string) string {
	if name := a.names.ItemName(itemID); name != "" {
		return name
	}
	return itemID
}

// SortStats orders stats by cumulative quantity desc, then item id asc.
func SortStats(stats []model.ItemStat) {
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Quantity != stats[j].Quantity {
			return stats[i].Quantity > stats[j].Quantity
		}
		return stats[i].ItemID < stats[j].ItemID
	})
}
