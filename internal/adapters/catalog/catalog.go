// Package catalog loads item display names and stage metadata from the
// resource files shipped with the game data.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/okian/stagedrops/internal/domain/model"
)

// ErrLoad wraps resource loading failures.
var ErrLoad = errors.New("load catalog")

type itemEntry struct {
	Name string `json:"name"`
}

type stageKey struct {
	code       string
	difficulty model.Difficulty
}

// Catalog answers item name and stage lookups. The zero value is empty and
// usable.
type Catalog struct {
	mu     sync.RWMutex
	items  map[string]string
	stages map[stageKey]model.StageRecord
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		items:  make(map[string]string),
		stages: make(map[stageKey]model.StageRecord),
	}
}

// Load reads both resource files. An empty path skips that file.
func Load(itemsPath, stagesPath string) (*Catalog, error) {
	c := New()
	if itemsPath != "" {
		data, err := os.ReadFile(itemsPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoad, err)
		}
		if err := c.LoadItems(data); err != nil {
			return nil, err
		}
	}
	if stagesPath != "" {
		data, err := os.ReadFile(stagesPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoad, err)
		}
		if err := c.LoadStages(data); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LoadItems merges an item index: an object keyed by item id.
func (c *Catalog) LoadItems(data []byte) error {
	var index map[string]itemEntry
	if err := sonic.Unmarshal(data, &index); err != nil {
		return fmt.Errorf("%w: items: %v", ErrLoad, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]string, len(index))
	}
	for id, e := range index {
		c.items[id] = e.Name
	}
	return nil
}

// LoadStages merges a stage list. Entries without a difficulty are NORMAL.
func (c *Catalog) LoadStages(data []byte) error {
	var list []model.StageRecord
	if err := sonic.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("%w: stages: %v", ErrLoad, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stages == nil {
		c.stages = make(map[stageKey]model.StageRecord, len(list))
	}
	for _, s := range list {
		if s.Code == "" || s.StageID == "" {
			continue
		}
		if s.Difficulty == "" {
			s.Difficulty = model.DifficultyNormal
		}
		c.stages[stageKey{s.Code, s.Difficulty}] = s
	}
	return nil
}

// ItemName implements stats.ItemNames.
func (c *Catalog) ItemName(itemID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items[itemID]
}

// Stage implements stats.StageCatalog.
func (c *Catalog) Stage(code string, difficulty model.Difficulty) (model.StageRecord, bool) {
	if difficulty == "" {
		difficulty = model.DifficultyNormal
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stages[stageKey{code, difficulty}]
	return s, ok
}

// Size returns the number of items and stages loaded.
func (c *Catalog) Size() (items, stages int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items), len(c.stages)
}
