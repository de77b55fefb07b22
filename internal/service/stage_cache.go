package service

import (
	"sync"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

// downstream lists the stages derived from each stage.
var downstream = map[models.Stage][]models.Stage{
	models.StageRequirements: {models.StageUserStories, models.StageFitGap},
}

// StageCache holds at most one result per stage for the current context.
type StageCache struct {
	mu      sync.RWMutex
	results map[models.Stage]models.Result
}

func NewStageCache() *StageCache {
	return &StageCache{results: make(map[models.Stage]models.Result)}
}

func (c *StageCache) Get(stage models.Stage) (models.Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[stage]
	return r, ok
}

// Put overwrites the slot for stage.
func (c *StageCache) Put(stage models.Stage, r models.Result) {
	c.mu.Lock()
	c.results[stage] = r
	c.mu.Unlock()
}

// Invalidate removes every cached stage matching pred. Removing requirements
// also removes everything derived from it. Returns the removed stages in
// dependency order.
func (c *StageCache) Invalidate(pred func(models.Stage) bool) []models.Stage {
	c.mu.Lock()
	defer c.mu.Unlock()

	drop := make(map[models.Stage]bool)
	for _, s := range models.Stages {
		if pred(s) {
			drop[s] = true
			for _, d := range downstream[s] {
				drop[d] = true
			}
		}
	}

	var removed []models.Stage
	for _, s := range models.Stages {
		if !drop[s] {
			continue
		}
		if _, ok := c.results[s]; ok {
			delete(c.results, s)
			removed = append(removed, s)
		}
	}
	return removed
}

// Clear empties the cache.
func (c *StageCache) Clear() {
	c.mu.Lock()
	clear(c.results)
	c.mu.Unlock()
}

// Stages returns the cached stages in dependency order.
func (c *StageCache) Stages() []models.Stage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.Stage
	for _, s := range models.Stages {
		if _, ok := c.results[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
