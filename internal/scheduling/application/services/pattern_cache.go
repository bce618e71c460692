package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

// PatternCache is the only object shared across solve requests: a read-only
// pattern lookup in front of the problem repository. Entries are immutable
// once loaded; Invalidate drops them so the next request re-reads storage.
type PatternCache struct {
	repo domain.ProblemRepository

	mu       sync.RWMutex
	patterns map[uuid.UUID]*domain.Pattern
}

// NewPatternCache creates a cache over the given repository.
func NewPatternCache(repo domain.ProblemRepository) *PatternCache {
	return &PatternCache{
		repo:     repo,
		patterns: make(map[uuid.UUID]*domain.Pattern),
	}
}

// Get returns the cached pattern, loading it on first use.
func (c *PatternCache) Get(ctx context.Context, patternID uuid.UUID) (*domain.Pattern, error) {
	c.mu.RLock()
	if p, ok := c.patterns[patternID]; ok {
		c.mu.RUnlock()
		return p, nil
	}
	c.mu.RUnlock()

	p, err := c.repo.LoadPattern(ctx, patternID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.patterns[patternID] = p
	c.mu.Unlock()
	return p, nil
}

// Invalidate drops one pattern from the cache.
func (c *PatternCache) Invalidate(patternID uuid.UUID) {
	c.mu.Lock()
	delete(c.patterns, patternID)
	c.mu.Unlock()
}

// Clear drops every cached pattern.
func (c *PatternCache) Clear() {
	c.mu.Lock()
	c.patterns = make(map[uuid.UUID]*domain.Pattern)
	c.mu.Unlock()
}
