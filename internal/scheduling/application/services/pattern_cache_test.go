package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

type countingRepo struct {
	pattern *domain.Pattern
	loads   int
}

func (r *countingRepo) LoadPattern(_ context.Context, id uuid.UUID) (*domain.Pattern, error) {
	if r.pattern == nil || r.pattern.ID != id {
		return nil, domain.ErrPatternNotFound
	}
	r.loads++
	return r.pattern, nil
}

func (r *countingRepo) LoadResources(context.Context) (*domain.ResourcePool, error) {
	return &domain.ResourcePool{}, nil
}

func (r *countingRepo) LoadInstances(context.Context, []uuid.UUID) ([]domain.JobInstance, error) {
	return nil, nil
}

func TestPatternCache_GetCachesFirstLoad(t *testing.T) {
	repo := &countingRepo{pattern: &domain.Pattern{ID: uuid.New(), Name: "bracket"}}
	cache := NewPatternCache(repo)

	for i := 0; i < 3; i++ {
		p, err := cache.Get(context.Background(), repo.pattern.ID)
		require.NoError(t, err)
		assert.Equal(t, "bracket", p.Name)
	}
	assert.Equal(t, 1, repo.loads)
}

func TestPatternCache_GetPropagatesNotFound(t *testing.T) {
	cache := NewPatternCache(&countingRepo{})
	_, err := cache.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrPatternNotFound)
}

func TestPatternCache_InvalidateForcesReload(t *testing.T) {
	repo := &countingRepo{pattern: &domain.Pattern{ID: uuid.New()}}
	cache := NewPatternCache(repo)

	_, err := cache.Get(context.Background(), repo.pattern.ID)
	require.NoError(t, err)
	cache.Invalidate(repo.pattern.ID)
	_, err = cache.Get(context.Background(), repo.pattern.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, repo.loads)
}

func TestPatternCache_ClearDropsEverything(t *testing.T) {
	repo := &countingRepo{pattern: &domain.Pattern{ID: uuid.New()}}
	cache := NewPatternCache(repo)

	_, err := cache.Get(context.Background(), repo.pattern.ID)
	require.NoError(t, err)
	cache.Clear()
	_, err = cache.Get(context.Background(), repo.pattern.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, repo.loads)
}
