package queries

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jobforge/internal/scheduling/domain"
)

type stubScheduleStore struct {
	schedule *domain.Schedule
}

func (s *stubScheduleStore) Store(_ context.Context, schedule *domain.Schedule) (uuid.UUID, error) {
	return schedule.ID(), nil
}

func (s *stubScheduleStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Schedule, error) {
	if s.schedule == nil || s.schedule.ID() != id {
		return nil, domain.ErrScheduleNotFound
	}
	return s.schedule, nil
}

func (s *stubScheduleStore) LatestVersion(context.Context, uuid.UUID) (int, error) {
	if s.schedule == nil {
		return 0, nil
	}
	return s.schedule.Version(), nil
}

func TestGetScheduleHandler_BuildsView(t *testing.T) {
	anchor := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	instanceID, taskID, machineID := uuid.New(), uuid.New(), uuid.New()
	task, err := domain.NewScheduledTask(
		instanceID, taskID, machineID, nil,
		anchor, anchor.Add(25*time.Minute), 5,
	)
	require.NoError(t, err)

	schedule := domain.NewSchedule(
		uuid.New(), anchor, domain.StatusFeasible,
		map[domain.ObjectiveKind]float64{domain.ObjectiveMakespan: 25},
		domain.PerformanceMetrics{WorkersUsed: 4, Evaluations: 99},
		[]*domain.ScheduledTask{task},
	)
	h := NewGetScheduleHandler(&stubScheduleStore{schedule: schedule})

	view, err := h.Handle(context.Background(), GetScheduleQuery{ScheduleID: schedule.ID()})
	require.NoError(t, err)

	assert.Equal(t, schedule.ID(), view.ID)
	assert.Equal(t, schedule.PatternID(), view.PatternID)
	assert.Equal(t, domain.StatusFeasible, view.Status)
	assert.Equal(t, 25*time.Minute, view.Makespan)
	assert.Equal(t, int64(99), view.Metrics.Evaluations)

	require.Len(t, view.Tasks, 1)
	assert.Equal(t, instanceID, view.Tasks[0].InstanceID)
	assert.Equal(t, taskID, view.Tasks[0].TaskID)
	assert.Equal(t, machineID, view.Tasks[0].MachineID)
	assert.Nil(t, view.Tasks[0].OperatorID)
	assert.Equal(t, 5, view.Tasks[0].SetupMinutes)
	assert.Equal(t, anchor, view.Tasks[0].StartAt)
}

func TestGetScheduleHandler_NotFound(t *testing.T) {
	h := NewGetScheduleHandler(&stubScheduleStore{})
	_, err := h.Handle(context.Background(), GetScheduleQuery{ScheduleID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrScheduleNotFound)
}
