package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parishops/flock/pkg/apperrors"
	"github.com/parishops/flock/pkg/models"
)

func TestAdvanceStatuses(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)
	started := now.Add(-time.Hour)
	ended := now.Add(-30 * time.Minute)
	upcoming := now.Add(time.Hour)

	api := newFakeEventAPI(
		&models.Event{ID: "e-due", Status: models.StatusPublished, StartDateTime: started, EndDateTime: upcoming},
		&models.Event{ID: "e-over", Status: models.StatusInProgress, StartDateTime: started, EndDateTime: ended},
		&models.Event{ID: "e-draft", Status: models.StatusDraft, StartDateTime: started, EndDateTime: ended},
		&models.Event{ID: "e-future", Status: models.StatusPublished, StartDateTime: upcoming, EndDateTime: upcoming.Add(time.Hour)},
	)
	s := newEventService(api, nil, staffIdentity())
	require.NoError(t, s.LoadEvents(context.Background(), models.EventFilter{}))

	s.AdvanceStatuses(context.Background(), now)

	byID := make(map[string]models.Event)
	for _, e := range s.Events() {
		byID[e.ID] = e
	}
	assert.Equal(t, models.StatusInProgress, byID["e-due"].Status)
	assert.Equal(t, models.StatusCompleted, byID["e-over"].Status)
	assert.Equal(t, models.StatusDraft, byID["e-draft"].Status, "drafts never advance on wall clock")
	assert.Equal(t, models.StatusPublished, byID["e-future"].Status)

	assert.ElementsMatch(t, []string{"e-due:in_progress", "e-over:completed"}, api.updateStatusCalls,
		"every applied transition must be persisted")
}

func TestAdvanceStatuses_PersistFailureLeavesCache(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)
	api := newFakeEventAPI(&models.Event{
		ID:            "e-1",
		Status:        models.StatusPublished,
		StartDateTime: now.Add(-time.Hour),
		EndDateTime:   now.Add(time.Hour),
	})
	api.updateStatusErr = apperrors.FromStatus(500, "boom")
	s := newEventService(api, nil, staffIdentity())
	require.NoError(t, s.LoadEvents(context.Background(), models.EventFilter{}))

	s.AdvanceStatuses(context.Background(), now)
	assert.Equal(t, models.StatusPublished, s.Events()[0].Status,
		"the cache must not show a transition the server never accepted")
}

func TestPublish(t *testing.T) {
	start := time.Date(2026, 9, 6, 9, 0, 0, 0, time.UTC)
	api := newFakeEventAPI(&models.Event{
		ID:              "e-1",
		Name:            "Harvest Dinner",
		Status:          models.StatusDraft,
		StartDateTime:   start,
		EndDateTime:     start.Add(2 * time.Hour),
		EventInCharge:   []models.Ref{{ID: "u-1"}},
		CheckInInCharge: []models.Ref{{ID: "u-2"}},
	})
	s := newEventService(api, nil, staffIdentity())
	require.NoError(t, s.LoadEvents(context.Background(), models.EventFilter{}))

	require.NoError(t, s.Publish(context.Background(), "e-1"))
	assert.Equal(t, models.StatusPublished, s.Events()[0].Status)
	assert.Equal(t, []string{"e-1:published"}, api.updateStatusCalls)
}

func TestPublish_NonDraftRejected(t *testing.T) {
	api := newFakeEventAPI(liveEvent("e-1"))
	s := newEventService(api, nil, staffIdentity())

	err := s.Publish(context.Background(), "e-1")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Empty(t, api.updateStatusCalls)
}

func TestPublish_InvalidEventRejected(t *testing.T) {
	api := newFakeEventAPI(&models.Event{ID: "e-1", Status: models.StatusDraft})
	s := newEventService(api, nil, staffIdentity())

	err := s.Publish(context.Background(), "e-1")
	require.Error(t, err)
	assert.Empty(t, api.updateStatusCalls, "an invalid draft must not be published")
}

func TestApplyStatus_Monotonic(t *testing.T) {
	api := newFakeEventAPI()
	s := newEventService(api, nil, staffIdentity())
	s.mu.Lock()
	s.events = []models.Event{{ID: "e-1", Status: models.StatusCompleted}}
	s.mu.Unlock()

	s.applyStatus("e-1", models.StatusPublished)
	assert.Equal(t, models.StatusCompleted, s.Events()[0].Status, "status never moves backward")
}
