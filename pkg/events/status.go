package events

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/parishops/flock/pkg/apperrors"
	"github.com/parishops/flock/pkg/logging"
	"github.com/parishops/flock/pkg/models"
)

// Publish moves a draft event to published. It is the only manual transition
// and is rejected once the event has advanced past draft.
func (s *Service) Publish(ctx context.Context, id string) error {
	done := s.begin()
	defer done()

	event, err := s.api.GetByID(ctx, id)
	if err != nil {
		s.setErr("Failed to publish event", err)
		return err
	}
	if event.Status != models.StatusDraft {
		return apperrors.ErrConflict
	}
	if err := event.Validate(); err != nil {
		return err
	}
	if err := s.api.UpdateStatus(ctx, id, models.StatusPublished); err != nil {
		s.setErr("Failed to publish event", err)
		return err
	}
	s.applyStatus(id, models.StatusPublished)
	return nil
}

// AdvanceStatuses compares cached start/end times against now and persists
// every due transition immediately so concurrent viewers converge. Drafts are
// never advanced and no transition moves backward.
func (s *Service) AdvanceStatuses(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := make([]models.Event, 0)
	for _, e := range s.events {
		if next := e.NextStatus(now); next != "" && e.CanTransition(next) {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		next := e.NextStatus(now)
		if err := s.api.UpdateStatus(ctx, e.ID, next); err != nil {
			s.logger.Warn("Failed to persist status transition",
				zap.String("event_id", e.ID),
				zap.String("status", next),
				zap.String("error", logging.SanitizeError(err)))
			continue
		}
		s.applyStatus(e.ID, next)
		s.logger.Info("Event status advanced",
			zap.String("event_id", e.ID),
			zap.String("from", e.Status),
			zap.String("to", next))
	}
}

// applyStatus patches the cached copies of one event, respecting
// monotonicity.
func (s *Service) applyStatus(id, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id && s.events[i].CanTransition(status) {
			s.events[i].Status = status
		}
	}
	if s.current != nil && s.current.ID == id && s.current.CanTransition(status) {
		s.current.Status = status
	}
}

// StartStatusPolling schedules periodic status re-evaluation and list
// refresh. Stop must run on view teardown so no orphaned timers keep firing.
func (s *Service) StartStatusPolling(statusInterval, refreshInterval time.Duration, filter models.EventFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}
	c := cron.New()
	c.Schedule(cron.Every(statusInterval), cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), statusInterval)
		defer cancel()
		s.AdvanceStatuses(ctx, s.now())
	}))
	c.Schedule(cron.Every(refreshInterval), cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshInterval)
		defer cancel()
		_ = s.LoadEvents(ctx, filter)
	}))
	c.Start()
	s.cron = c
}

// Stop cancels the polling jobs.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		c.Stop()
	}
}
