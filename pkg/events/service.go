// Package events is the reconciled local cache for events and attendance,
// including the wall-clock status advancer and the check-in flow.
package events

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/parishops/flock/pkg/logging"
	"github.com/parishops/flock/pkg/models"
)

// personCacheSize bounds the name-lookup cache used for attendance display.
const personCacheSize = 256

// API is the slice of the remote collaborator the event cache consumes.
type API interface {
	GetAll(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	GetByID(ctx context.Context, id string) (*models.Event, error)
	Update(ctx context.Context, id string, data *models.Event) (*models.Event, error)
	UpdateStatus(ctx context.Context, id, status string) error
	CheckIn(ctx context.Context, eventID, personID, checkedInBy string) error
	GetAttendance(ctx context.Context, eventID string) ([]models.AttendanceRecord, error)
	GetNewcomers(ctx context.Context, eventID string) ([]models.Person, error)
	SearchAttendees(ctx context.Context, eventID, phone string) ([]models.Person, error)
}

// PeopleAPI is the slice of the people endpoints the check-in flow needs.
type PeopleAPI interface {
	QuickRegister(ctx context.Context, reg *models.QuickRegistration) (*models.Person, error)
	GetOne(ctx context.Context, id string) (*models.Person, error)
}

// SessionSource supplies the current identity.
type SessionSource interface {
	Identity() *models.Identity
}

// Service caches events, the focused event, its attendance list, and the
// newcomers registered today.
type Service struct {
	api     API
	people  PeopleAPI
	session SessionSource
	logger  *zap.Logger
	now     func() time.Time

	mu         sync.Mutex
	events     []models.Event
	current    *models.Event
	attendance []models.AttendanceRecord
	newcomers  []models.Person
	inflight   int
	lastErr    string

	personNames *lru.Cache[string, string]
	cron        *cron.Cron
}

// NewService wires the event cache. Register Clear with the session's logout
// hooks.
func NewService(api API, people PeopleAPI, session SessionSource, logger *zap.Logger) *Service {
	names, _ := lru.New[string, string](personCacheSize)
	return &Service{
		api:         api,
		people:      people,
		session:     session,
		logger:      logger.Named("events"),
		now:         time.Now,
		personNames: names,
	}
}

func (s *Service) begin() func() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}
}

// Loading reports whether any cache operation is in flight.
func (s *Service) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// LastError returns the most recent read failure, or "".
func (s *Service) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Service) setErr(msg string, err error) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
	s.logger.Error(msg, zap.String("error", logging.SanitizeError(err)))
}

func (s *Service) clearErr() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

// live reports whether the session that started an operation is still the one
// consuming its result. Late results after logout are discarded.
func (s *Service) live(started *models.Identity) bool {
	now := s.session.Identity()
	return started != nil && now != nil && now.ID == started.ID
}

// Clear drops all per-session cache state. Wired to session logout.
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.current = nil
	s.attendance = nil
	s.newcomers = nil
	s.lastErr = ""
	s.personNames.Purge()
}

// Events returns a copy of the cached events.
func (s *Service) Events() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Event(nil), s.events...)
}

// Current returns the focused event, or nil.
func (s *Service) Current() *models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// Attendance returns a copy of the focused event's attendance list.
func (s *Service) Attendance() []models.AttendanceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AttendanceRecord(nil), s.attendance...)
}

// AttendanceCount is the displayed check-in total. It always derives from the
// dedicated attendance list, never from a count embedded in the Event record.
func (s *Service) AttendanceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attendance)
}

// Newcomers returns a copy of today's quick-registered people.
func (s *Service) Newcomers() []models.Person {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Person(nil), s.newcomers...)
}

// LoadEvents replaces the events slice wholesale. On failure the prior slice
// stays available.
func (s *Service) LoadEvents(ctx context.Context, filter models.EventFilter) error {
	identity := s.session.Identity()
	done := s.begin()
	defer done()

	events, err := s.api.GetAll(ctx, filter)
	if err != nil {
		s.setErr("Failed to fetch events", err)
		return err
	}
	if identity != nil && !s.live(identity) {
		return nil
	}
	s.mu.Lock()
	s.events = events
	s.mu.Unlock()
	s.clearErr()
	return nil
}

// LoadEvent focuses one event.
func (s *Service) LoadEvent(ctx context.Context, id string) (*models.Event, error) {
	identity := s.session.Identity()
	done := s.begin()
	defer done()

	event, err := s.api.GetByID(ctx, id)
	if err != nil {
		s.setErr("Failed to fetch event", err)
		return nil, err
	}
	if identity != nil && !s.live(identity) {
		return event, nil
	}
	s.mu.Lock()
	s.current = event
	s.mu.Unlock()
	s.clearErr()
	return event, nil
}

// LoadAttendance refreshes the focused event's attendance list.
func (s *Service) LoadAttendance(ctx context.Context, eventID string) error {
	identity := s.session.Identity()
	done := s.begin()
	defer done()

	records, err := s.api.GetAttendance(ctx, eventID)
	if err != nil {
		s.setErr("Failed to fetch attendance", err)
		return err
	}
	if identity != nil && !s.live(identity) {
		return nil
	}
	s.mu.Lock()
	s.attendance = records
	s.mu.Unlock()
	s.clearErr()
	return nil
}

// LoadNewcomers refreshes the newcomers list for an event.
func (s *Service) LoadNewcomers(ctx context.Context, eventID string) error {
	identity := s.session.Identity()
	done := s.begin()
	defer done()

	people, err := s.api.GetNewcomers(ctx, eventID)
	if err != nil {
		s.logger.Warn("Failed to fetch newcomers", zap.String("error", logging.SanitizeError(err)))
		return err
	}
	if identity != nil && !s.live(identity) {
		return nil
	}
	s.mu.Lock()
	s.newcomers = people
	s.mu.Unlock()
	return nil
}

// SearchAttendees looks up people by phone for the check-in desk, dropping
// duplicate ids from the result.
func (s *Service) SearchAttendees(ctx context.Context, eventID, phone string) ([]models.Person, error) {
	done := s.begin()
	defer done()

	people, err := s.api.SearchAttendees(ctx, eventID, phone)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(people))
	unique := people[:0]
	for _, p := range people {
		if !seen[p.ID] {
			seen[p.ID] = true
			unique = append(unique, p)
			s.personNames.Add(p.ID, p.FullName())
		}
	}
	return unique, nil
}
