package events

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/parishops/flock/pkg/apperrors"
	"github.com/parishops/flock/pkg/logging"
	"github.com/parishops/flock/pkg/models"
)

// AuthorizedForCheckIn reports whether the identity may perform check-ins for
// the event: role admin, role check_in_staff, or membership in the event's
// check-in in-charge list. In-charge entries arrive in several wire shapes;
// comparison happens on the normalized id only.
func AuthorizedForCheckIn(identity *models.Identity, event *models.Event) bool {
	if identity == nil || event == nil {
		return false
	}
	if identity.Role == models.RoleAdmin || identity.Role == models.RoleCheckInStaff {
		return true
	}
	return models.ContainsRef(event.CheckInInCharge, identity.ID)
}

// CheckIn records one person's attendance. Check-in is permitted only while
// the event is published or in progress; the client enforces it here even
// though the UI disables the action, and the server rejects it as well.
// A duplicate check-in surfaces as apperrors.ErrConflict.
func (s *Service) CheckIn(ctx context.Context, eventID, personID string) error {
	identity := s.session.Identity()
	if identity == nil {
		return apperrors.ErrUnauthorized
	}
	done := s.begin()
	defer done()

	event := s.cachedEvent(eventID)
	if event == nil {
		loaded, err := s.api.GetByID(ctx, eventID)
		if err != nil {
			return err
		}
		event = loaded
	}
	if !AuthorizedForCheckIn(identity, event) {
		return &apperrors.PermissionError{Action: "perform check-ins for this event"}
	}
	if !event.CheckInOpen() {
		return fmt.Errorf("check-in is closed for event in status %q: %w", event.Status, apperrors.ErrConflict)
	}

	if err := s.api.CheckIn(ctx, eventID, personID, identity.ID); err != nil {
		return err
	}
	return nil
}

// cachedEvent returns the cached copy of an event, or nil.
func (s *Service) cachedEvent(id string) *models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.ID == id {
		cp := *s.current
		return &cp
	}
	for i := range s.events {
		if s.events[i].ID == id {
			cp := s.events[i]
			return &cp
		}
	}
	return nil
}

// BulkResult aggregates a batch check-in: how many succeeded, the display
// names of the people rejected as already checked in, and the names whose
// attempts failed outright (network, server error). The two lists are
// presented differently; a failed attempt must never read as a duplicate.
type BulkResult struct {
	Succeeded int
	Rejected  []string
	Failed    []string
}

// Message renders the operator-facing summary line.
func (r BulkResult) Message() string {
	return fmt.Sprintf("Checked in %d people", r.Succeeded)
}

// BulkCheckIn attempts every selected person independently and sequentially.
// A failure on one person never blocks the rest, and the final report
// reflects all attempted outcomes. The attendance cache is refreshed iff at
// least one check-in succeeded.
func (s *Service) BulkCheckIn(ctx context.Context, eventID string, personIDs []string) (BulkResult, error) {
	var result BulkResult
	for _, personID := range personIDs {
		err := s.CheckIn(ctx, eventID, personID)
		if err == nil {
			result.Succeeded++
			continue
		}
		if errors.Is(err, apperrors.ErrConflict) {
			result.Rejected = append(result.Rejected, s.personName(ctx, personID))
			continue
		}
		s.logger.Warn("Check-in attempt failed",
			zap.String("event_id", eventID),
			zap.String("person_id", personID),
			zap.String("error", logging.SanitizeError(err)))
		result.Failed = append(result.Failed, s.personName(ctx, personID))
	}

	if result.Succeeded > 0 {
		if err := s.LoadAttendance(ctx, eventID); err != nil {
			s.logger.Warn("Failed to refresh attendance after check-in",
				zap.String("event_id", eventID),
				zap.String("error", logging.SanitizeError(err)))
		}
	}
	return result, nil
}

// personName resolves a person id to a display name, via the LRU cache when
// possible. Unknown people report as such rather than failing the batch.
func (s *Service) personName(ctx context.Context, personID string) string {
	if name, ok := s.personNames.Get(personID); ok {
		return name
	}
	if s.people != nil {
		if person, err := s.people.GetOne(ctx, personID); err == nil {
			name := person.FullName()
			s.personNames.Add(personID, name)
			return name
		}
	}
	return "Unknown person"
}

// QuickRegister registers a newcomer and immediately checks them in. The
// newcomers list updates only after both steps succeed; a failure in either
// step must not show the person as registered.
func (s *Service) QuickRegister(ctx context.Context, eventID string, reg *models.QuickRegistration) (*models.Person, error) {
	identity := s.session.Identity()
	if identity == nil {
		return nil, apperrors.ErrUnauthorized
	}
	if errs := reg.Validate(); errs != nil {
		return nil, apperrors.ValidationError(errs)
	}
	done := s.begin()
	defer done()

	reg.EventID = eventID
	person, err := s.people.QuickRegister(ctx, reg)
	if err != nil {
		s.setErr("Failed to register person", err)
		return nil, err
	}

	if err := s.CheckIn(ctx, eventID, person.ID); err != nil {
		s.setErr("Failed to check in registered person", err)
		return nil, err
	}

	s.personNames.Add(person.ID, person.FullName())
	s.mu.Lock()
	s.newcomers = append(s.newcomers, *person)
	s.mu.Unlock()

	if err := s.LoadAttendance(ctx, eventID); err != nil {
		s.logger.Warn("Failed to refresh attendance after registration",
			zap.String("event_id", eventID),
			zap.String("error", logging.SanitizeError(err)))
	}
	s.clearErr()
	return person, nil
}
