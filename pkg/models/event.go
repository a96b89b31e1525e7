package models

import (
	"time"

	"github.com/parishops/flock/pkg/apperrors"
)

// Event status values. The state machine is monotonic:
// draft -> published -> in_progress -> completed. draft -> published is the
// only manual transition; the rest are driven by wall-clock time.
const (
	StatusDraft      = "draft"
	StatusPublished  = "published"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

var statusRank = map[string]int{
	StatusDraft:      0,
	StatusPublished:  1,
	StatusInProgress: 2,
	StatusCompleted:  3,
}

// RecurringDetails describes an optional recurrence. When present, both the
// day set and the frequency are required.
type RecurringDetails struct {
	Frequency string   `json:"frequency,omitempty"`
	Days      []string `json:"days,omitempty"`
}

// Event is a church event with check-in. Role assignments reference users;
// team rosters reference people.
type Event struct {
	ID               string            `json:"_id"`
	Name             string            `json:"name"`
	StartDateTime    time.Time         `json:"startDateTime"`
	EndDateTime      time.Time         `json:"endDateTime"`
	Recurring        bool              `json:"recurring,omitempty"`
	RecurringDetails *RecurringDetails `json:"recurringDetails,omitempty"`
	Status           string            `json:"status"`

	EventInCharge   []Ref `json:"eventInCharge,omitempty"`
	CheckInInCharge []Ref `json:"checkInInCharge,omitempty"`
	WelcomeTeamLead *Ref  `json:"welcomeTeamLead,omitempty"`
	CafeTeamLead    *Ref  `json:"cafeTeamLead,omitempty"`
	MediaTeamLead   *Ref  `json:"mediaTeamLead,omitempty"`
	WelcomeTeam     []Ref `json:"welcomeTeam,omitempty"`
	CafeTeam        []Ref `json:"cafeTeam,omitempty"`
	MediaTeam       []Ref `json:"mediaTeam,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// NextStatus returns the status the event should hold at time now, or "" when
// no automatic transition applies. Drafts never auto-advance, and no
// transition moves backward.
func (e *Event) NextStatus(now time.Time) string {
	switch e.Status {
	case StatusPublished:
		if now.After(e.EndDateTime) {
			return StatusCompleted
		}
		if !now.Before(e.StartDateTime) {
			return StatusInProgress
		}
	case StatusInProgress:
		if now.After(e.EndDateTime) {
			return StatusCompleted
		}
	}
	return ""
}

// CanTransition reports whether moving from the event's current status to
// next respects monotonicity.
func (e *Event) CanTransition(next string) bool {
	cur, ok := statusRank[e.Status]
	if !ok {
		return false
	}
	nxt, ok := statusRank[next]
	return ok && nxt > cur
}

// CheckInOpen reports whether check-in is permitted for the event's status.
func (e *Event) CheckInOpen() bool {
	return e.Status == StatusPublished || e.Status == StatusInProgress
}

// Validate collects client-side required-field failures. It is called before
// any network call; a non-nil result means the call must be skipped.
func (e *Event) Validate() error {
	errs := apperrors.ValidationError{}
	if e.Name == "" {
		errs["name"] = "Event name is required"
	}
	if e.StartDateTime.IsZero() {
		errs["startDateTime"] = "Start date/time is required"
	}
	if e.EndDateTime.IsZero() {
		errs["endDateTime"] = "End date/time is required"
	}
	if !e.StartDateTime.IsZero() && !e.EndDateTime.IsZero() && !e.EndDateTime.After(e.StartDateTime) {
		errs["endDateTime"] = "End must be after start"
	}
	if len(e.EventInCharge) == 0 {
		errs["eventInCharge"] = "At least one event in-charge is required"
	}
	if len(e.CheckInInCharge) == 0 {
		errs["checkInInCharge"] = "At least one check-in in-charge is required"
	}
	if e.Recurring {
		if e.RecurringDetails == nil || e.RecurringDetails.Frequency == "" {
			errs["frequency"] = "Frequency is required for recurring events"
		}
		if e.RecurringDetails == nil || len(e.RecurringDetails.Days) == 0 {
			errs["days"] = "Select at least one day for recurring events"
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// EventFilter narrows a fetch of events.
type EventFilter struct {
	Status    string
	StartDate time.Time
	EndDate   time.Time
}

// TeamAssignments returns the set of person ids already placed on any of the
// three team rosters. A person must not appear on more than one roster; the
// exclusion is enforced at selection time with this set.
func (e *Event) TeamAssignments() map[string]bool {
	assigned := make(map[string]bool)
	for _, team := range [][]Ref{e.WelcomeTeam, e.CafeTeam, e.MediaTeam} {
		for _, r := range team {
			if r.ID != "" {
				assigned[r.ID] = true
			}
		}
	}
	return assigned
}
