package models

import (
	"strings"
	"time"
)

// Person is a church member or visitor record.
type Person struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Gender    string `json:"gender,omitempty"`
	Phone     string `json:"phone,omitempty"`
	InvitedBy string `json:"invitedBy,omitempty"`
}

// FullName joins the name parts for display.
func (p *Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// AttendanceRecord is one check-in of one person at one event. The server
// enforces at most one record per (event, person) pair; a repeat attempt is
// rejected with a conflict, never duplicated.
type AttendanceRecord struct {
	ID              string    `json:"_id"`
	EventID         string    `json:"eventId"`
	Person          Ref       `json:"person"`
	PersonName      string    `json:"personName,omitempty"`
	CheckinTime     time.Time `json:"checkinTime"`
	CheckedInBy     Ref       `json:"checkedInBy,omitempty"`
	CheckedInByName string    `json:"checkedInByName,omitempty"`
}

// QuickRegistration is the input for registering a newcomer during check-in.
type QuickRegistration struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Gender    string `json:"gender,omitempty"`
	Phone     string `json:"phone,omitempty"`
	InvitedBy string `json:"invitedBy,omitempty"`
	EventID   string `json:"eventId"`
}

// Validate collects required-field failures for a quick registration.
func (q *QuickRegistration) Validate() map[string]string {
	errs := make(map[string]string)
	if q.FirstName == "" {
		errs["firstName"] = "First name is required"
	}
	if q.LastName == "" {
		errs["lastName"] = "Last name is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
