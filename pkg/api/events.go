package api

import (
	"context"
	"net/url"
	"time"

	"github.com/parishops/flock/pkg/models"
)

// EventsAPI covers the event and attendance endpoints.
type EventsAPI struct {
	c *Client
}

// eventList is the wire envelope for the events collection.
type eventList struct {
	Events []models.Event `json:"events"`
}

func (e *EventsAPI) GetAll(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if !filter.StartDate.IsZero() {
		q.Set("startDate", filter.StartDate.Format(time.RFC3339))
	}
	if !filter.EndDate.IsZero() {
		q.Set("endDate", filter.EndDate.Format(time.RFC3339))
	}
	var list eventList
	if err := e.c.get(ctx, "/events", q, &list); err != nil {
		return nil, err
	}
	return list.Events, nil
}

func (e *EventsAPI) GetByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	if err := e.c.get(ctx, "/events/"+id, nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (e *EventsAPI) Create(ctx context.Context, data *models.Event) (*models.Event, error) {
	var created models.Event
	if err := e.c.post(ctx, "/events", data, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (e *EventsAPI) Update(ctx context.Context, id string, data *models.Event) (*models.Event, error) {
	var updated models.Event
	if err := e.c.put(ctx, "/events/"+id, data, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// UpdateStatus persists a single status transition.
func (e *EventsAPI) UpdateStatus(ctx context.Context, id, status string) error {
	return e.c.put(ctx, "/events/"+id, map[string]string{"status": status}, nil)
}

func (e *EventsAPI) Delete(ctx context.Context, id string) error {
	return e.c.delete(ctx, "/events/"+id)
}

// CheckIn records one person's attendance at one event. A repeat check-in for
// the same pair is rejected by the server with a conflict.
func (e *EventsAPI) CheckIn(ctx context.Context, eventID, personID, checkedInBy string) error {
	body := map[string]string{
		"personId":    personID,
		"checkedInBy": checkedInBy,
	}
	return e.c.post(ctx, "/events/"+eventID+"/check-in", body, nil)
}

func (e *EventsAPI) GetAttendance(ctx context.Context, eventID string) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	if err := e.c.get(ctx, "/events/"+eventID+"/attendance", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (e *EventsAPI) GetNewcomers(ctx context.Context, eventID string) ([]models.Person, error) {
	var people []models.Person
	if err := e.c.get(ctx, "/events/"+eventID+"/newcomers", nil, &people); err != nil {
		return nil, err
	}
	return people, nil
}

// SearchAttendees looks up people by phone number for the check-in desk.
func (e *EventsAPI) SearchAttendees(ctx context.Context, eventID, phone string) ([]models.Person, error) {
	q := url.Values{}
	q.Set("phone", phone)
	var people []models.Person
	if err := e.c.get(ctx, "/events/"+eventID+"/search-attendees", q, &people); err != nil {
		return nil, err
	}
	return people, nil
}
