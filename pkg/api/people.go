package api

import (
	"context"
	"net/url"

	"github.com/parishops/flock/pkg/models"
)

// PeopleAPI covers the people endpoints used by the check-in flow.
type PeopleAPI struct {
	c *Client
}

func (p *PeopleAPI) GetOne(ctx context.Context, id string) (*models.Person, error) {
	var person models.Person
	if err := p.c.get(ctx, "/people/"+id, nil, &person); err != nil {
		return nil, err
	}
	return &person, nil
}

// QuickRegister creates a person record during event check-in.
func (p *PeopleAPI) QuickRegister(ctx context.Context, reg *models.QuickRegistration) (*models.Person, error) {
	var person models.Person
	if err := p.c.post(ctx, "/people/quick-register", reg, &person); err != nil {
		return nil, err
	}
	return &person, nil
}

type peopleSearchResult struct {
	People []models.Person `json:"people"`
}

func (p *PeopleAPI) Search(ctx context.Context, query string) ([]models.Person, error) {
	q := url.Values{}
	q.Set("query", query)
	var result peopleSearchResult
	if err := p.c.get(ctx, "/people/search", q, &result); err != nil {
		return nil, err
	}
	return result.People, nil
}
