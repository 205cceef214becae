package headhunter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

const (
	VacancyTypeOpen = "open"

	perPage = "100"
)

type Vacancies struct {
	Items []*Vacancy
}

// Vacancy is an item of the employer vacancy list.
type Vacancy struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Type struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"type,omitempty"`
	Area struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"area,omitempty"`
	Salary *struct {
		From     int    `json:"from,omitempty"`
		To       int    `json:"to,omitempty"`
		Currency string `json:"currency,omitempty"`
	} `json:"salary,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	PublishedAt  string `json:"published_at,omitempty"`
	Counters     struct {
		Responses       int `json:"responses,omitempty"`
		UnreadResponses int `json:"unread_responses,omitempty"`
	} `json:"counters,omitempty"`
}

// VacancyDescription is the full vacancy document as returned by hh.ru.
// Raw is what gets stored and handed to the AI.
type VacancyDescription struct {
	ID   string
	Name string
	Raw  json.RawMessage
}

// EmployerVacancies lists active vacancies of the employer managed by
// managerID and keeps only the open ones.
func (c *Client) EmployerVacancies(ctx context.Context, employerID, managerID string) (*Vacancies, error) {
	if employerID == "" {
		return nil, fmt.Errorf("employer id is required")
	}

	q := url.Values{}
	q.Add("per_page", perPage)
	if managerID != "" {
		q.Add("manager_id", managerID)
	}

	items, err := c.GetItems(ctx, fmt.Sprintf("%s/employers/%s/vacancies/active", c.APIURL, employerID), q)
	if err != nil {
		return nil, fmt.Errorf("get employer vacancies: %w", err)
	}

	var vacancies []*Vacancy
	if err = decode(items, &vacancies); err != nil {
		return nil, fmt.Errorf("decode employer vacancies: %w", err)
	}

	result := &Vacancies{Items: vacancies}
	result.KeepType(VacancyTypeOpen)

	return result, nil
}

func (c *Client) VacancyDescription(ctx context.Context, id string) (*VacancyDescription, error) {
	if id == "" {
		return nil, fmt.Errorf("vacancy id is required")
	}

	var raw json.RawMessage
	if err := c.getJSON(ctx, fmt.Sprintf("%s/vacancies/%s", c.APIURL, id), nil, &raw); err != nil {
		return nil, fmt.Errorf("get vacancy %s: %w", id, err)
	}

	var head struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode vacancy %s: %w", id, err)
	}

	return &VacancyDescription{ID: head.ID, Name: head.Name, Raw: raw}, nil
}

func (v *Vacancies) Len() int {
	return len(v.Items)
}

func (v *Vacancies) FindByID(id string) *Vacancy {
	for _, vacancy := range v.Items {
		if vacancy.ID == id {
			return vacancy
		}
	}

	return nil
}

// KeepType drops vacancies of other types and returns the dropped ids.
func (v *Vacancies) KeepType(typeID string) []string {
	kept := make([]*Vacancy, 0, len(v.Items))
	dropped := make([]string, 0)

	for _, vacancy := range v.Items {
		if vacancy.Type.ID == typeID {
			kept = append(kept, vacancy)
			continue
		}
		dropped = append(dropped, vacancy.ID)
	}

	v.Items = kept
	return dropped
}
