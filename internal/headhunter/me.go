package headhunter

import (
	"context"
	"encoding/json"
	"fmt"
)

// Me is the authorised hh.ru user. Only employer accounts can run the funnel.
type Me struct {
	ID         string `json:"id"`
	AuthType   string `json:"auth_type"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	MiddleName string `json:"middle_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	IsEmployer bool   `json:"is_employer"`
	Employer   *struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		ManagerID string `json:"manager_id"`
	} `json:"employer"`
	Manager *struct {
		ID string `json:"id"`
	} `json:"manager"`

	Raw json.RawMessage `json:"-"`
}

// EmployerID returns the employer the user manages or an empty string.
func (m *Me) EmployerID() string {
	if m == nil || m.Employer == nil {
		return ""
	}
	return m.Employer.ID
}

// ManagerID returns the manager id of the user, falling back to the one
// listed under employer.
func (m *Me) ManagerID() string {
	if m == nil {
		return ""
	}
	if m.Manager != nil && m.Manager.ID != "" {
		return m.Manager.ID
	}
	if m.Employer != nil {
		return m.Employer.ManagerID
	}
	return ""
}

func (c *Client) Me(ctx context.Context) (*Me, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, fmt.Sprintf("%s/me", c.APIURL), nil, &raw); err != nil {
		return nil, fmt.Errorf("get me: %w", err)
	}

	var me Me
	if err := json.Unmarshal(raw, &me); err != nil {
		return nil, fmt.Errorf("decode me: %w", err)
	}
	me.Raw = raw

	return &me, nil
}
