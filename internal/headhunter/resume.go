package headhunter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Resume is the full resume document plus the fields the funnel needs.
type Resume struct {
	ID        string
	Title     string
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Raw       json.RawMessage
}

type resumeHead struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Contact   []contact `json:"contact"`
}

type contact struct {
	Type struct {
		ID string `json:"id"`
	} `json:"type"`
	Value        any `json:"value"`
	ContactValue any `json:"contact_value"`
}

func (c *Client) Resume(ctx context.Context, id string) (*Resume, error) {
	if id == "" {
		return nil, fmt.Errorf("resume id is required")
	}

	var raw json.RawMessage
	if err := c.getJSON(ctx, fmt.Sprintf("%s/resumes/%s", c.APIURL, id), nil, &raw); err != nil {
		return nil, fmt.Errorf("get resume %s: %w", id, err)
	}

	return parseResume(raw)
}

func parseResume(raw json.RawMessage) (*Resume, error) {
	var head resumeHead
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode resume: %w", err)
	}

	phone, email := pickContacts(head.Contact)

	return &Resume{
		ID:        head.ID,
		Title:     head.Title,
		FirstName: head.FirstName,
		LastName:  head.LastName,
		Phone:     phone,
		Email:     email,
		Raw:       raw,
	}, nil
}

// pickContacts returns the first phone-like value and the last value that
// looks like an email.
func pickContacts(contacts []contact) (phone, email string) {
	for _, c := range contacts {
		value := contactText(c.ContactValue)
		if value == "" {
			value = contactText(c.Value)
		}
		if value == "" {
			continue
		}

		if strings.Contains(value, "@") {
			email = value
			continue
		}
		if phone == "" {
			phone = value
		}
	}

	return phone, email
}

// contactText handles both plain string values and phone objects.
func contactText(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		if formatted, ok := val["formatted"].(string); ok {
			return strings.TrimSpace(formatted)
		}
	}
	return ""
}
