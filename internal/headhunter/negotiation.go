package headhunter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	apiNegotiationPath = "/negotiations"

	// Employer collections of negotiations.
	CollectionResponse = "response"
	CollectionConsider = "consider"

	negotiationsPerPage = "50"
)

type Negotiations []*Negotiation

// Negotiation is a response of an applicant to a vacancy.
type Negotiation struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	State     struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"state"`
	Resume *ResumeSummary `json:"resume"`
}

// ResumeSummary is the short resume embedded in a negotiation.
type ResumeSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ResumeID returns the id of the attached resume or an empty string.
func (n *Negotiation) ResumeID() string {
	if n == nil || n.Resume == nil {
		return ""
	}
	return n.Resume.ID
}

// Negotiations returns all negotiations of the vacancy in the collection.
func (c *Client) Negotiations(ctx context.Context, collection, vacancyID string) (Negotiations, error) {
	if vacancyID == "" {
		return nil, fmt.Errorf("vacancy id is required")
	}
	if collection == "" {
		collection = CollectionResponse
	}

	q := url.Values{}
	q.Add("vacancy_id", vacancyID)
	q.Add("per_page", negotiationsPerPage)

	items, err := c.GetItems(ctx, fmt.Sprintf("%s%s/%s", c.APIURL, apiNegotiationPath, collection), q)
	if err != nil {
		return nil, fmt.Errorf("get negotiations %s: %w", collection, err)
	}

	var negotiations Negotiations
	if err = decode(items, &negotiations); err != nil {
		return nil, fmt.Errorf("decode negotiations: %w", err)
	}

	return negotiations, nil
}

// WithResume drops negotiations without a resume attached.
func (n Negotiations) WithResume() Negotiations {
	result := make(Negotiations, 0, len(n))
	for _, negotiation := range n {
		if negotiation.ResumeID() != "" {
			result = append(result, negotiation)
		}
	}
	return result
}

// MoveNegotiation moves the negotiation into another employer collection,
// for example CollectionConsider.
func (c *Client) MoveNegotiation(ctx context.Context, collection, negotiationID string) error {
	if negotiationID == "" {
		return fmt.Errorf("negotiation id is required")
	}

	u := fmt.Sprintf("%s%s/%s/%s", c.APIURL, apiNegotiationPath, collection, negotiationID)
	if err := c.put(ctx, u, http.StatusOK, http.StatusCreated, http.StatusNoContent); err != nil {
		return fmt.Errorf("move negotiation %s to %s: %w", negotiationID, collection, err)
	}

	return nil
}

// SendNegotiationMessage posts a message into the negotiation chat.
func (c *Client) SendNegotiationMessage(ctx context.Context, negotiationID, message string) error {
	message = strings.TrimSpace(message)
	if negotiationID == "" {
		return fmt.Errorf("negotiation id is required")
	}
	if message == "" {
		return fmt.Errorf("message must not be empty")
	}

	u := fmt.Sprintf("%s%s/%s/messages", c.APIURL, apiNegotiationPath, negotiationID)
	data := map[string]string{
		"message": message,
	}

	if err := c.postFormData(ctx, u, data, http.StatusOK, http.StatusCreated); err != nil {
		return fmt.Errorf("send message to negotiation %s: %w", negotiationID, err)
	}

	return nil
}
