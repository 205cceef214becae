// Package headhunter is a client for the employer side of the hh.ru API.
package headhunter

import (
	"net/http"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

const (
	apiURL    = "https://api.hh.ru"
	userAgent = "hrvibe/hrvibe-core (support@hrvibe.ru)"

	defaultRequestsPerSecond = 5
)

type Client struct {
	token   string
	logger  *zap.Logger
	limiter ratelimit.Limiter

	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

// New returns a client without credentials. Use WithToken to act on behalf
// of a manager. requestsPerSecond bounds outgoing calls of the client and of
// every copy made by WithToken.
func New(logger *zap.Logger, requestsPerSecond int) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSecond
	}

	return &Client{
		logger:  logger,
		limiter: ratelimit.New(requestsPerSecond),
		APIURL:  apiURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		UserAgent: userAgent,
	}
}

// WithToken returns a copy of the client authorised with the access token.
// The copy shares the HTTP client and the rate limiter.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}
