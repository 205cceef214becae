package headhunter

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	oauthAuthURL  = "https://hh.ru/oauth/authorize"
	oauthTokenURL = "https://api.hh.ru/token"
)

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// AuthURL and TokenURL override the hh.ru endpoints when set.
	AuthURL  string
	TokenURL string
}

// OAuth performs the authorization code flow against hh.ru.
type OAuth struct {
	config *oauth2.Config
}

func NewOAuth(cfg OAuthConfig) *OAuth {
	endpoint := oauth2.Endpoint{
		AuthURL:   oauthAuthURL,
		TokenURL:  oauthTokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	return &OAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
		},
	}
}

// AuthCodeURL is the page a manager opens to grant access. state comes back
// unchanged in the callback.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state)
}

func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return token, nil
}

// Refresh returns token unchanged while it is valid and a refreshed one otherwise.
func (o *OAuth) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	fresh, err := o.config.TokenSource(ctx, token).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh access token: %w", err)
	}
	return fresh, nil
}
