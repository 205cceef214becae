package recruiting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hrvibe/hrvibe-core/internal/store"
)

// ErrUnknownState is returned for an OAuth callback nobody is waiting for.
var ErrUnknownState = errors.New("unknown authorization state")

// StartAuthorization remembers a fresh OAuth state for the manager and
// returns the hh.ru page to open.
func (s *Service) StartAuthorization(ctx context.Context, managerID int64) (string, error) {
	state := uuid.NewString()
	if err := s.store.SetManagerOAuthState(ctx, managerID, state); err != nil {
		return "", fmt.Errorf("save oauth state: %w", err)
	}

	return s.oauth.AuthCodeURL(state), nil
}

// CompleteAuthorization handles the OAuth callback: it exchanges the code,
// stores the token and the /me profile, and returns the manager id.
func (s *Service) CompleteAuthorization(ctx context.Context, state, code string) (int64, error) {
	m, err := s.store.GetManagerByOAuthState(ctx, state)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrUnknownState
		}
		return 0, err
	}

	log := s.managerLogger(m.ID)

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return 0, err
	}

	if err := s.store.SaveManagerToken(ctx, m.ID, tokenFromOAuth(token, "")); err != nil {
		return 0, fmt.Errorf("save token: %w", err)
	}

	me, err := s.hh(token.AccessToken).Me(ctx)
	if err != nil {
		return 0, err
	}

	raw := me.Raw
	if len(raw) == 0 {
		raw, _ = json.Marshal(me)
	}

	profile := store.Profile{
		FirstName:   me.FirstName,
		LastName:    me.LastName,
		EmployerID:  me.EmployerID(),
		HHManagerID: me.ManagerID(),
		Raw:         raw,
	}
	if err := s.store.SaveManagerProfile(ctx, m.ID, profile); err != nil {
		return 0, fmt.Errorf("save profile: %w", err)
	}

	log.Info("manager authorized on hh.ru",
		zap.String("employer_id", profile.EmployerID),
		zap.String("hh_manager_id", profile.HHManagerID),
	)

	return m.ID, nil
}
