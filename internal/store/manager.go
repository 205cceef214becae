package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Manager is a hiring manager talking to the manager bot. ID is the Telegram
// user id.
type Manager struct {
	ID                int64
	Username          string
	FirstName         string
	LastName          string
	ConversationState string
	PrivacyConsent    bool
	OAuthState        string
	AccessToken       string
	RefreshToken      string
	TokenExpiresAt    time.Time
	HHData            json.RawMessage
	EmployerID        string
	HHManagerID       string
	VacancyID         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Authorized reports whether the manager has an hh.ru access token.
func (m *Manager) Authorized() bool {
	return m != nil && m.AccessToken != ""
}

// Token is an hh.ru OAuth token pair.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Profile is what /me tells about the manager.
type Profile struct {
	FirstName   string
	LastName    string
	EmployerID  string
	HHManagerID string
	Raw         json.RawMessage
}

const managerColumns = `id, username, first_name, last_name, conversation_state, privacy_consent,
	oauth_state, access_token, refresh_token, token_expires_at, hh_data,
	employer_id, hh_manager_id, vacancy_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanManager(row rowScanner) (*Manager, error) {
	var (
		m          Manager
		oauthState sql.NullString
		expiresAt  sql.NullTime
		hhData     []byte
	)

	err := row.Scan(
		&m.ID, &m.Username, &m.FirstName, &m.LastName, &m.ConversationState, &m.PrivacyConsent,
		&oauthState, &m.AccessToken, &m.RefreshToken, &expiresAt, &hhData,
		&m.EmployerID, &m.HHManagerID, &m.VacancyID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.OAuthState = oauthState.String
	if expiresAt.Valid {
		m.TokenExpiresAt = expiresAt.Time
	}
	if len(hhData) > 0 {
		m.HHData = hhData
	}

	return &m, nil
}

// EnsureManager creates the manager on first contact and refreshes the
// Telegram names afterwards. The stored conversation state is kept.
func (s *Store) EnsureManager(ctx context.Context, id int64, username, firstName, lastName string) (*Manager, error) {
	query := `
		INSERT INTO managers (id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username, updated_at = NOW()
		RETURNING ` + managerColumns

	m, err := scanManager(s.db.QueryRowContext(ctx, query, id, username, firstName, lastName))
	if err != nil {
		return nil, fmt.Errorf("ensure manager %d: %w", id, MapError(err))
	}

	return m, nil
}

func (s *Store) GetManager(ctx context.Context, id int64) (*Manager, error) {
	query := `SELECT ` + managerColumns + ` FROM managers WHERE id = $1`

	m, err := scanManager(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapNotFound(err, ErrManagerNotFound)
	}

	return m, nil
}

// GetManagerByOAuthState finds the manager that started the authorization
// with state.
func (s *Store) GetManagerByOAuthState(ctx context.Context, state string) (*Manager, error) {
	if state == "" {
		return nil, ErrManagerNotFound
	}

	query := `SELECT ` + managerColumns + ` FROM managers WHERE oauth_state = $1`

	m, err := scanManager(s.db.QueryRowContext(ctx, query, state))
	if err != nil {
		return nil, mapNotFound(err, ErrManagerNotFound)
	}

	return m, nil
}

// ListManagers returns managers ordered by id. An empty state lists all of them.
func (s *Store) ListManagers(ctx context.Context, state string) ([]*Manager, error) {
	query := `SELECT ` + managerColumns + ` FROM managers WHERE ($1 = '' OR conversation_state = $1) ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, state)
	if err != nil {
		return nil, fmt.Errorf("list managers: %w", MapError(err))
	}
	defer rows.Close()

	var managers []*Manager
	for rows.Next() {
		m, err := scanManager(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manager: %w", err)
		}
		managers = append(managers, m)
	}

	return managers, rows.Err()
}

func (s *Store) SetManagerState(ctx context.Context, id int64, state string) error {
	return s.updateManager(ctx, id, `conversation_state = $2`, state)
}

func (s *Store) SetManagerPrivacyConsent(ctx context.Context, id int64, consent bool) error {
	return s.updateManager(ctx, id, `privacy_consent = $2`, consent)
}

func (s *Store) SetManagerOAuthState(ctx context.Context, id int64, state string) error {
	return s.updateManager(ctx, id, `oauth_state = $2`, nullString(state))
}

// SaveManagerToken stores the token pair and forgets the OAuth state.
func (s *Store) SaveManagerToken(ctx context.Context, id int64, token Token) error {
	var expiresAt sql.NullTime
	if !token.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: token.ExpiresAt, Valid: true}
	}

	query := `
		UPDATE managers
		SET access_token = $2, refresh_token = $3, token_expires_at = $4, oauth_state = NULL, updated_at = NOW()
		WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id, token.AccessToken, token.RefreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("save token of manager %d: %w", id, MapError(err))
	}

	return checkRowsAffected(result, ErrManagerNotFound)
}

func (s *Store) SaveManagerProfile(ctx context.Context, id int64, profile Profile) error {
	query := `
		UPDATE managers
		SET first_name = COALESCE(NULLIF($2, ''), first_name),
		    last_name = COALESCE(NULLIF($3, ''), last_name),
		    employer_id = $4, hh_manager_id = $5, hh_data = $6, updated_at = NOW()
		WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id,
		profile.FirstName, profile.LastName, profile.EmployerID, profile.HHManagerID, nullJSON(profile.Raw),
	)
	if err != nil {
		return fmt.Errorf("save profile of manager %d: %w", id, MapError(err))
	}

	return checkRowsAffected(result, ErrManagerNotFound)
}

func (s *Store) SetManagerVacancy(ctx context.Context, id int64, vacancyID string) error {
	return s.updateManager(ctx, id, `vacancy_id = $2`, vacancyID)
}

func (s *Store) updateManager(ctx context.Context, id int64, set string, value any) error {
	query := `UPDATE managers SET ` + set + `, updated_at = NOW() WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("update manager %d: %w", id, MapError(err))
	}

	return checkRowsAffected(result, ErrManagerNotFound)
}
