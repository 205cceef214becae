package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Resume sorting statuses.
const (
	SortingNew    = "new"
	SortingPassed = "passed"
	SortingFailed = "failed"
)

// Negotiation is an applicant response to a vacancy together with what the
// funnel learned about the applicant.
type Negotiation struct {
	ID                  string
	VacancyID           string
	ResumeID            string
	FirstName           string
	LastName            string
	Phone               string
	Email               string
	ResumeJSON          json.RawMessage
	AIAnalysis          json.RawMessage
	AIScore             int
	Scored              bool
	SortingStatus       string
	EmployerState       string
	VideoRequestSent    bool
	ApplicantTelegramID int64
	ApplicantState      string
	PrivacyConsent      bool
	VideoPath           string
	Recommended         bool
	Accepted            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// FullName is "First Last" with missing parts skipped.
func (n *Negotiation) FullName() string {
	switch {
	case n.FirstName == "":
		return n.LastName
	case n.LastName == "":
		return n.FirstName
	default:
		return n.FirstName + " " + n.LastName
	}
}

// ResumeInfo is a fetched resume.
type ResumeInfo struct {
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Raw       json.RawMessage
}

const negotiationColumns = `id, vacancy_id, resume_id, first_name, last_name, phone, email,
	resume_json, resume_ai_analysis, resume_ai_score, resume_sorting_status, employer_state,
	video_request_sent, applicant_telegram_id, applicant_state, privacy_consent, video_path,
	resume_recommended, resume_accepted, created_at, updated_at`

func scanNegotiation(row rowScanner) (*Negotiation, error) {
	var (
		n           Negotiation
		resume      []byte
		analysis    []byte
		score       sql.NullInt32
		applicantID sql.NullInt64
	)

	err := row.Scan(
		&n.ID, &n.VacancyID, &n.ResumeID, &n.FirstName, &n.LastName, &n.Phone, &n.Email,
		&resume, &analysis, &score, &n.SortingStatus, &n.EmployerState,
		&n.VideoRequestSent, &applicantID, &n.ApplicantState, &n.PrivacyConsent, &n.VideoPath,
		&n.Recommended, &n.Accepted, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(resume) > 0 {
		n.ResumeJSON = resume
	}
	if len(analysis) > 0 {
		n.AIAnalysis = analysis
	}
	n.AIScore, n.Scored = int(score.Int32), score.Valid
	n.ApplicantTelegramID = applicantID.Int64

	return &n, nil
}

func (s *Store) queryNegotiations(ctx context.Context, where string, args ...any) ([]*Negotiation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+negotiationColumns+` FROM negotiations WHERE `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var negotiations []*Negotiation
	for rows.Next() {
		n, err := scanNegotiation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan negotiation: %w", err)
		}
		negotiations = append(negotiations, n)
	}

	return negotiations, rows.Err()
}

// InsertNegotiation stores a negotiation seen for the first time. Known
// negotiations are left untouched and inserted is false.
func (s *Store) InsertNegotiation(ctx context.Context, n *Negotiation) (inserted bool, err error) {
	query := `
		INSERT INTO negotiations (id, vacancy_id, resume_id, first_name, last_name, employer_state)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	result, err := s.db.ExecContext(ctx, query, n.ID, n.VacancyID, n.ResumeID, n.FirstName, n.LastName, n.EmployerState)
	if err != nil {
		return false, fmt.Errorf("insert negotiation %s: %w", n.ID, MapError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rows > 0, nil
}

func (s *Store) GetNegotiation(ctx context.Context, id string) (*Negotiation, error) {
	query := `SELECT ` + negotiationColumns + ` FROM negotiations WHERE id = $1`

	n, err := scanNegotiation(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapNotFound(err, ErrNegotiationNotFound)
	}

	return n, nil
}

// GetNegotiationByApplicant returns the latest negotiation bound to the
// Telegram user.
func (s *Store) GetNegotiationByApplicant(ctx context.Context, telegramID int64) (*Negotiation, error) {
	query := `SELECT ` + negotiationColumns + ` FROM negotiations WHERE applicant_telegram_id = $1 ORDER BY updated_at DESC LIMIT 1`

	n, err := scanNegotiation(s.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		return nil, mapNotFound(err, ErrNegotiationNotFound)
	}

	return n, nil
}

func (s *Store) ListNegotiations(ctx context.Context, vacancyID string) ([]*Negotiation, error) {
	negotiations, err := s.queryNegotiations(ctx, `vacancy_id = $1`, vacancyID)
	if err != nil {
		return nil, fmt.Errorf("list negotiations of vacancy %s: %w", vacancyID, err)
	}
	return negotiations, nil
}

func (s *Store) SaveResume(ctx context.Context, id string, resume ResumeInfo) error {
	query := `
		UPDATE negotiations
		SET resume_json = $2,
		    first_name = COALESCE(NULLIF($3, ''), first_name),
		    last_name = COALESCE(NULLIF($4, ''), last_name),
		    phone = $5, email = $6, updated_at = NOW()
		WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id, nullJSON(resume.Raw), resume.FirstName, resume.LastName, resume.Phone, resume.Email)
	if err != nil {
		return fmt.Errorf("save resume of negotiation %s: %w", id, MapError(err))
	}

	return checkRowsAffected(result, ErrNegotiationNotFound)
}

// SaveResumeAnalysis stores the AI result and the sorting decision.
func (s *Store) SaveResumeAnalysis(ctx context.Context, id string, analysis json.RawMessage, score int, status string) error {
	query := `
		UPDATE negotiations
		SET resume_ai_analysis = $2, resume_ai_score = $3, resume_sorting_status = $4, updated_at = NOW()
		WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id, nullJSON(analysis), score, status)
	if err != nil {
		return fmt.Errorf("save analysis of negotiation %s: %w", id, MapError(err))
	}

	return checkRowsAffected(result, ErrNegotiationNotFound)
}

func (s *Store) SetEmployerState(ctx context.Context, id, state string) error {
	return s.updateNegotiation(ctx, id, `employer_state = $2`, state)
}

func (s *Store) MarkVideoRequestSent(ctx context.Context, id string) error {
	return s.updateNegotiation(ctx, id, `video_request_sent = $2`, true)
}

// BindApplicant links the negotiation to the Telegram user that opened the
// deep link. Binding the same user again is a no-op. A negotiation bound to
// someone else is left untouched and ErrApplicantBound is returned.
func (s *Store) BindApplicant(ctx context.Context, id string, telegramID int64) error {
	const query = `UPDATE negotiations SET applicant_telegram_id = $2, updated_at = NOW()
		WHERE id = $1 AND (applicant_telegram_id IS NULL OR applicant_telegram_id = $2)`

	result, err := s.db.ExecContext(ctx, query, id, telegramID)
	if err != nil {
		return fmt.Errorf("bind applicant to negotiation %s: %w", id, MapError(err))
	}

	err = checkRowsAffected(result, ErrApplicantBound)
	if !errors.Is(err, ErrApplicantBound) {
		return err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM negotiations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check negotiation %s: %w", id, MapError(err))
	}
	if !exists {
		return ErrNegotiationNotFound
	}

	return ErrApplicantBound
}

func (s *Store) SetApplicantState(ctx context.Context, id, state string) error {
	return s.updateNegotiation(ctx, id, `applicant_state = $2`, state)
}

func (s *Store) SetApplicantPrivacyConsent(ctx context.Context, id string, consent bool) error {
	return s.updateNegotiation(ctx, id, `privacy_consent = $2`, consent)
}

func (s *Store) SetApplicantVideo(ctx context.Context, id, path string) error {
	return s.updateNegotiation(ctx, id, `video_path = $2`, path)
}

func (s *Store) MarkRecommended(ctx context.Context, id string) error {
	return s.updateNegotiation(ctx, id, `resume_recommended = $2`, true)
}

func (s *Store) MarkAccepted(ctx context.Context, id string) error {
	return s.updateNegotiation(ctx, id, `resume_accepted = $2`, true)
}

func (s *Store) updateNegotiation(ctx context.Context, id string, set string, value any) error {
	query := `UPDATE negotiations SET ` + set + `, updated_at = NOW() WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("update negotiation %s: %w", id, MapError(err))
	}

	return checkRowsAffected(result, ErrNegotiationNotFound)
}
