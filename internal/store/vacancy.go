package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Vacancy struct {
	ID                      string
	ManagerID               int64
	Name                    string
	VideoPath               string
	Description             json.RawMessage
	SourcingCriteria        json.RawMessage
	CriteriaConfirmed       bool
	CriteriaFeedback        string
	NegotiationsCollectedAt time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

const vacancyColumns = `id, manager_id, name, video_path, description_json, sourcing_criteria_json,
	sourcing_criteria_confirmed, criteria_feedback, negotiations_collected_at, created_at, updated_at`

func scanVacancy(row rowScanner) (*Vacancy, error) {
	var (
		v           Vacancy
		description []byte
		criteria    []byte
		collectedAt sql.NullTime
	)

	err := row.Scan(
		&v.ID, &v.ManagerID, &v.Name, &v.VideoPath, &description, &criteria,
		&v.CriteriaConfirmed, &v.CriteriaFeedback, &collectedAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(description) > 0 {
		v.Description = description
	}
	if len(criteria) > 0 {
		v.SourcingCriteria = criteria
	}
	if collectedAt.Valid {
		v.NegotiationsCollectedAt = collectedAt.Time
	}

	return &v, nil
}

// UpsertVacancy stores the vacancy picked by a manager. A vacancy picked
// again keeps its video and criteria.
func (s *Store) UpsertVacancy(ctx context.Context, id string, managerID int64, name string) (*Vacancy, error) {
	query := `
		INSERT INTO vacancies (id, manager_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET manager_id = EXCLUDED.manager_id, name = EXCLUDED.name, updated_at = NOW()
		RETURNING ` + vacancyColumns

	v, err := scanVacancy(s.db.QueryRowContext(ctx, query, id, managerID, name))
	if err != nil {
		return nil, fmt.Errorf("upsert vacancy %s: %w", id, MapError(err))
	}

	return v, nil
}

func (s *Store) GetVacancy(ctx context.Context, id string) (*Vacancy, error) {
	query := `SELECT ` + vacancyColumns + ` FROM vacancies WHERE id = $1`

	v, err := scanVacancy(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapNotFound(err, ErrVacancyNotFound)
	}

	return v, nil
}

func (s *Store) SetVacancyVideo(ctx context.Context, id, path string) error {
	return s.updateVacancy(ctx, id, `video_path = $2`, path)
}

func (s *Store) SetVacancyDescription(ctx context.Context, id string, description json.RawMessage) error {
	return s.updateVacancy(ctx, id, `description_json = $2`, nullJSON(description))
}

// SetSourcingCriteria stores fresh criteria. They need a new confirmation.
func (s *Store) SetSourcingCriteria(ctx context.Context, id string, criteria json.RawMessage) error {
	return s.updateVacancy(ctx, id, `sourcing_criteria_json = $2, sourcing_criteria_confirmed = FALSE`, nullJSON(criteria))
}

func (s *Store) ConfirmSourcingCriteria(ctx context.Context, id string) error {
	return s.updateVacancy(ctx, id, `sourcing_criteria_confirmed = $2`, true)
}

func (s *Store) SetCriteriaFeedback(ctx context.Context, id, feedback string) error {
	return s.updateVacancy(ctx, id, `criteria_feedback = $2`, feedback)
}

func (s *Store) MarkNegotiationsCollected(ctx context.Context, id string, at time.Time) error {
	return s.updateVacancy(ctx, id, `negotiations_collected_at = $2`, at)
}

func (s *Store) updateVacancy(ctx context.Context, id string, set string, value any) error {
	query := `UPDATE vacancies SET ` + set + `, updated_at = NOW() WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("update vacancy %s: %w", id, MapError(err))
	}

	return checkRowsAffected(result, ErrVacancyNotFound)
}
