package recruiting

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/hrvibe/hrvibe-core/internal/ai"
	"github.com/hrvibe/hrvibe-core/internal/headhunter"
	"github.com/hrvibe/hrvibe-core/internal/logger"
	"github.com/hrvibe/hrvibe-core/internal/store"
	"github.com/hrvibe/hrvibe-core/internal/taskqueue"
)

const videoExt = ".mp4"

// OpenVacancies lists the open vacancies the manager is responsible for.
func (s *Service) OpenVacancies(ctx context.Context, managerID int64) ([]*headhunter.Vacancy, error) {
	m, err := s.store.GetManager(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if m.Authorized() && m.EmployerID == "" {
		return nil, ErrNotEmployer
	}

	hh, err := s.client(ctx, m)
	if err != nil {
		return nil, err
	}

	vacancies, err := hh.EmployerVacancies(ctx, m.EmployerID, m.HHManagerID)
	if err != nil {
		return nil, err
	}

	return vacancies.Items, nil
}

// SelectVacancy makes the vacancy the one the manager works on.
func (s *Service) SelectVacancy(ctx context.Context, managerID int64, vacancyID string) (*store.Vacancy, error) {
	vacancies, err := s.OpenVacancies(ctx, managerID)
	if err != nil {
		return nil, err
	}

	list := &headhunter.Vacancies{Items: vacancies}
	selected := list.FindByID(vacancyID)
	if selected == nil {
		return nil, fmt.Errorf("%w: %s is not an open vacancy of the manager", ErrNoVacancy, vacancyID)
	}

	v, err := s.store.UpsertVacancy(ctx, selected.ID, managerID, selected.Name)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetManagerVacancy(ctx, managerID, v.ID); err != nil {
		return nil, err
	}

	s.managerLogger(managerID).Info("vacancy selected", logger.Vacancy(v.ID), zap.String("vacancy", v.Name))

	return v, nil
}

// CurrentVacancy returns the vacancy the manager works on.
func (s *Service) CurrentVacancy(ctx context.Context, managerID int64) (*store.Vacancy, error) {
	_, v, err := s.managerVacancy(ctx, managerID)
	return v, err
}

// VacancyVideoPath is where the manager video about the vacancy is kept.
func (s *Service) VacancyVideoPath(managerID int64, vacancyID string) string {
	return filepath.Join(s.config.DataDir, "videos", "managers", strconv.FormatInt(managerID, 10), vacancyID+videoExt)
}

// SaveVacancyVideo records the video downloaded to VacancyVideoPath.
func (s *Service) SaveVacancyVideo(ctx context.Context, managerID int64) (string, error) {
	_, v, err := s.managerVacancy(ctx, managerID)
	if err != nil {
		return "", err
	}

	path := s.VacancyVideoPath(managerID, v.ID)
	if err := s.store.SetVacancyVideo(ctx, v.ID, path); err != nil {
		return "", err
	}

	return path, nil
}

// DefineSourcingCriteria queues the analysis of the current vacancy. The
// manager is notified when the criteria are ready. An empty feedback reuses
// the stored one.
func (s *Service) DefineSourcingCriteria(ctx context.Context, managerID int64, feedback string) error {
	_, v, err := s.managerVacancy(ctx, managerID)
	if err != nil {
		return err
	}

	if feedback == "" {
		feedback = v.CriteriaFeedback
	}

	vacancyID := v.ID
	job := taskqueue.Func("vacancy_analysis_"+vacancyID, JobKindVacancyAnalysis, func(ctx context.Context) error {
		return s.analyzeVacancy(ctx, managerID, vacancyID, feedback)
	})

	if err := s.queue.Put(ctx, job); err != nil {
		return fmt.Errorf("queue vacancy analysis: %w", err)
	}

	return nil
}

func (s *Service) analyzeVacancy(ctx context.Context, managerID int64, vacancyID, feedback string) error {
	log := s.managerLogger(managerID).With(logger.Vacancy(vacancyID))

	v, err := s.store.GetVacancy(ctx, vacancyID)
	if err != nil {
		return err
	}

	if len(v.Description) == 0 {
		m, err := s.store.GetManager(ctx, managerID)
		if err != nil {
			return err
		}
		hh, err := s.client(ctx, m)
		if err != nil {
			return err
		}

		description, err := hh.VacancyDescription(ctx, vacancyID)
		if err != nil {
			return err
		}
		if err := s.store.SetVacancyDescription(ctx, vacancyID, description.Raw); err != nil {
			return err
		}
		v.Description = description.Raw
	}

	criteria, err := s.analyzer.AnalyzeVacancy(ctx, v.Description, feedback)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(criteria)
	if err != nil {
		return fmt.Errorf("encode sourcing criteria: %w", err)
	}
	if err := s.store.SetSourcingCriteria(ctx, vacancyID, raw); err != nil {
		return err
	}
	v.SourcingCriteria = raw
	v.CriteriaConfirmed = false

	log.Info("sourcing criteria defined",
		zap.Int("must", len(criteria.Must)),
		zap.Int("nice_to_have", len(criteria.NiceToHave)),
	)

	return s.notifier.CriteriaReady(ctx, managerID, v, criteria)
}

// SourcingCriteria returns the stored criteria of the current vacancy.
func (s *Service) SourcingCriteria(ctx context.Context, managerID int64) (*ai.SourcingCriteria, error) {
	_, v, err := s.managerVacancy(ctx, managerID)
	if err != nil {
		return nil, err
	}
	return decodeCriteria(v.SourcingCriteria)
}

func (s *Service) ConfirmSourcingCriteria(ctx context.Context, managerID int64) error {
	_, v, err := s.managerVacancy(ctx, managerID)
	if err != nil {
		return err
	}
	if _, err := decodeCriteria(v.SourcingCriteria); err != nil {
		return err
	}

	return s.store.ConfirmSourcingCriteria(ctx, v.ID)
}

func (s *Service) SaveCriteriaFeedback(ctx context.Context, managerID int64, feedback string) error {
	_, v, err := s.managerVacancy(ctx, managerID)
	if err != nil {
		return err
	}

	return s.store.SetCriteriaFeedback(ctx, v.ID, feedback)
}
