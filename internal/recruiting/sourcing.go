package recruiting

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/hrvibe/hrvibe-core/internal/headhunter"
	"github.com/hrvibe/hrvibe-core/internal/logger"
	"github.com/hrvibe/hrvibe-core/internal/screening"
	"github.com/hrvibe/hrvibe-core/internal/store"
	"github.com/hrvibe/hrvibe-core/internal/taskqueue"
)

const applicantMessage = "Здравствуйте, %s! Спасибо за отклик на вакансию «%s». " +
	"Ваше резюме нам понравилось. Чтобы перейти к следующему шагу, запишите короткое видео-знакомство " +
	"в нашем Telegram-боте: %s"

// SourceNegotiations stores the responses to the current vacancy that were
// not seen before and returns how many were added.
func (s *Service) SourceNegotiations(ctx context.Context, managerID int64) (int, error) {
	m, v, err := s.managerVacancy(ctx, managerID)
	if err != nil {
		return 0, err
	}
	if !v.CriteriaConfirmed {
		return 0, ErrCriteriaNotConfirmed
	}

	hh, err := s.client(ctx, m)
	if err != nil {
		return 0, err
	}

	negotiations, err := hh.Negotiations(ctx, headhunter.CollectionResponse, v.ID)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, n := range negotiations {
		record := &store.Negotiation{
			ID:            n.ID,
			VacancyID:     v.ID,
			ResumeID:      n.ResumeID(),
			EmployerState: n.State.ID,
		}
		if n.Resume != nil {
			record.FirstName, record.LastName = n.Resume.FirstName, n.Resume.LastName
		}

		inserted, err := s.store.InsertNegotiation(ctx, record)
		if err != nil {
			return added, err
		}
		if inserted {
			added++
		}
	}

	if err := s.store.MarkNegotiationsCollected(ctx, v.ID, s.now()); err != nil {
		return added, err
	}

	s.managerLogger(managerID).Info("negotiations sourced",
		logger.Vacancy(v.ID),
		zap.Int("received", len(negotiations)),
		zap.Int("added", added),
	)

	return added, nil
}

// FetchResumes downloads the resumes that are not stored yet. A resume that
// fails to download is logged and retried on the next run.
func (s *Service) FetchResumes(ctx context.Context, managerID int64) (int, error) {
	m, v, err := s.managerVacancy(ctx, managerID)
	if err != nil {
		return 0, err
	}

	pending, err := s.pending(ctx, v.ID, screening.ForFetch())
	if err != nil || len(pending) == 0 {
		return 0, err
	}

	hh, err := s.client(ctx, m)
	if err != nil {
		return 0, err
	}

	log := s.managerLogger(managerID)

	fetched := 0
	for _, n := range pending {
		resume, err := hh.Resume(ctx, n.ResumeID)
		if err != nil {
			if ctx.Err() != nil {
				return fetched, ctx.Err()
			}
			log.Warn("fetching resume failed", logger.Negotiation(n.ID), logger.Resume(n.ResumeID), zap.Error(err))
			continue
		}

		err = s.store.SaveResume(ctx, n.ID, store.ResumeInfo{
			FirstName: resume.FirstName,
			LastName:  resume.LastName,
			Phone:     resume.Phone,
			Email:     resume.Email,
			Raw:       resume.Raw,
		})
		if err != nil {
			return fetched, err
		}
		fetched++
	}

	log.Info("resumes fetched", logger.Vacancy(v.ID), zap.Int("pending", len(pending)), zap.Int("fetched", fetched))

	return fetched, nil
}

// AnalyzeResumes queues one analysis job per fetched and not yet analysed
// resume and returns how many were queued.
func (s *Service) AnalyzeResumes(ctx context.Context, managerID int64) (int, error) {
	_, v, err := s.managerVacancy(ctx, managerID)
	if err != nil {
		return 0, err
	}
	if _, err := decodeCriteria(v.SourcingCriteria); err != nil {
		return 0, err
	}

	pending, err := s.pending(ctx, v.ID, screening.ForAnalysis())
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, n := range pending {
		negotiationID := n.ID
		id := fmt.Sprintf("resume_analysis_%d_%s_%s", managerID, v.ID, n.ResumeID)
		job := taskqueue.Func(id, JobKindResumeAnalysis, func(ctx context.Context) error {
			return s.analyzeResume(ctx, managerID, negotiationID)
		})

		if err := s.queue.Put(ctx, job); err != nil {
			return queued, fmt.Errorf("queue resume analysis: %w", err)
		}
		queued++
	}

	if queued > 0 {
		s.managerLogger(managerID).Info("resume analysis queued", logger.Vacancy(v.ID), zap.Int("queued", queued))
	}

	return queued, nil
}

// analyzeResume scores one resume, sorts it, moves the negotiation to the
// consider collection and invites passed applicants to the applicant bot.
// Already analysed negotiations are skipped, so a job queued twice is harmless.
func (s *Service) analyzeResume(ctx context.Context, managerID int64, negotiationID string) error {
	log := s.managerLogger(managerID).With(logger.Negotiation(negotiationID))

	n, err := s.store.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return err
	}
	if n.SortingStatus != store.SortingNew {
		log.Debug("resume already analysed", zap.String("status", n.SortingStatus))
		return nil
	}

	v, err := s.store.GetVacancy(ctx, n.VacancyID)
	if err != nil {
		return err
	}
	criteria, err := decodeCriteria(v.SourcingCriteria)
	if err != nil {
		return err
	}

	assessment, err := s.analyzer.AnalyzeResume(ctx, v.Description, criteria, n.ResumeJSON)
	if err != nil {
		return err
	}

	status := store.SortingFailed
	if assessment.Passed(s.config.PassedScore) {
		status = store.SortingPassed
	}

	analysis, err := json.Marshal(assessment)
	if err != nil {
		return fmt.Errorf("encode resume analysis: %w", err)
	}
	if err := s.store.SaveResumeAnalysis(ctx, n.ID, analysis, assessment.FinalScore, status); err != nil {
		return err
	}

	log.Info("resume analysed", zap.Int("score", assessment.FinalScore), zap.String("status", status))

	m, err := s.store.GetManager(ctx, managerID)
	if err != nil {
		return err
	}
	hh, err := s.client(ctx, m)
	if err != nil {
		return err
	}

	if err := hh.MoveNegotiation(ctx, headhunter.CollectionConsider, n.ID); err != nil {
		return err
	}
	if err := s.store.SetEmployerState(ctx, n.ID, headhunter.CollectionConsider); err != nil {
		return err
	}

	if status != store.SortingPassed || n.VideoRequestSent {
		return nil
	}

	message := fmt.Sprintf(applicantMessage, n.FirstName, v.Name, s.ApplicantLink(n.ID))
	if err := hh.SendNegotiationMessage(ctx, n.ID, message); err != nil {
		return err
	}

	return s.store.MarkVideoRequestSent(ctx, n.ID)
}

func (s *Service) pending(ctx context.Context, vacancyID string, steps []screening.Filter) ([]*store.Negotiation, error) {
	negotiations, err := s.store.ListNegotiations(ctx, vacancyID)
	if err != nil {
		return nil, err
	}

	return screening.Run(ctx, s.logger, steps, negotiations)
}
