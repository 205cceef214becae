package recruiting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hrvibe/hrvibe-core/internal/ai"
	"github.com/hrvibe/hrvibe-core/internal/logger"
	"github.com/hrvibe/hrvibe-core/internal/screening"
	"github.com/hrvibe/hrvibe-core/internal/store"
)

// Recommendation is a candidate card sent to the manager.
type Recommendation struct {
	NegotiationID string
	VacancyName   string
	Name          string
	Score         int
	Text          string
	VideoPath     string
}

// Recommend sends the manager the passed candidates that were not shown yet
// and returns how many were sent.
func (s *Service) Recommend(ctx context.Context, managerID int64) (int, error) {
	_, v, err := s.managerVacancy(ctx, managerID)
	if err != nil {
		return 0, err
	}

	candidates, err := s.pending(ctx, v.ID, screening.ForRecommendation(s.config.PassedScore, s.config.RequireVideo))
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, n := range candidates {
		rec := &Recommendation{
			NegotiationID: n.ID,
			VacancyName:   v.Name,
			Name:          n.FullName(),
			Score:         n.AIScore,
			Text:          RecommendationText(n),
			VideoPath:     n.VideoPath,
		}

		if err := s.notifier.Recommend(ctx, managerID, rec); err != nil {
			return sent, err
		}
		if err := s.store.MarkRecommended(ctx, n.ID); err != nil {
			return sent, err
		}
		sent++
	}

	if sent > 0 {
		s.managerLogger(managerID).Info("candidates recommended", logger.Vacancy(v.ID), zap.Int("count", sent))
	}

	return sent, nil
}

// RecommendationText renders the candidate card: name, score, the AI
// recommendation and what to pay attention to.
func RecommendationText(n *store.Negotiation) string {
	var assessment ai.ResumeAssessment
	if len(n.AIAnalysis) > 0 {
		_ = json.Unmarshal(n.AIAnalysis, &assessment)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", escapeHTML(n.FullName()))
	fmt.Fprintf(&b, "Общий балл %d из %d\n", n.AIScore, ai.MaxScore)
	if assessment.Recommendation != "" {
		fmt.Fprintf(&b, "\n%s\n", escapeHTML(assessment.Recommendation))
	}
	if len(assessment.Compliance.Attention) > 0 {
		b.WriteString("\n<b>Обратить внимание:</b>\n")
		for _, item := range assessment.Compliance.Attention {
			fmt.Fprintf(&b, "- %s\n", escapeHTML(item))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// InviteToInterview marks the candidate as accepted by the manager and tells
// the admin to arrange the interview.
func (s *Service) InviteToInterview(ctx context.Context, managerID int64, negotiationID string) error {
	n, err := s.store.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return err
	}

	v, err := s.store.GetVacancy(ctx, n.VacancyID)
	if err != nil {
		return err
	}
	if v.ManagerID != managerID {
		return fmt.Errorf("%w: negotiation %s belongs to another manager", ErrNoVacancy, negotiationID)
	}

	if err := s.store.MarkAccepted(ctx, n.ID); err != nil {
		return err
	}

	text := fmt.Sprintf("Менеджер %d приглашает кандидата на интервью.\nВакансия: %s\nКандидат: %s\nТелефон: %s\nEmail: %s\nОтклик: %s",
		managerID, v.Name, n.FullName(), orDash(n.Phone), orDash(n.Email), n.ID)

	s.managerLogger(managerID).Info("candidate invited", logger.Negotiation(n.ID))

	return s.notifier.NotifyAdmin(ctx, text)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Funnel counts negotiations of a vacancy per funnel step.
type Funnel struct {
	VacancyID     string
	VacancyName   string
	Negotiations  int
	Fetched       int
	Analyzed      int
	Passed        int
	Failed        int
	VideoReceived int
	Recommended   int
	Accepted      int
}

func (f *Funnel) String() string {
	return fmt.Sprintf("Вакансия: %s\nОтклики: %d\nРезюме загружено: %d\nПроанализировано: %d\nПодходят: %d\nНе подходят: %d\nВидео получено: %d\nРекомендовано: %d\nПриглашено: %d",
		f.VacancyName, f.Negotiations, f.Fetched, f.Analyzed, f.Passed, f.Failed, f.VideoReceived, f.Recommended, f.Accepted)
}

func (s *Service) Status(ctx context.Context, managerID int64) (*Funnel, error) {
	_, v, err := s.managerVacancy(ctx, managerID)
	if err != nil {
		return nil, err
	}

	negotiations, err := s.store.ListNegotiations(ctx, v.ID)
	if err != nil {
		return nil, err
	}

	f := &Funnel{VacancyID: v.ID, VacancyName: v.Name, Negotiations: len(negotiations)}
	for _, n := range negotiations {
		if len(n.ResumeJSON) > 0 {
			f.Fetched++
		}
		switch n.SortingStatus {
		case store.SortingPassed:
			f.Analyzed++
			f.Passed++
		case store.SortingFailed:
			f.Analyzed++
			f.Failed++
		}
		if n.VideoPath != "" {
			f.VideoReceived++
		}
		if n.Recommended {
			f.Recommended++
		}
		if n.Accepted {
			f.Accepted++
		}
	}

	return f, nil
}

// ProcessManager runs one round of the funnel for the manager: source,
// fetch, analyse and recommend.
func (s *Service) ProcessManager(ctx context.Context, managerID int64) error {
	log := s.managerLogger(managerID)

	added, err := s.SourceNegotiations(ctx, managerID)
	if err != nil {
		return fmt.Errorf("source negotiations: %w", err)
	}

	fetched, err := s.FetchResumes(ctx, managerID)
	if err != nil {
		return fmt.Errorf("fetch resumes: %w", err)
	}

	queued, err := s.AnalyzeResumes(ctx, managerID)
	if err != nil && !errors.Is(err, ErrNoCriteria) {
		return fmt.Errorf("analyze resumes: %w", err)
	}

	recommended, err := s.Recommend(ctx, managerID)
	if err != nil {
		return fmt.Errorf("recommend: %w", err)
	}

	log.Info("manager processed",
		zap.Int("added", added),
		zap.Int("fetched", fetched),
		zap.Int("queued", queued),
		zap.Int("recommended", recommended),
	)

	return nil
}
