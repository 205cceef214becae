// Package recruiting drives the hiring funnel of a manager: hh.ru
// authorization, vacancy setup, sourcing criteria, resume screening and
// recommendations, plus the applicant side of it.
package recruiting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/hrvibe/hrvibe-core/internal/ai"
	"github.com/hrvibe/hrvibe-core/internal/headhunter"
	"github.com/hrvibe/hrvibe-core/internal/logger"
	"github.com/hrvibe/hrvibe-core/internal/store"
	"github.com/hrvibe/hrvibe-core/internal/taskqueue"
)

var (
	ErrNotAuthorized        = errors.New("manager is not authorized on hh.ru")
	ErrNotEmployer          = errors.New("hh.ru account is not an employer")
	ErrNoVacancy            = errors.New("no vacancy selected")
	ErrNoCriteria           = errors.New("sourcing criteria are not defined")
	ErrCriteriaNotConfirmed = errors.New("sourcing criteria are not confirmed")
	ErrBadPayload           = errors.New("bad applicant payload")
	ErrAlreadyBound         = store.ErrApplicantBound
)

const (
	DefaultPassedScore = 7

	JobKindVacancyAnalysis = "vacancy_analysis"
	JobKindResumeAnalysis  = "resume_analysis"

	tokenRefreshMargin = time.Minute
)

// Store is the persistence the service needs.
type Store interface {
	GetManager(ctx context.Context, id int64) (*store.Manager, error)
	GetManagerByOAuthState(ctx context.Context, state string) (*store.Manager, error)
	ListManagers(ctx context.Context, state string) ([]*store.Manager, error)
	SetManagerOAuthState(ctx context.Context, id int64, state string) error
	SaveManagerToken(ctx context.Context, id int64, token store.Token) error
	SaveManagerProfile(ctx context.Context, id int64, profile store.Profile) error
	SetManagerVacancy(ctx context.Context, id int64, vacancyID string) error

	UpsertVacancy(ctx context.Context, id string, managerID int64, name string) (*store.Vacancy, error)
	GetVacancy(ctx context.Context, id string) (*store.Vacancy, error)
	SetVacancyVideo(ctx context.Context, id, path string) error
	SetVacancyDescription(ctx context.Context, id string, description json.RawMessage) error
	SetSourcingCriteria(ctx context.Context, id string, criteria json.RawMessage) error
	ConfirmSourcingCriteria(ctx context.Context, id string) error
	SetCriteriaFeedback(ctx context.Context, id, feedback string) error
	MarkNegotiationsCollected(ctx context.Context, id string, at time.Time) error

	InsertNegotiation(ctx context.Context, n *store.Negotiation) (bool, error)
	GetNegotiation(ctx context.Context, id string) (*store.Negotiation, error)
	GetNegotiationByApplicant(ctx context.Context, telegramID int64) (*store.Negotiation, error)
	ListNegotiations(ctx context.Context, vacancyID string) ([]*store.Negotiation, error)
	SaveResume(ctx context.Context, id string, resume store.ResumeInfo) error
	SaveResumeAnalysis(ctx context.Context, id string, analysis json.RawMessage, score int, status string) error
	SetEmployerState(ctx context.Context, id, state string) error
	MarkVideoRequestSent(ctx context.Context, id string) error
	BindApplicant(ctx context.Context, id string, telegramID int64) error
	SetApplicantVideo(ctx context.Context, id, path string) error
	MarkRecommended(ctx context.Context, id string) error
	MarkAccepted(ctx context.Context, id string) error
}

// HeadHunter is the hh.ru API acting on behalf of one manager.
type HeadHunter interface {
	Me(ctx context.Context) (*headhunter.Me, error)
	EmployerVacancies(ctx context.Context, employerID, managerID string) (*headhunter.Vacancies, error)
	VacancyDescription(ctx context.Context, id string) (*headhunter.VacancyDescription, error)
	Negotiations(ctx context.Context, collection, vacancyID string) (headhunter.Negotiations, error)
	Resume(ctx context.Context, id string) (*headhunter.Resume, error)
	MoveNegotiation(ctx context.Context, collection, negotiationID string) error
	SendNegotiationMessage(ctx context.Context, negotiationID, message string) error
}

// HeadHunterFactory returns a client authorised with the access token.
type HeadHunterFactory func(token string) HeadHunter

type Authorizer interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)
}

// Enqueuer accepts background jobs.
type Enqueuer interface {
	Put(ctx context.Context, job taskqueue.Job) error
}

// Notifier delivers funnel events to people.
type Notifier interface {
	CriteriaReady(ctx context.Context, managerID int64, vacancy *store.Vacancy, criteria *ai.SourcingCriteria) error
	Recommend(ctx context.Context, managerID int64, rec *Recommendation) error
	NotifyAdmin(ctx context.Context, text string) error
}

type Config struct {
	// PassedScore is the lowest AI score on the 0..10 scale that passes a resume.
	PassedScore int `mapstructure:"passed-score" validate:"gte=0,lte=10"`
	// RequireVideo limits recommendations to applicants who recorded a video.
	RequireVideo         bool   `mapstructure:"require-video"`
	ApplicantBotUsername string `mapstructure:"applicant-bot-username" validate:"required"`
	SharedSecret         string `mapstructure:"shared-secret" validate:"required"`
	DataDir              string `mapstructure:"data-dir" validate:"required"`
}

type Service struct {
	store    Store
	hh       HeadHunterFactory
	oauth    Authorizer
	analyzer ai.Analyzer
	queue    Enqueuer
	notifier Notifier
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

type Deps struct {
	Store      Store
	HeadHunter HeadHunterFactory
	OAuth      Authorizer
	Analyzer   ai.Analyzer
	Queue      Enqueuer
	Notifier   Notifier
	Logger     *zap.Logger
}

func New(cfg Config, deps Deps) *Service {
	if cfg.PassedScore <= 0 {
		cfg.PassedScore = DefaultPassedScore
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		store:    deps.Store,
		hh:       deps.HeadHunter,
		oauth:    deps.OAuth,
		analyzer: deps.Analyzer,
		queue:    deps.Queue,
		notifier: deps.Notifier,
		config:   cfg,
		logger:   log,
		now:      time.Now,
	}
}

// SetNotifier wires the notifier after construction. The manager bot needs
// the service and the service notifies through the bot.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Service) managerLogger(managerID int64) *zap.Logger {
	return logger.WithFields(s.logger, logger.UserFields("manager", managerID)...)
}

// client returns an hh.ru client for the manager, refreshing an expiring
// token first.
func (s *Service) client(ctx context.Context, m *store.Manager) (HeadHunter, error) {
	if !m.Authorized() {
		return nil, ErrNotAuthorized
	}

	access := m.AccessToken
	if !m.TokenExpiresAt.IsZero() && s.now().Add(tokenRefreshMargin).After(m.TokenExpiresAt) {
		fresh, err := s.oauth.Refresh(ctx, &oauth2.Token{
			AccessToken:  m.AccessToken,
			RefreshToken: m.RefreshToken,
			Expiry:       m.TokenExpiresAt,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotAuthorized, err)
		}

		if fresh.AccessToken != m.AccessToken {
			token := tokenFromOAuth(fresh, m.RefreshToken)
			if err := s.store.SaveManagerToken(ctx, m.ID, token); err != nil {
				return nil, err
			}
			m.AccessToken, m.RefreshToken, m.TokenExpiresAt = token.AccessToken, token.RefreshToken, token.ExpiresAt
			s.managerLogger(m.ID).Info("hh.ru token refreshed")
		}
		access = m.AccessToken
	}

	return s.hh(access), nil
}

// managerVacancy loads the manager and the vacancy the manager works on.
func (s *Service) managerVacancy(ctx context.Context, managerID int64) (*store.Manager, *store.Vacancy, error) {
	m, err := s.store.GetManager(ctx, managerID)
	if err != nil {
		return nil, nil, err
	}
	if m.VacancyID == "" {
		return m, nil, ErrNoVacancy
	}

	v, err := s.store.GetVacancy(ctx, m.VacancyID)
	if err != nil {
		return m, nil, err
	}

	return m, v, nil
}

func tokenFromOAuth(t *oauth2.Token, fallbackRefresh string) store.Token {
	refresh := t.RefreshToken
	if refresh == "" {
		refresh = fallbackRefresh
	}
	return store.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    t.Expiry,
	}
}

func decodeCriteria(raw json.RawMessage) (*ai.SourcingCriteria, error) {
	if len(raw) == 0 {
		return nil, ErrNoCriteria
	}

	var criteria ai.SourcingCriteria
	if err := json.Unmarshal(raw, &criteria); err != nil {
		return nil, fmt.Errorf("decode sourcing criteria: %w", err)
	}
	if criteria.IsEmpty() {
		return nil, ErrNoCriteria
	}

	return &criteria, nil
}
