package bot

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hrvibe/hrvibe-core/internal/ai"
	"github.com/hrvibe/hrvibe-core/internal/headhunter"
	"github.com/hrvibe/hrvibe-core/internal/recruiting"
	"github.com/hrvibe/hrvibe-core/internal/store"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	fileURL string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) GetFileDirectURL(string) (string, error) {
	return f.fileURL, nil
}

func (f *fakeSender) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSender) last() tgbotapi.MessageConfig {
	msgs := f.messages()
	if len(msgs) == 0 {
		return tgbotapi.MessageConfig{}
	}
	return msgs[len(msgs)-1]
}

func (f *fakeSender) videos() []tgbotapi.VideoConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.VideoConfig
	for _, c := range f.sent {
		if v, ok := c.(tgbotapi.VideoConfig); ok {
			out = append(out, v)
		}
	}
	return out
}

type memManagers struct {
	mu       sync.Mutex
	managers map[int64]*store.Manager
}

func (s *memManagers) EnsureManager(_ context.Context, id int64, username, first, last string) (*store.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.managers == nil {
		s.managers = map[int64]*store.Manager{}
	}
	m, ok := s.managers[id]
	if !ok {
		m = &store.Manager{ID: id, ConversationState: "new"}
		s.managers[id] = m
	}
	m.Username, m.FirstName, m.LastName = username, first, last
	cp := *m
	return &cp, nil
}

func (s *memManagers) GetManager(_ context.Context, id int64) (*store.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.managers[id]
	if !ok {
		return nil, store.ErrManagerNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memManagers) SetManagerState(_ context.Context, id int64, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.managers[id].ConversationState = state
	return nil
}

func (s *memManagers) SetManagerPrivacyConsent(_ context.Context, id int64, consent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.managers[id].PrivacyConsent = consent
	return nil
}

func (s *memManagers) state(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.managers[id].ConversationState
}

type fakeManagerService struct {
	vacancy     *store.Vacancy
	videoPath   string
	selectErr   error
	feedbacks   []string
	defined     int
	feedback    string
	define      func(ctx context.Context, managerID int64, feedback string) error
	defineErr   error
	confirmed   bool
	videoSaved  bool
	invited     []string
	criteria    *ai.SourcingCriteria
	openVacancy []*headhunter.Vacancy
}

func (f *fakeManagerService) StartAuthorization(_ context.Context, id int64) (string, error) {
	return "https://hh.ru/oauth/authorize?state=s1", nil
}

func (f *fakeManagerService) OpenVacancies(context.Context, int64) ([]*headhunter.Vacancy, error) {
	return f.openVacancy, nil
}

func (f *fakeManagerService) SelectVacancy(_ context.Context, managerID int64, id string) (*store.Vacancy, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	f.vacancy = &store.Vacancy{ID: id, ManagerID: managerID, Name: "Go developer"}
	return f.vacancy, nil
}

func (f *fakeManagerService) CurrentVacancy(context.Context, int64) (*store.Vacancy, error) {
	if f.vacancy == nil {
		return nil, recruiting.ErrNoVacancy
	}
	return f.vacancy, nil
}

func (f *fakeManagerService) VacancyVideoPath(int64, string) string { return f.videoPath }

func (f *fakeManagerService) SaveVacancyVideo(context.Context, int64) (string, error) {
	f.videoSaved = true
	return f.videoPath, nil
}

func (f *fakeManagerService) DefineSourcingCriteria(ctx context.Context, managerID int64, feedback string) error {
	f.defined++
	f.feedback = feedback
	if f.define != nil {
		return f.define(ctx, managerID, feedback)
	}
	return f.defineErr
}

func (f *fakeManagerService) SourcingCriteria(context.Context, int64) (*ai.SourcingCriteria, error) {
	return f.criteria, nil
}

func (f *fakeManagerService) ConfirmSourcingCriteria(context.Context, int64) error {
	f.confirmed = true
	return nil
}

func (f *fakeManagerService) SaveCriteriaFeedback(_ context.Context, _ int64, feedback string) error {
	f.feedbacks = append(f.feedbacks, feedback)
	return nil
}

func (f *fakeManagerService) Status(context.Context, int64) (*recruiting.Funnel, error) {
	return &recruiting.Funnel{VacancyName: "Go developer", Negotiations: 3}, nil
}

func (f *fakeManagerService) InviteToInterview(_ context.Context, _ int64, negotiationID string) error {
	f.invited = append(f.invited, negotiationID)
	return nil
}

type memApplicants struct {
	mu           sync.Mutex
	negotiations map[string]*store.Negotiation
}

func (s *memApplicants) SetApplicantState(_ context.Context, id, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.negotiations[id].ApplicantState = state
	return nil
}

func (s *memApplicants) SetApplicantPrivacyConsent(_ context.Context, id string, consent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.negotiations[id].PrivacyConsent = consent
	return nil
}

type fakeApplicantService struct {
	store        *memApplicants
	videoPath    string
	managerVideo string
	saved        []string
}

func (f *fakeApplicantService) BindApplicant(_ context.Context, payload string, telegramID int64) (*store.Negotiation, error) {
	id, _, ok := strings.Cut(payload, "_")
	if !ok {
		return nil, recruiting.ErrBadPayload
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	n, found := f.store.negotiations[id]
	if !found {
		return nil, store.ErrNegotiationNotFound
	}
	if n.ApplicantTelegramID != 0 && n.ApplicantTelegramID != telegramID {
		return nil, recruiting.ErrAlreadyBound
	}
	n.ApplicantTelegramID = telegramID
	cp := *n
	return &cp, nil
}

func (f *fakeApplicantService) ApplicantNegotiation(_ context.Context, telegramID int64) (*store.Negotiation, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, n := range f.store.negotiations {
		if n.ApplicantTelegramID == telegramID {
			cp := *n
			return &cp, nil
		}
	}
	return nil, store.ErrNegotiationNotFound
}

func (f *fakeApplicantService) ApplicantVideoPath(*store.Negotiation) string { return f.videoPath }

func (f *fakeApplicantService) SaveApplicantVideo(_ context.Context, id string) error {
	f.saved = append(f.saved, id)
	return nil
}

func (f *fakeApplicantService) ManagerVideoFor(context.Context, string) (string, error) {
	return f.managerVideo, nil
}

func command(userID int64, text string) tgbotapi.Update {
	cmd, _, _ := strings.Cut(text, " ")
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID, FirstName: "Анна"},
		Chat:     &tgbotapi.Chat{ID: userID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func text(userID int64, body string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: body,
	}}
}

func video(userID int64, fileID string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:  &tgbotapi.User{ID: userID},
		Chat:  &tgbotapi.Chat{ID: userID},
		Video: &tgbotapi.Video{FileID: fileID},
	}}
}

func press(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: userID},
		Data: data,
	}}
}

func keyboardData(m tgbotapi.MessageConfig) []string {
	kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		return nil
	}
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			switch {
			case b.CallbackData != nil:
				out = append(out, *b.CallbackData)
			case b.URL != nil:
				out = append(out, *b.URL)
			}
		}
	}
	return out
}
