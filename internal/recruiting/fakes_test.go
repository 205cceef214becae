package recruiting

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/hrvibe/hrvibe-core/internal/ai"
	"github.com/hrvibe/hrvibe-core/internal/headhunter"
	"github.com/hrvibe/hrvibe-core/internal/store"
	"github.com/hrvibe/hrvibe-core/internal/taskqueue"
)

type memStore struct {
	mu           sync.Mutex
	managers     map[int64]*store.Manager
	vacancies    map[string]*store.Vacancy
	negotiations map[string]*store.Negotiation

	// afterNegotiationRead runs after GetNegotiation copied the row.
	afterNegotiationRead func(id string)
}

func newMemStore() *memStore {
	return &memStore{
		managers:     map[int64]*store.Manager{},
		vacancies:    map[string]*store.Vacancy{},
		negotiations: map[string]*store.Negotiation{},
	}
}

func (s *memStore) manager(id int64) (*store.Manager, error) {
	m, ok := s.managers[id]
	if !ok {
		return nil, store.ErrManagerNotFound
	}
	return m, nil
}

func (s *memStore) vacancy(id string) (*store.Vacancy, error) {
	v, ok := s.vacancies[id]
	if !ok {
		return nil, store.ErrVacancyNotFound
	}
	return v, nil
}

func (s *memStore) negotiation(id string) (*store.Negotiation, error) {
	n, ok := s.negotiations[id]
	if !ok {
		return nil, store.ErrNegotiationNotFound
	}
	return n, nil
}

func (s *memStore) GetManager(_ context.Context, id int64) (*store.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.manager(id)
	if err != nil {
		return nil, err
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) GetManagerByOAuthState(_ context.Context, state string) (*store.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.managers {
		if state != "" && m.OAuthState == state {
			cp := *m
			return &cp, nil
		}
	}
	return nil, store.ErrManagerNotFound
}

func (s *memStore) ListManagers(_ context.Context, state string) ([]*store.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.Manager
	for _, m := range s.managers {
		if state == "" || m.ConversationState == state {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) SetManagerOAuthState(_ context.Context, id int64, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.manager(id)
	if err != nil {
		return err
	}
	m.OAuthState = state
	return nil
}

func (s *memStore) SaveManagerToken(_ context.Context, id int64, token store.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.manager(id)
	if err != nil {
		return err
	}
	m.AccessToken, m.RefreshToken, m.TokenExpiresAt = token.AccessToken, token.RefreshToken, token.ExpiresAt
	m.OAuthState = ""
	return nil
}

func (s *memStore) SaveManagerProfile(_ context.Context, id int64, p store.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.manager(id)
	if err != nil {
		return err
	}
	m.FirstName, m.LastName, m.EmployerID, m.HHManagerID, m.HHData = p.FirstName, p.LastName, p.EmployerID, p.HHManagerID, p.Raw
	return nil
}

func (s *memStore) SetManagerVacancy(_ context.Context, id int64, vacancyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.manager(id)
	if err != nil {
		return err
	}
	m.VacancyID = vacancyID
	return nil
}

func (s *memStore) UpsertVacancy(_ context.Context, id string, managerID int64, name string) (*store.Vacancy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vacancies[id]
	if !ok {
		v = &store.Vacancy{ID: id}
		s.vacancies[id] = v
	}
	v.ManagerID, v.Name = managerID, name
	cp := *v
	return &cp, nil
}

func (s *memStore) GetVacancy(_ context.Context, id string) (*store.Vacancy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.vacancy(id)
	if err != nil {
		return nil, err
	}
	cp := *v
	return &cp, nil
}

func (s *memStore) updateVacancy(id string, fn func(*store.Vacancy)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.vacancy(id)
	if err != nil {
		return err
	}
	fn(v)
	return nil
}

func (s *memStore) SetVacancyVideo(_ context.Context, id, path string) error {
	return s.updateVacancy(id, func(v *store.Vacancy) { v.VideoPath = path })
}

func (s *memStore) SetVacancyDescription(_ context.Context, id string, d json.RawMessage) error {
	return s.updateVacancy(id, func(v *store.Vacancy) { v.Description = d })
}

func (s *memStore) SetSourcingCriteria(_ context.Context, id string, c json.RawMessage) error {
	return s.updateVacancy(id, func(v *store.Vacancy) { v.SourcingCriteria, v.CriteriaConfirmed = c, false })
}

func (s *memStore) ConfirmSourcingCriteria(_ context.Context, id string) error {
	return s.updateVacancy(id, func(v *store.Vacancy) { v.CriteriaConfirmed = true })
}

func (s *memStore) SetCriteriaFeedback(_ context.Context, id, feedback string) error {
	return s.updateVacancy(id, func(v *store.Vacancy) { v.CriteriaFeedback = feedback })
}

func (s *memStore) MarkNegotiationsCollected(_ context.Context, id string, at time.Time) error {
	return s.updateVacancy(id, func(v *store.Vacancy) { v.NegotiationsCollectedAt = at })
}

func (s *memStore) InsertNegotiation(_ context.Context, n *store.Negotiation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.negotiations[n.ID]; ok {
		return false, nil
	}
	cp := *n
	if cp.SortingStatus == "" {
		cp.SortingStatus = store.SortingNew
	}
	s.negotiations[n.ID] = &cp
	return true, nil
}

func (s *memStore) GetNegotiation(_ context.Context, id string) (*store.Negotiation, error) {
	s.mu.Lock()
	n, err := s.negotiation(id)
	var cp store.Negotiation
	if err == nil {
		cp = *n
	}
	read := s.afterNegotiationRead
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if read != nil {
		read(id)
	}
	return &cp, nil
}

func (s *memStore) GetNegotiationByApplicant(_ context.Context, telegramID int64) (*store.Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.negotiations {
		if n.ApplicantTelegramID == telegramID {
			cp := *n
			return &cp, nil
		}
	}
	return nil, store.ErrNegotiationNotFound
}

func (s *memStore) ListNegotiations(_ context.Context, vacancyID string) ([]*store.Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.Negotiation
	for _, n := range s.negotiations {
		if n.VacancyID == vacancyID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) updateNegotiation(id string, fn func(*store.Negotiation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.negotiation(id)
	if err != nil {
		return err
	}
	fn(n)
	return nil
}

func (s *memStore) SaveResume(_ context.Context, id string, r store.ResumeInfo) error {
	return s.updateNegotiation(id, func(n *store.Negotiation) {
		n.FirstName, n.LastName, n.Phone, n.Email, n.ResumeJSON = r.FirstName, r.LastName, r.Phone, r.Email, r.Raw
	})
}

func (s *memStore) SaveResumeAnalysis(_ context.Context, id string, analysis json.RawMessage, score int, status string) error {
	return s.updateNegotiation(id, func(n *store.Negotiation) {
		n.AIAnalysis, n.AIScore, n.Scored, n.SortingStatus = analysis, score, true, status
	})
}

func (s *memStore) SetEmployerState(_ context.Context, id, state string) error {
	return s.updateNegotiation(id, func(n *store.Negotiation) { n.EmployerState = state })
}

func (s *memStore) MarkVideoRequestSent(_ context.Context, id string) error {
	return s.updateNegotiation(id, func(n *store.Negotiation) { n.VideoRequestSent = true })
}

func (s *memStore) BindApplicant(_ context.Context, id string, telegramID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.negotiation(id)
	if err != nil {
		return err
	}
	if n.ApplicantTelegramID != 0 && n.ApplicantTelegramID != telegramID {
		return store.ErrApplicantBound
	}
	n.ApplicantTelegramID = telegramID
	return nil
}

func (s *memStore) SetApplicantVideo(_ context.Context, id, path string) error {
	return s.updateNegotiation(id, func(n *store.Negotiation) { n.VideoPath = path })
}

func (s *memStore) MarkRecommended(_ context.Context, id string) error {
	return s.updateNegotiation(id, func(n *store.Negotiation) { n.Recommended = true })
}

func (s *memStore) MarkAccepted(_ context.Context, id string) error {
	return s.updateNegotiation(id, func(n *store.Negotiation) { n.Accepted = true })
}

// fakeHH is an hh.ru account with a fixed set of vacancies and responses.
type fakeHH struct {
	mu           sync.Mutex
	me           *headhunter.Me
	vacancies    []*headhunter.Vacancy
	negotiations headhunter.Negotiations
	resumes      map[string]*headhunter.Resume
	tokens       []string
	moved        map[string]string
	messages     map[string]string
}

func newFakeHH() *fakeHH {
	return &fakeHH{
		resumes:  map[string]*headhunter.Resume{},
		moved:    map[string]string{},
		messages: map[string]string{},
	}
}

func (f *fakeHH) factory(token string) HeadHunter {
	f.mu.Lock()
	f.tokens = append(f.tokens, token)
	f.mu.Unlock()
	return f
}

func (f *fakeHH) Me(context.Context) (*headhunter.Me, error) { return f.me, nil }

func (f *fakeHH) EmployerVacancies(context.Context, string, string) (*headhunter.Vacancies, error) {
	return &headhunter.Vacancies{Items: f.vacancies}, nil
}

func (f *fakeHH) VacancyDescription(_ context.Context, id string) (*headhunter.VacancyDescription, error) {
	raw := json.RawMessage(fmt.Sprintf(`{"id":%q,"description":"Go developer"}`, id))
	return &headhunter.VacancyDescription{ID: id, Raw: raw}, nil
}

func (f *fakeHH) Negotiations(context.Context, string, string) (headhunter.Negotiations, error) {
	return f.negotiations, nil
}

func (f *fakeHH) Resume(_ context.Context, id string) (*headhunter.Resume, error) {
	r, ok := f.resumes[id]
	if !ok {
		return nil, &headhunter.StatusError{Code: 404, Status: "404 Not Found"}
	}
	return r, nil
}

func (f *fakeHH) MoveNegotiation(_ context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moved[id] = collection
	return nil
}

func (f *fakeHH) SendNegotiationMessage(_ context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[id] = message
	return nil
}

func (f *fakeHH) addResponse(id, resumeID, first, last string) {
	n := &headhunter.Negotiation{ID: id}
	n.State.ID = headhunter.CollectionResponse
	if resumeID != "" {
		n.Resume = &headhunter.ResumeSummary{ID: resumeID, FirstName: first, LastName: last}
		f.resumes[resumeID] = &headhunter.Resume{
			ID:        resumeID,
			FirstName: first,
			LastName:  last,
			Phone:     "+7 900 000-00-00",
			Email:     strings.ToLower(first) + "@example.com",
			Raw:       json.RawMessage(fmt.Sprintf(`{"id":%q}`, resumeID)),
		}
	}
	f.negotiations = append(f.negotiations, n)
}

type fakeOAuth struct {
	exchanged []string
	refreshed int
	token     *oauth2.Token
}

func (f *fakeOAuth) AuthCodeURL(state string) string {
	return "https://hh.ru/oauth/authorize?state=" + state
}

func (f *fakeOAuth) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	f.exchanged = append(f.exchanged, code)
	return f.token, nil
}

func (f *fakeOAuth) Refresh(context.Context, *oauth2.Token) (*oauth2.Token, error) {
	f.refreshed++
	return f.token, nil
}

// fakeAnalyzer scores resumes by the resume id found in the resume JSON.
type fakeAnalyzer struct {
	criteria  *ai.SourcingCriteria
	scores    map[string]int
	feedbacks []string
}

func (f *fakeAnalyzer) AnalyzeVacancy(_ context.Context, _ json.RawMessage, feedback string) (*ai.SourcingCriteria, error) {
	f.feedbacks = append(f.feedbacks, feedback)
	return f.criteria, nil
}

func (f *fakeAnalyzer) AnalyzeResume(_ context.Context, _ json.RawMessage, _ *ai.SourcingCriteria, resume json.RawMessage) (*ai.ResumeAssessment, error) {
	var r struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resume, &r); err != nil {
		return nil, err
	}
	return &ai.ResumeAssessment{
		FinalScore:     f.scores[r.ID],
		Recommendation: "Кандидат " + r.ID,
		Compliance:     ai.Compliance{Attention: []string{"опыт < 3 лет"}},
	}, nil
}

// syncQueue runs jobs right away.
type syncQueue struct {
	ids []string
}

func (q *syncQueue) Put(ctx context.Context, job taskqueue.Job) error {
	q.ids = append(q.ids, job.ID)
	return job.Run(ctx)
}

type fakeNotifier struct {
	mu       sync.Mutex
	criteria []*ai.SourcingCriteria
	recs     []*Recommendation
	admin    []string
}

func (f *fakeNotifier) CriteriaReady(_ context.Context, _ int64, _ *store.Vacancy, c *ai.SourcingCriteria) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.criteria = append(f.criteria, c)
	return nil
}

func (f *fakeNotifier) Recommend(_ context.Context, _ int64, rec *Recommendation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeNotifier) NotifyAdmin(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admin = append(f.admin, text)
	return nil
}
