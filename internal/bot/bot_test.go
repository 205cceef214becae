package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hrvibe/hrvibe-core/internal/ai"
	"github.com/hrvibe/hrvibe-core/internal/headhunter"
	"github.com/hrvibe/hrvibe-core/internal/recruiting"
	"github.com/hrvibe/hrvibe-core/internal/store"
	"github.com/hrvibe/hrvibe-core/internal/taskqueue"
)

const managerID = int64(42)

func newManagerBot(t *testing.T) (*ManagerBot, *fakeSender, *memManagers, *fakeManagerService) {
	t.Helper()

	api := &fakeSender{}
	st := &memManagers{}
	svc := &fakeManagerService{
		videoPath:   filepath.Join(t.TempDir(), "videos", "managers", "42", "100.mp4"),
		criteria:    &ai.SourcingCriteria{Must: []string{"Go"}},
		openVacancy: []*headhunter.Vacancy{{ID: "100", Name: "Go developer"}},
	}

	return NewManagerBot(api, st, svc, 1, zaptest.NewLogger(t)), api, st, svc
}

func videoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("mp4"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestManagerDialogue(t *testing.T) {
	ctx := context.Background()
	b, api, st, svc := newManagerBot(t)
	api.fileURL = videoServer(t).URL + "/file.mp4"

	require.NoError(t, b.Handle(ctx, command(managerID, "/start")))
	assert.Equal(t, "awaiting_privacy_consent", st.state(managerID))
	assert.Equal(t, []string{"consent:yes", "consent:no"}, keyboardData(api.last()))

	require.NoError(t, b.Handle(ctx, press(managerID, "consent:yes")))
	assert.Equal(t, "awaiting_authorization", st.state(managerID))
	assert.True(t, st.managers[managerID].PrivacyConsent)
	assert.Equal(t, []string{"https://hh.ru/oauth/authorize?state=s1"}, keyboardData(api.last()))

	require.NoError(t, b.Authorized(ctx, managerID))
	assert.Equal(t, "awaiting_vacancy_selection", st.state(managerID))
	assert.Equal(t, []string{"vacancy:100"}, keyboardData(api.last()))

	require.NoError(t, b.Handle(ctx, press(managerID, "vacancy:100")))
	assert.Equal(t, "awaiting_video_decision", st.state(managerID))
	require.NotNil(t, svc.vacancy)

	require.NoError(t, b.Handle(ctx, press(managerID, "video:yes")))
	assert.Equal(t, "awaiting_video", st.state(managerID))

	require.NoError(t, b.Handle(ctx, video(managerID, "file-1")))
	assert.Equal(t, "awaiting_video_confirmation", st.state(managerID))
	content, err := os.ReadFile(svc.videoPath)
	require.NoError(t, err)
	assert.Equal(t, "mp4", string(content))

	require.NoError(t, b.Handle(ctx, press(managerID, "video_confirm:yes")))
	assert.Equal(t, "awaiting_criteria", st.state(managerID))
	assert.True(t, svc.videoSaved)
	assert.Equal(t, 1, svc.defined)
	assert.Empty(t, svc.feedback)

	require.NoError(t, b.Handle(ctx, text(managerID, "ну что там?")))
	assert.Equal(t, textWaitCriteria, api.last().Text)

	require.NoError(t, b.CriteriaReady(ctx, managerID, svc.vacancy, svc.criteria))
	assert.Equal(t, "awaiting_criteria_confirmation", st.state(managerID))
	assert.Contains(t, api.last().Text, "*Обязательно*")
	assert.Equal(t, tgbotapi.ModeMarkdown, api.last().ParseMode)

	require.NoError(t, b.Handle(ctx, press(managerID, "criteria:no")))
	assert.Equal(t, "awaiting_criteria_feedback", st.state(managerID))

	require.NoError(t, b.Handle(ctx, text(managerID, "убери Kafka")))
	assert.Equal(t, "awaiting_criteria", st.state(managerID))
	assert.Equal(t, []string{"убери Kafka"}, svc.feedbacks)
	assert.Equal(t, 2, svc.defined)
	assert.Equal(t, "убери Kafka", svc.feedback)

	require.NoError(t, b.CriteriaReady(ctx, managerID, svc.vacancy, svc.criteria))
	require.NoError(t, b.Handle(ctx, press(managerID, "criteria:yes")))
	assert.Equal(t, "sourcing", st.state(managerID))
	assert.True(t, svc.confirmed)

	require.NoError(t, b.Handle(ctx, command(managerID, "/start")))
	assert.Contains(t, api.last().Text, "Отклики: 3")
}

func TestManagerActionFailureRestoresState(t *testing.T) {
	ctx := context.Background()
	b, api, st, svc := newManagerBot(t)

	require.NoError(t, b.Handle(ctx, command(managerID, "/start")))
	require.NoError(t, b.Handle(ctx, press(managerID, "consent:yes")))
	require.NoError(t, b.Authorized(ctx, managerID))

	svc.selectErr = recruiting.ErrNoVacancy
	err := b.Handle(ctx, press(managerID, "vacancy:999"))
	require.ErrorIs(t, err, recruiting.ErrNoVacancy)

	assert.Equal(t, "awaiting_vacancy_selection", st.state(managerID))
	assert.Contains(t, api.last().Text, "Вакансия не найдена")
}

func TestManagerUnexpectedInputRepeatsQuestion(t *testing.T) {
	ctx := context.Background()
	b, api, st, _ := newManagerBot(t)

	require.NoError(t, b.Handle(ctx, command(managerID, "/start")))
	require.NoError(t, b.Handle(ctx, press(managerID, "criteria:yes")))

	assert.Equal(t, "awaiting_privacy_consent", st.state(managerID))
	assert.Equal(t, textManagerConsent, api.last().Text)

	require.NoError(t, b.Handle(ctx, video(managerID, "file-1")))
	assert.Equal(t, textManagerConsent, api.last().Text)
}

func TestManagerDeclinesConsent(t *testing.T) {
	ctx := context.Background()
	b, api, st, _ := newManagerBot(t)

	require.NoError(t, b.Handle(ctx, command(managerID, "/start")))
	require.NoError(t, b.Handle(ctx, press(managerID, "consent:no")))

	assert.Equal(t, "privacy_declined", st.state(managerID))
	assert.False(t, st.managers[managerID].PrivacyConsent)
	assert.Equal(t, textPrivacyRequired, api.last().Text)
}

func TestManagerNotifications(t *testing.T) {
	ctx := context.Background()
	b, api, _, svc := newManagerBot(t)

	rec := &recruiting.Recommendation{NegotiationID: "n1", Text: "<b>Иван</b>", VideoPath: "/videos/n1.mp4"}
	require.NoError(t, b.Recommend(ctx, managerID, rec))

	require.Len(t, api.videos(), 1)
	card := api.last()
	assert.Equal(t, managerID, card.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, card.ParseMode)
	assert.Equal(t, []string{"invite:n1"}, keyboardData(card))

	require.NoError(t, b.Handle(ctx, press(managerID, "invite:n1")))
	assert.Equal(t, []string{"n1"}, svc.invited)
	assert.Equal(t, textInvited, api.last().Text)

	require.NoError(t, b.NotifyAdmin(ctx, "hello"))
	assert.Equal(t, int64(1), api.last().ChatID)

	core, logs := observer.New(zap.WarnLevel)
	noAdmin := NewManagerBot(api, &memManagers{}, svc, 0, zap.New(core))
	require.NoError(t, noAdmin.NotifyAdmin(ctx, "hello"))
	assert.Equal(t, 1, logs.FilterMessage("admin is not configured, notification dropped").Len())
}

func TestCriteriaReadyOutsideReview(t *testing.T) {
	ctx := context.Background()
	b, api, st, svc := newManagerBot(t)
	svc.vacancy = &store.Vacancy{ID: "100", Name: "Go developer"}
	st.managers = map[int64]*store.Manager{managerID: {ID: managerID, ConversationState: "sourcing"}}

	require.NoError(t, b.CriteriaReady(ctx, managerID, svc.vacancy, svc.criteria))
	assert.Equal(t, "sourcing", st.state(managerID))
	assert.Contains(t, api.last().Text, "Go developer")
}

func TestVideoFileID(t *testing.T) {
	tests := []struct {
		name string
		msg  *tgbotapi.Message
		want string
	}{
		{"nil", nil, ""},
		{"video", &tgbotapi.Message{Video: &tgbotapi.Video{FileID: "v"}}, "v"},
		{"note", &tgbotapi.Message{VideoNote: &tgbotapi.VideoNote{FileID: "n"}}, "n"},
		{"video document", &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "d", MimeType: "video/mp4"}}, "d"},
		{"pdf", &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "d", MimeType: "application/pdf"}}, ""},
		{"text", &tgbotapi.Message{Text: "hi"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, videoFileID(tt.msg))
		})
	}
}

type panicHandler struct {
	calls int
}

func (h *panicHandler) Handle(context.Context, tgbotapi.Update) error {
	h.calls++
	if h.calls == 1 {
		panic("first update")
	}
	return nil
}

func TestServeSurvivesPanics(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	updates := make(chan tgbotapi.Update, 2)
	updates <- tgbotapi.Update{UpdateID: 1}
	updates <- tgbotapi.Update{UpdateID: 2}
	close(updates)

	h := &panicHandler{}
	require.NoError(t, Serve(context.Background(), updates, h, zap.New(core)))

	assert.Equal(t, 2, h.calls)
	assert.Equal(t, 1, logs.FilterMessage("update handler panicked").Len())
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- Serve(ctx, make(chan tgbotapi.Update), &panicHandler{calls: 1}, nil)
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestDownloadRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := &downloader{sender: &fakeSender{fileURL: srv.URL}, client: srv.Client()}
	path := filepath.Join(t.TempDir(), "v.mp4")

	err := d.download(context.Background(), "f", path)
	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func managerIn(st *memManagers, state string) {
	st.managers = map[int64]*store.Manager{managerID: {ID: managerID, ConversationState: state}}
}

func TestManagerAnalysisQueueFailureRestoresState(t *testing.T) {
	ctx := context.Background()
	b, api, st, svc := newManagerBot(t)
	svc.vacancy = &store.Vacancy{ID: "100", ManagerID: managerID, Name: "Go developer"}
	svc.defineErr = context.DeadlineExceeded
	managerIn(st, "awaiting_video_decision")

	err := b.Handle(ctx, press(managerID, "video:no"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "awaiting_video_decision", st.state(managerID))
	assert.Equal(t, textSomethingFailed, api.last().Text)
	assert.Empty(t, svc.feedback, "button answers are not criteria feedback")
}

func TestManagerUpdateDoesNotBlockQueueWorker(t *testing.T) {
	ctx := context.Background()
	b, _, st, svc := newManagerBot(t)
	svc.vacancy = &store.Vacancy{ID: "100", ManagerID: managerID, Name: "Go developer"}
	managerIn(st, "awaiting_video_decision")

	queue := taskqueue.New(1, zaptest.NewLogger(t), taskqueue.WithPollInterval(10*time.Millisecond))
	qctx, cancel := context.WithCancel(ctx)
	t.Cleanup(func() {
		cancel()
		_ = queue.Stop(context.Background())
	})
	queue.Start(qctx)

	// An earlier analysis of the same manager reports back once released.
	started, release := make(chan struct{}), make(chan struct{})
	require.NoError(t, queue.Put(ctx, taskqueue.Func("vacancy_analysis_100", "vacancy_analysis", func(ctx context.Context) error {
		close(started)
		<-release
		return b.CriteriaReady(ctx, managerID, svc.vacancy, svc.criteria)
	})))
	<-started
	require.True(t, queue.TryPut(taskqueue.Func("resume_analysis_1", "resume_analysis", func(context.Context) error { return nil })))
	require.True(t, queue.IsFull())

	svc.define = func(ctx context.Context, _ int64, _ string) error {
		return queue.Put(ctx, taskqueue.Func("vacancy_analysis_100", "vacancy_analysis", func(context.Context) error { return nil }))
	}

	handled := make(chan error, 1)
	go func() { handled <- b.Handle(ctx, press(managerID, "video:no")) }()

	require.Eventually(t, func() bool { return st.state(managerID) == "awaiting_criteria" }, 2*time.Second, 5*time.Millisecond)
	close(release)

	select {
	case err := <-handled:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("update still waiting for the queue, size=%d state=%s", queue.Size(), queue.State())
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	require.NoError(t, queue.WaitEmpty(waitCtx))
	assert.Equal(t, "awaiting_criteria_confirmation", st.state(managerID))
}
