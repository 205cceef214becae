package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/hrvibe/hrvibe-core/internal/ai"
	"github.com/hrvibe/hrvibe-core/internal/conversation"
	"github.com/hrvibe/hrvibe-core/internal/headhunter"
	"github.com/hrvibe/hrvibe-core/internal/logger"
	"github.com/hrvibe/hrvibe-core/internal/recruiting"
	"github.com/hrvibe/hrvibe-core/internal/store"
)

const (
	cbConsent      = "consent"
	cbVacancy      = "vacancy"
	cbVideo        = "video"
	cbVideoConfirm = "video_confirm"
	cbCriteria     = "criteria"
	cbInvite       = "invite"

	commandStart  = "start"
	commandStatus = "status"
)

// ManagerStore keeps the manager dialogue state.
type ManagerStore interface {
	EnsureManager(ctx context.Context, id int64, username, firstName, lastName string) (*store.Manager, error)
	GetManager(ctx context.Context, id int64) (*store.Manager, error)
	SetManagerState(ctx context.Context, id int64, state string) error
	SetManagerPrivacyConsent(ctx context.Context, id int64, consent bool) error
}

// ManagerService is the recruiting funnel as seen by the manager bot.
type ManagerService interface {
	StartAuthorization(ctx context.Context, managerID int64) (string, error)
	OpenVacancies(ctx context.Context, managerID int64) ([]*headhunter.Vacancy, error)
	SelectVacancy(ctx context.Context, managerID int64, vacancyID string) (*store.Vacancy, error)
	CurrentVacancy(ctx context.Context, managerID int64) (*store.Vacancy, error)
	VacancyVideoPath(managerID int64, vacancyID string) string
	SaveVacancyVideo(ctx context.Context, managerID int64) (string, error)
	DefineSourcingCriteria(ctx context.Context, managerID int64, feedback string) error
	SourcingCriteria(ctx context.Context, managerID int64) (*ai.SourcingCriteria, error)
	ConfirmSourcingCriteria(ctx context.Context, managerID int64) error
	SaveCriteriaFeedback(ctx context.Context, managerID int64, feedback string) error
	Status(ctx context.Context, managerID int64) (*recruiting.Funnel, error)
	InviteToInterview(ctx context.Context, managerID int64, negotiationID string) error
}

// ManagerBot talks to recruiters. It also delivers funnel notifications.
type ManagerBot struct {
	api      Sender
	store    ManagerStore
	service  ManagerService
	machine  *conversation.Machine
	files    *downloader
	adminID  int64
	logger   *zap.Logger
	sessions userLocks
}

func NewManagerBot(api Sender, st ManagerStore, svc ManagerService, adminID int64, log *zap.Logger) *ManagerBot {
	if log == nil {
		log = zap.NewNop()
	}

	return &ManagerBot{
		api:     api,
		store:   st,
		service: svc,
		machine: conversation.Manager(),
		files:   &downloader{sender: api, client: http.DefaultClient},
		adminID: adminID,
		logger:  log.With(zap.String("bot", "manager")),
	}
}

// input carries what came with the event.
type input struct {
	value  string
	fileID string
}

func (b *ManagerBot) Handle(ctx context.Context, update tgbotapi.Update) error {
	from := sender(update)
	if from == nil || from.IsBot {
		return nil
	}

	m, err := b.store.EnsureManager(ctx, from.ID, from.UserName, from.FirstName, from.LastName)
	if err != nil {
		return fmt.Errorf("ensure manager: %w", err)
	}

	if q := update.CallbackQuery; q != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
			b.userLogger(m.ID).Warn("answering callback", zap.Error(err))
		}
		return b.handleCallback(ctx, m.ID, q.Data)
	}

	return b.handleMessage(ctx, m, update.Message)
}

func (b *ManagerBot) handleMessage(ctx context.Context, m *store.Manager, msg *tgbotapi.Message) error {
	switch {
	case msg.IsCommand() && msg.Command() == commandStart:
		return b.fire(ctx, m.ID, conversation.EventStart, input{})
	case msg.IsCommand() && msg.Command() == commandStatus:
		return b.perform(ctx, m.ID, conversation.ActionShowStatus)
	}

	state := conversation.State(m.ConversationState)

	if fileID := videoFileID(msg); fileID != "" && state == conversation.StateAwaitingVideo {
		return b.fire(ctx, m.ID, conversation.EventVideoReceived, input{fileID: fileID})
	}
	if msg.Text != "" && state == conversation.StateAwaitingCriteriaFeedback {
		return b.fire(ctx, m.ID, conversation.EventFeedbackReceived, input{value: msg.Text})
	}

	return b.perform(ctx, m.ID, b.machine.Prompt(state))
}

func (b *ManagerBot) handleCallback(ctx context.Context, managerID int64, data string) error {
	kind, value := callback(data)

	var event conversation.Event
	switch kind {
	case cbConsent:
		event = pick(value, conversation.EventConsentGiven, conversation.EventConsentDeclined)
	case cbVacancy:
		event = conversation.EventVacancySelected
	case cbVideo:
		event = pick(value, conversation.EventVideoWanted, conversation.EventVideoSkipped)
	case cbVideoConfirm:
		event = pick(value, conversation.EventVideoConfirmed, conversation.EventVideoRejected)
	case cbCriteria:
		event = pick(value, conversation.EventCriteriaConfirmed, conversation.EventCriteriaRejected)
	case cbInvite:
		return b.invite(ctx, managerID, value)
	default:
		b.userLogger(managerID).Warn("unknown callback", zap.String("data", data))
		return nil
	}

	return b.fire(ctx, managerID, event, input{value: value})
}

func pick(answer string, yes, no conversation.Event) conversation.Event {
	if answer == answerYes {
		return yes
	}
	return no
}

// fire moves the manager dialogue. The new state is stored before the action
// runs and restored when the action fails. An event the state does not
// expect repeats the current question.
func (b *ManagerBot) fire(ctx context.Context, managerID int64, event conversation.Event, in input) error {
	t, err := b.move(ctx, managerID, event, in)
	if err != nil || t == nil {
		return err
	}

	// Queueing may wait for the worker, and the worker calls back into this
	// dialogue through CriteriaReady, so the analysis is requested unlocked.
	switch t.Action {
	case conversation.ActionAnalyzeVacancy, conversation.ActionSaveVideoAndAnalyze:
		feedback := ""
		if t.Event == conversation.EventFeedbackReceived {
			feedback = in.value
		}
		return b.analyze(ctx, managerID, *t, feedback)
	}

	return nil
}

// move applies event under the user lock. It returns nil when the event only
// repeated the current question.
func (b *ManagerBot) move(ctx context.Context, managerID int64, event conversation.Event, in input) (*conversation.Transition, error) {
	unlock := b.sessions.lock(managerID)
	defer unlock()

	m, err := b.store.GetManager(ctx, managerID)
	if err != nil {
		return nil, err
	}

	log := b.userLogger(managerID)
	from := conversation.State(m.ConversationState)

	t, err := b.machine.Fire(from, event)
	if err != nil {
		log.Debug("unexpected event", zap.String("state", string(from)), zap.String("event", string(event)))
		return nil, b.perform(ctx, managerID, b.machine.Prompt(from))
	}

	if err := b.store.SetManagerState(ctx, managerID, string(t.To)); err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}

	if err := b.apply(ctx, managerID, t, in); err != nil {
		b.rollback(ctx, managerID, t)
		b.reply(managerID, b.failureText(err))
		return nil, fmt.Errorf("%s on %s: %w", t.Action, t.Event, err)
	}

	log.Info("dialogue moved",
		zap.String("from", string(t.From)),
		zap.String("event", string(t.Event)),
		zap.String("to", string(t.To)),
	)

	return &t, nil
}

// rollback restores the state t started from. Callers hold the user lock.
func (b *ManagerBot) rollback(ctx context.Context, managerID int64, t conversation.Transition) {
	if err := b.store.SetManagerState(ctx, managerID, string(t.From)); err != nil {
		b.userLogger(managerID).Error("restoring state", zap.String("state", string(t.From)), zap.Error(err))
	}
}

// apply handles what the event brought and then performs the action.
func (b *ManagerBot) apply(ctx context.Context, managerID int64, t conversation.Transition, in input) error {
	switch t.Event {
	case conversation.EventConsentGiven, conversation.EventConsentDeclined:
		if err := b.store.SetManagerPrivacyConsent(ctx, managerID, t.Event == conversation.EventConsentGiven); err != nil {
			return err
		}
	case conversation.EventVacancySelected:
		if _, err := b.service.SelectVacancy(ctx, managerID, in.value); err != nil {
			return err
		}
	case conversation.EventVideoReceived:
		v, err := b.service.CurrentVacancy(ctx, managerID)
		if err != nil {
			return err
		}
		if err := b.files.download(ctx, in.fileID, b.service.VacancyVideoPath(managerID, v.ID)); err != nil {
			return err
		}
	case conversation.EventFeedbackReceived:
		if err := b.service.SaveCriteriaFeedback(ctx, managerID, in.value); err != nil {
			return err
		}
	}

	return b.perform(ctx, managerID, t.Action)
}

func (b *ManagerBot) perform(ctx context.Context, managerID int64, action conversation.Action) error {
	switch action {
	case conversation.ActionNone:
		return nil
	case conversation.ActionAskPrivacyConsent:
		return b.send(managerID, textManagerConsent, yesNoKeyboard(cbConsent, buttonAgree, buttonDisagree))
	case conversation.ActionExplainPrivacyRequired:
		return b.send(managerID, textPrivacyRequired, nil)
	case conversation.ActionSendAuthLink:
		link, err := b.service.StartAuthorization(ctx, managerID)
		if err != nil {
			return err
		}
		keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(textAuthButton, link),
		))
		return b.send(managerID, textAuthLink, keyboard)
	case conversation.ActionAskVacancy:
		return b.askVacancy(ctx, managerID)
	case conversation.ActionAskVideoDecision:
		return b.send(managerID, textAskVideo, yesNoKeyboard(cbVideo, buttonYes, buttonNo))
	case conversation.ActionRequestVideo:
		return b.send(managerID, textRequestVideo, nil)
	case conversation.ActionAskVideoConfirmation:
		return b.send(managerID, textAskVideoConfirm, yesNoKeyboard(cbVideoConfirm, buttonSave, buttonRerecord))
	case conversation.ActionSaveVideoAndAnalyze:
		_, err := b.service.SaveVacancyVideo(ctx, managerID)
		return err
	case conversation.ActionAnalyzeVacancy:
		return nil
	case conversation.ActionWaitForCriteria:
		return b.send(managerID, textWaitCriteria, nil)
	case conversation.ActionSendCriteria:
		return b.sendCriteria(ctx, managerID)
	case conversation.ActionStartSourcing:
		if err := b.service.ConfirmSourcingCriteria(ctx, managerID); err != nil {
			return err
		}
		return b.send(managerID, textSourcing, nil)
	case conversation.ActionAskCriteriaFeedback:
		return b.send(managerID, textAskFeedback, nil)
	case conversation.ActionShowStatus:
		funnel, err := b.service.Status(ctx, managerID)
		if err != nil {
			return err
		}
		return b.send(managerID, funnel.String(), nil)
	default:
		return fmt.Errorf("manager bot cannot perform %q", action)
	}
}

func (b *ManagerBot) askVacancy(ctx context.Context, managerID int64) error {
	vacancies, err := b.service.OpenVacancies(ctx, managerID)
	if err != nil {
		return err
	}
	if len(vacancies) == 0 {
		return b.send(managerID, textNoVacancies, nil)
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(vacancies))
	for _, v := range vacancies {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(v.Name, callbackData(cbVacancy, v.ID)),
		))
	}

	return b.send(managerID, textAskVacancy, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// analyze queues the vacancy analysis that t led to. When the job cannot be
// queued, t is undone unless the dialogue has moved on in the meantime.
func (b *ManagerBot) analyze(ctx context.Context, managerID int64, t conversation.Transition, feedback string) error {
	err := b.service.DefineSourcingCriteria(ctx, managerID, feedback)
	if err == nil {
		return b.send(managerID, textAnalyzing, nil)
	}

	unlock := b.sessions.lock(managerID)
	m, getErr := b.store.GetManager(context.WithoutCancel(ctx), managerID)
	if getErr == nil && conversation.State(m.ConversationState) == t.To {
		b.rollback(context.WithoutCancel(ctx), managerID, t)
	}
	unlock()

	b.reply(managerID, b.failureText(err))
	return fmt.Errorf("%s on %s: %w", t.Action, t.Event, err)
}

func (b *ManagerBot) sendCriteria(ctx context.Context, managerID int64) error {
	v, err := b.service.CurrentVacancy(ctx, managerID)
	if err != nil {
		return err
	}
	criteria, err := b.service.SourcingCriteria(ctx, managerID)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(textCriteria, v.Name, criteria.Markdown())
	return b.sendMarkdown(managerID, text, yesNoKeyboard(cbCriteria, buttonCorrect, buttonFix))
}

func (b *ManagerBot) invite(ctx context.Context, managerID int64, negotiationID string) error {
	if err := b.service.InviteToInterview(ctx, managerID, negotiationID); err != nil {
		b.reply(managerID, b.failureText(err))
		return err
	}
	return b.send(managerID, textInvited, nil)
}

// Authorized moves the manager on after a successful hh.ru login.
func (b *ManagerBot) Authorized(ctx context.Context, managerID int64) error {
	return b.fire(ctx, managerID, conversation.EventAuthorized, input{})
}

// CriteriaReady shows the criteria to the manager. Outside of the criteria
// review, e.g. after a re-analysis from the admin console, it only sends them.
func (b *ManagerBot) CriteriaReady(ctx context.Context, managerID int64, _ *store.Vacancy, _ *ai.SourcingCriteria) error {
	m, err := b.store.GetManager(ctx, managerID)
	if err != nil {
		return err
	}

	if b.machine.Can(conversation.State(m.ConversationState), conversation.EventCriteriaReady) {
		return b.fire(ctx, managerID, conversation.EventCriteriaReady, input{})
	}

	return b.sendCriteria(ctx, managerID)
}

// Recommend sends the candidate video, if any, and the candidate card.
func (b *ManagerBot) Recommend(_ context.Context, managerID int64, rec *recruiting.Recommendation) error {
	if rec.VideoPath != "" {
		video := tgbotapi.NewVideo(managerID, tgbotapi.FilePath(rec.VideoPath))
		if _, err := b.api.Send(video); err != nil {
			b.userLogger(managerID).Warn("sending candidate video", logger.Negotiation(rec.NegotiationID), zap.Error(err))
		}
	}

	msg := tgbotapi.NewMessage(managerID, rec.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(textInviteButton, callbackData(cbInvite, rec.NegotiationID)),
	))

	_, err := b.api.Send(msg)
	return err
}

func (b *ManagerBot) NotifyAdmin(_ context.Context, text string) error {
	if b.adminID == 0 {
		b.logger.Warn("admin is not configured, notification dropped", zap.String("text", text))
		return nil
	}
	return b.send(b.adminID, text, nil)
}

func (b *ManagerBot) send(chatID int64, text string, markup any) error {
	return sendText(b.api, chatID, text, markup)
}

func (b *ManagerBot) sendMarkdown(chatID int64, text string, markup any) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

// reply sends a best effort message.
func (b *ManagerBot) reply(chatID int64, text string) {
	if err := b.send(chatID, text, nil); err != nil {
		b.userLogger(chatID).Warn("sending reply", zap.Error(err))
	}
}

func (b *ManagerBot) failureText(err error) string {
	switch {
	case errors.Is(err, recruiting.ErrNotEmployer):
		return "Ваш аккаунт hh.ru не является аккаунтом работодателя."
	case errors.Is(err, recruiting.ErrNotAuthorized):
		return "Нужно заново авторизоваться на hh.ru. Отправьте /start."
	case errors.Is(err, recruiting.ErrNoVacancy):
		return "Вакансия не найдена среди ваших открытых вакансий."
	default:
		return textSomethingFailed
	}
}

func (b *ManagerBot) userLogger(managerID int64) *zap.Logger {
	return logger.WithFields(b.logger, logger.UserFields("manager", managerID)...)
}
