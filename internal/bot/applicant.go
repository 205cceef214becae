package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/hrvibe/hrvibe-core/internal/conversation"
	"github.com/hrvibe/hrvibe-core/internal/logger"
	"github.com/hrvibe/hrvibe-core/internal/recruiting"
	"github.com/hrvibe/hrvibe-core/internal/store"
)

// ApplicantStore keeps the applicant dialogue state on the negotiation.
type ApplicantStore interface {
	SetApplicantState(ctx context.Context, negotiationID, state string) error
	SetApplicantPrivacyConsent(ctx context.Context, negotiationID string, consent bool) error
}

// ApplicantService is the part of the funnel the applicant bot drives.
type ApplicantService interface {
	BindApplicant(ctx context.Context, payload string, telegramID int64) (*store.Negotiation, error)
	ApplicantNegotiation(ctx context.Context, telegramID int64) (*store.Negotiation, error)
	ApplicantVideoPath(n *store.Negotiation) string
	SaveApplicantVideo(ctx context.Context, negotiationID string) error
	ManagerVideoFor(ctx context.Context, negotiationID string) (string, error)
}

// ApplicantBot collects a consent and a video from applicants who opened the
// deep link sent on hh.ru.
type ApplicantBot struct {
	api      Sender
	store    ApplicantStore
	service  ApplicantService
	machine  *conversation.Machine
	files    *downloader
	logger   *zap.Logger
	sessions userLocks
}

func NewApplicantBot(api Sender, st ApplicantStore, svc ApplicantService, log *zap.Logger) *ApplicantBot {
	if log == nil {
		log = zap.NewNop()
	}

	return &ApplicantBot{
		api:     api,
		store:   st,
		service: svc,
		machine: conversation.Applicant(),
		files:   &downloader{sender: api, client: http.DefaultClient},
		logger:  log.With(zap.String("bot", "applicant")),
	}
}

func (b *ApplicantBot) Handle(ctx context.Context, update tgbotapi.Update) error {
	from := sender(update)
	if from == nil || from.IsBot {
		return nil
	}

	unlock := b.sessions.lock(from.ID)
	defer unlock()

	if q := update.CallbackQuery; q != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
			b.userLogger(from.ID).Warn("answering callback", zap.Error(err))
		}
	}

	msg := update.Message
	if msg != nil && msg.IsCommand() && msg.Command() == commandStart {
		return b.start(ctx, from.ID, msg.CommandArguments())
	}

	n, err := b.service.ApplicantNegotiation(ctx, from.ID)
	if errors.Is(err, store.ErrNotFound) {
		return b.send(from.ID, textApplicantNoLink, nil)
	}
	if err != nil {
		return err
	}

	state := conversation.State(n.ApplicantState)

	if q := update.CallbackQuery; q != nil {
		kind, value := callback(q.Data)
		switch kind {
		case cbConsent:
			return b.fire(ctx, from.ID, n, pick(value, conversation.EventConsentGiven, conversation.EventConsentDeclined), input{})
		case cbVideoConfirm:
			return b.fire(ctx, from.ID, n, pick(value, conversation.EventVideoConfirmed, conversation.EventVideoRejected), input{})
		}
		return b.perform(ctx, from.ID, n, b.machine.Prompt(state))
	}

	if fileID := videoFileID(msg); fileID != "" && state == conversation.StateAwaitingVideo {
		return b.fire(ctx, from.ID, n, conversation.EventVideoReceived, input{fileID: fileID})
	}

	return b.perform(ctx, from.ID, n, b.machine.Prompt(state))
}

// start binds the applicant when the deep link payload is present and
// (re)starts the dialogue.
func (b *ApplicantBot) start(ctx context.Context, userID int64, payload string) error {
	var (
		n   *store.Negotiation
		err error
	)

	if payload != "" {
		n, err = b.service.BindApplicant(ctx, payload, userID)
	} else {
		n, err = b.service.ApplicantNegotiation(ctx, userID)
	}

	switch {
	case errors.Is(err, recruiting.ErrBadPayload):
		b.userLogger(userID).Warn("bad deep link payload", zap.String("payload", payload))
		return b.send(userID, textApplicantBadLink, nil)
	case errors.Is(err, recruiting.ErrAlreadyBound):
		b.userLogger(userID).Warn("negotiation is bound to another account", zap.String("payload", payload))
		return b.send(userID, textApplicantBound, nil)
	case errors.Is(err, store.ErrNotFound):
		return b.send(userID, textApplicantNoLink, nil)
	case err != nil:
		return err
	}

	return b.fire(ctx, userID, n, conversation.EventStart, input{})
}

// fire moves the applicant dialogue the same way the manager bot does: the
// state is stored first and restored if the action fails.
func (b *ApplicantBot) fire(ctx context.Context, userID int64, n *store.Negotiation, event conversation.Event, in input) error {
	log := b.userLogger(userID).With(logger.Negotiation(n.ID))
	from := conversation.State(n.ApplicantState)

	t, err := b.machine.Fire(from, event)
	if err != nil {
		log.Debug("unexpected event", zap.String("state", string(from)), zap.String("event", string(event)))
		return b.perform(ctx, userID, n, b.machine.Prompt(from))
	}

	if err := b.store.SetApplicantState(ctx, n.ID, string(t.To)); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	if err := b.apply(ctx, userID, n, t, in); err != nil {
		if rbErr := b.store.SetApplicantState(ctx, n.ID, string(t.From)); rbErr != nil {
			log.Error("restoring state", zap.String("state", string(t.From)), zap.Error(rbErr))
		}
		if sendErr := b.send(userID, textSomethingFailed, nil); sendErr != nil {
			log.Warn("sending reply", zap.Error(sendErr))
		}
		return fmt.Errorf("%s on %s: %w", t.Action, t.Event, err)
	}

	log.Info("dialogue moved",
		zap.String("from", string(t.From)),
		zap.String("event", string(t.Event)),
		zap.String("to", string(t.To)),
	)

	return nil
}

func (b *ApplicantBot) apply(ctx context.Context, userID int64, n *store.Negotiation, t conversation.Transition, in input) error {
	switch t.Event {
	case conversation.EventConsentGiven, conversation.EventConsentDeclined:
		if err := b.store.SetApplicantPrivacyConsent(ctx, n.ID, t.Event == conversation.EventConsentGiven); err != nil {
			return err
		}
	case conversation.EventVideoReceived:
		if err := b.files.download(ctx, in.fileID, b.service.ApplicantVideoPath(n)); err != nil {
			return err
		}
	}

	return b.perform(ctx, userID, n, t.Action)
}

func (b *ApplicantBot) perform(ctx context.Context, userID int64, n *store.Negotiation, action conversation.Action) error {
	switch action {
	case conversation.ActionNone:
		return nil
	case conversation.ActionAskPrivacyConsent:
		return b.send(userID, textApplicantConsent, yesNoKeyboard(cbConsent, buttonAgree, buttonDisagree))
	case conversation.ActionExplainPrivacyRequired:
		return b.send(userID, textPrivacyRequired, nil)
	case conversation.ActionShowManagerVideo:
		if err := b.showManagerVideo(ctx, userID, n); err != nil {
			return err
		}
		return b.send(userID, textApplicantVideo, nil)
	case conversation.ActionRequestVideo:
		return b.send(userID, textApplicantVideo, nil)
	case conversation.ActionAskVideoConfirmation:
		return b.send(userID, textAskVideoConfirm, yesNoKeyboard(cbVideoConfirm, buttonSave, buttonRerecord))
	case conversation.ActionSaveVideo:
		if err := b.service.SaveApplicantVideo(ctx, n.ID); err != nil {
			return err
		}
		return b.send(userID, textApplicantGoodbye, nil)
	case conversation.ActionSayGoodbye:
		return b.send(userID, textApplicantGoodbye, nil)
	default:
		return fmt.Errorf("applicant bot cannot perform %q", action)
	}
}

// showManagerVideo sends the vacancy video when the manager recorded one.
func (b *ApplicantBot) showManagerVideo(ctx context.Context, userID int64, n *store.Negotiation) error {
	path, err := b.service.ManagerVideoFor(ctx, n.ID)
	if err != nil || path == "" {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		b.userLogger(userID).Warn("manager video is missing", zap.String("path", path), zap.Error(err))
		return nil
	}

	if err := b.send(userID, textManagerVideo, nil); err != nil {
		return err
	}

	_, err = b.api.Send(tgbotapi.NewVideo(userID, tgbotapi.FilePath(path)))
	return err
}

func (b *ApplicantBot) send(chatID int64, text string, markup any) error {
	return sendText(b.api, chatID, text, markup)
}

func (b *ApplicantBot) userLogger(userID int64) *zap.Logger {
	return logger.WithFields(b.logger, logger.UserFields("applicant", userID)...)
}
