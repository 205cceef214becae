// Package bot holds the Telegram front ends: the manager bot that walks a
// recruiter through the funnel and the applicant bot that collects videos.
package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	downloadTimeout = 5 * time.Minute

	answerYes = "yes"
	answerNo  = "no"
)

// Sender is the part of tgbotapi.BotAPI the bots use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Handler processes one update.
type Handler interface {
	Handle(ctx context.Context, update tgbotapi.Update) error
}

// Serve feeds updates to the handler one by one until ctx is done or the
// channel is closed. Handler errors and panics are logged.
func Serve(ctx context.Context, updates <-chan tgbotapi.Update, h Handler, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			handle(ctx, h, update, log)
		}
	}
}

func handle(ctx context.Context, h Handler, update tgbotapi.Update, log *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("update handler panicked",
				zap.Int("update_id", update.UpdateID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	if err := h.Handle(ctx, update); err != nil {
		log.Error("handling update", zap.Int("update_id", update.UpdateID), zap.Error(err))
	}
}

// sender returns who sent the update.
func sender(update tgbotapi.Update) *tgbotapi.User {
	switch {
	case update.Message != nil:
		return update.Message.From
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From
	default:
		return nil
	}
}

// videoFileID returns the id of a video, a video note or a document with a
// video MIME type attached to the message.
func videoFileID(msg *tgbotapi.Message) string {
	switch {
	case msg == nil:
		return ""
	case msg.Video != nil:
		return msg.Video.FileID
	case msg.VideoNote != nil:
		return msg.VideoNote.FileID
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "video/"):
		return msg.Document.FileID
	default:
		return ""
	}
}

// callback splits "kind:value" callback data.
func callback(data string) (kind, value string) {
	kind, value, _ = strings.Cut(data, ":")
	return kind, value
}

func callbackData(kind, value string) string {
	return kind + ":" + value
}

func yesNoKeyboard(kind, yes, no string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(yes, callbackData(kind, answerYes)),
		tgbotapi.NewInlineKeyboardButtonData(no, callbackData(kind, answerNo)),
	))
}

func sendText(api Sender, chatID int64, text string, markup any) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	_, err := api.Send(msg)
	return err
}

// downloader saves Telegram files to disk.
type downloader struct {
	sender Sender
	client *http.Client
}

func (d *downloader) download(ctx context.Context, fileID, path string) error {
	link, err := d.sender.GetFileDirectURL(fileID)
	if err != nil {
		return fmt.Errorf("get file url: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}

	client := d.client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download file: unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create video dir: %w", err)
	}

	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create video file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write video file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write video file: %w", err)
	}

	return os.Rename(tmp, path)
}

// userLocks serialises the dialogue of one user. Updates, queue jobs and the
// OAuth callback may all move the same conversation.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (l *userLocks) lock(id int64) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = map[int64]*sync.Mutex{}
	}
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
