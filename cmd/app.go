package cmd

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hrvibe/hrvibe-core/internal/ai/gemini"
	"github.com/hrvibe/hrvibe-core/internal/bot"
	"github.com/hrvibe/hrvibe-core/internal/headhunter"
	"github.com/hrvibe/hrvibe-core/internal/recruiting"
	"github.com/hrvibe/hrvibe-core/internal/secrets"
	"github.com/hrvibe/hrvibe-core/internal/store"
	"github.com/hrvibe/hrvibe-core/internal/taskqueue"
)

const geminiBackoff = 2 * time.Second

// application holds the wired components shared by the run and admin
// commands.
type application struct {
	config   *Config
	logger   *zap.Logger
	registry *prometheus.Registry

	store   *store.Store
	queue   *taskqueue.Queue
	service *recruiting.Service

	managerAPI   *tgbotapi.BotAPI
	managerBot   *bot.ManagerBot
	applicantAPI *tgbotapi.BotAPI
	applicantBot *bot.ApplicantBot
}

func newApplication(ctx context.Context, config *Config, logger *zap.Logger) (*application, error) {
	values, err := secrets.MustHave(
		secrets.Source{
			Name:  "telegram manager bot token",
			Value: config.Telegram.ManagerToken,
			File:  config.Telegram.ManagerTokenFile,
			Env:   envBindings["telegram.manager-token"],
		},
		secrets.Source{
			Name:  "hh.ru client secret",
			Value: config.HH.ClientSecret,
			File:  config.HH.ClientSecretFile,
			Env:   envBindings["hh.client-secret"],
		},
		secrets.Source{
			Name:  "gemini api key",
			Value: config.Gemini.APIKey,
			File:  config.Gemini.APIKeyFile,
			Env:   envBindings["gemini.api-key"],
		},
	)
	if err != nil {
		return nil, err
	}
	managerToken, clientSecret, geminiKey := values[0], values[1], values[2]

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	st, err := store.Open(ctx, config.Database, logger)
	if err != nil {
		return nil, err
	}

	hh := headhunter.New(logger, config.HH.RequestsPerSecond)
	if config.HH.UserAgent != "" {
		hh.UserAgent = config.HH.UserAgent
	}

	oauth := headhunter.NewOAuth(headhunter.OAuthConfig{
		ClientID:     config.HH.ClientID,
		ClientSecret: clientSecret,
		RedirectURL:  config.HH.RedirectURL,
	})

	generator, err := gemini.NewGenerator(ctx, geminiKey, config.Gemini.Model, logger,
		gemini.WithRetries(config.Gemini.MaxRetries, geminiBackoff),
	)
	if err != nil {
		st.Close()
		return nil, err
	}

	queue := taskqueue.New(config.Queue.Capacity, logger, taskqueue.WithMetrics(registry, "ai"))

	service := recruiting.New(config.Recruiting, recruiting.Deps{
		Store: st,
		HeadHunter: func(token string) recruiting.HeadHunter {
			return hh.WithToken(token)
		},
		OAuth:    oauth,
		Analyzer: gemini.NewAnalyzer(generator, logger, config.Gemini.MaxLogLength),
		Queue:    queue,
		Logger:   logger,
	})

	managerAPI, err := tgbotapi.NewBotAPI(managerToken)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("connecting manager bot: %w", err)
	}

	managerBot := bot.NewManagerBot(managerAPI, st, service, config.AdminID, logger)
	service.SetNotifier(managerBot)

	a := &application{
		config:     config,
		logger:     logger,
		registry:   registry,
		store:      st,
		queue:      queue,
		service:    service,
		managerAPI: managerAPI,
		managerBot: managerBot,
	}

	if config.runs(botApplicant) {
		token, err := secrets.Load(secrets.Source{
			Name:  "telegram applicant bot token",
			Value: config.Telegram.ApplicantToken,
			File:  config.Telegram.ApplicantTokenFile,
			Env:   envBindings["telegram.applicant-token"],
		})
		if err != nil {
			st.Close()
			return nil, err
		}

		a.applicantAPI, err = tgbotapi.NewBotAPI(token)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("connecting applicant bot: %w", err)
		}
		a.applicantBot = bot.NewApplicantBot(a.applicantAPI, st, service, logger)
	}

	logger.Info("application wired",
		zap.String("active_bot", config.ActiveBot),
		zap.String("manager_bot", managerAPI.Self.UserName),
		zap.Int("queue_capacity", queue.Capacity()),
		zap.String("model", generator.Model()),
	)

	return a, nil
}

// drainQueue waits for the queued jobs within the shutdown timeout. When the
// backlog does not drain in time the worker is stopped after the running job
// and, if that job still hangs, cancelled through cancelJobs.
func (a *application) drainQueue(cancelJobs context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.Queue.ShutdownTimeout)
	defer cancel()

	err := a.queue.Shutdown(ctx)
	if err == nil {
		return
	}

	a.logger.Warn("task queue did not drain in time, stopping", zap.Error(err), zap.Int("left", a.queue.Size()))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()

	if err := a.queue.Stop(stopCtx); err != nil {
		a.logger.Warn("task queue worker is busy, cancelling the running job", zap.Error(err))
		cancelJobs()
	}
}

func (a *application) close() {
	if a.managerAPI != nil {
		a.managerAPI.StopReceivingUpdates()
	}
	if a.applicantAPI != nil {
		a.applicantAPI.StopReceivingUpdates()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing database", zap.Error(err))
	}
}
