package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hrvibe/hrvibe-core/internal/bot"
	"github.com/hrvibe/hrvibe-core/internal/logger"
	"github.com/hrvibe/hrvibe-core/internal/recruiting"
	"github.com/hrvibe/hrvibe-core/internal/server"
)

const updatesTimeout = 60

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bots, the OAuth callback server and the sourcing scheduler",
	Run: func(_ *cobra.Command, _ []string) {
		run()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func run() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting hrvibe", zap.String("version", version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApplication(ctx, config, logger)
	if err != nil {
		logger.Fatal("wiring the application", zap.Error(err))
	}
	defer a.close()

	// Queued jobs outlive the signal: they are drained after everything else
	// has stopped.
	queueCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	a.queue.Start(queueCtx)

	g, gctx := errgroup.WithContext(ctx)

	if config.runs(botManager) {
		updates := a.managerAPI.GetUpdatesChan(updatesConfig())
		g.Go(func() error {
			return bot.Serve(gctx, updates, a.managerBot, logger)
		})

		scheduler := &recruiting.Scheduler{
			Service:  a.service,
			Interval: config.SchedulerInterval,
			Logger:   logger.With(zap.String("component", "scheduler")),
		}
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}

	if a.applicantBot != nil {
		updates := a.applicantAPI.GetUpdatesChan(updatesConfig())
		g.Go(func() error {
			return bot.Serve(gctx, updates, a.applicantBot, logger)
		})
	}

	srv := server.New(config.HTTP.Addr, a.service, a.managerBot.Authorized, a.registry, logger)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("stopping after failure", zap.Error(err))
	}

	logger.Info("draining task queue", zap.Int("size", a.queue.Size()))
	a.drainQueue(cancelJobs)

	logger.Info("hrvibe stopped")
}

func updatesConfig() tgbotapi.UpdateConfig {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = updatesTimeout
	return u
}
