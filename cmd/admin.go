package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hrvibe/hrvibe-core/internal/logger"
	"github.com/hrvibe/hrvibe-core/internal/store"
)

const (
	PromptAnalyzeCriteria = "Analyze vacancy criteria"
	PromptSendCriteria    = "Send criteria to the manager"
	PromptSource          = "Source negotiations"
	PromptFetch           = "Fetch resumes"
	PromptAnalyzeResumes  = "Analyze resumes"
	PromptRecommend       = "Recommend candidates"
	PromptProcessAll      = "Process all steps"
	PromptStatus          = "Show status"
	PromptBack            = "back"
	PromptExit            = "exit"
)

var errExit = errors.New("exit requested")

var actionPrompt = promptui.Select{
	Label: "Choose an action",
	Items: []string{
		PromptAnalyzeCriteria,
		PromptSendCriteria,
		PromptSource,
		PromptFetch,
		PromptAnalyzeResumes,
		PromptRecommend,
		PromptProcessAll,
		PromptStatus,
		PromptBack,
		PromptExit,
	},
	Size: 10,
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Run funnel steps for a manager by hand",
	Run: func(_ *cobra.Command, _ []string) {
		admin()
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
}

func admin() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	ctx := context.Background()

	a, err := newApplication(ctx, config, logger)
	if err != nil {
		logger.Fatal("wiring the application", zap.Error(err))
	}
	defer a.close()

	queueCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()
	a.queue.Start(queueCtx)

	for {
		managerID, err := selectManager(ctx, a)
		if err != nil {
			if !errors.Is(err, errExit) {
				logger.Error("selecting a manager", zap.Error(err))
			}
			break
		}

		if err := manage(ctx, a, managerID); err != nil {
			if errors.Is(err, errExit) {
				break
			}
			logger.Error("exiting", zap.Error(err))
			break
		}
	}

	logger.Info("waiting for queued jobs", zap.Int("size", a.queue.Size()))
	a.drainQueue(cancelJobs)
}

func selectManager(ctx context.Context, a *application) (int64, error) {
	managers, err := a.store.ListManagers(ctx, "")
	if err != nil {
		return 0, err
	}

	items := make([]string, 0, len(managers)+1)
	for _, m := range managers {
		items = append(items, managerLabel(m))
	}
	items = append(items, PromptExit)

	managerPrompt := promptui.Select{
		Label: "Choose a manager and press ENTER",
		Items: items,
		Size:  15,
	}

	_, selected, err := managerPrompt.Run()
	if err != nil {
		return 0, err
	}
	if selected == PromptExit {
		return 0, errExit
	}

	return strconv.ParseInt(strings.Fields(selected)[0], 10, 64)
}

func managerLabel(m *store.Manager) string {
	name := strings.TrimSpace(m.FirstName + " " + m.LastName)
	if m.Username != "" {
		name += " @" + m.Username
	}
	return fmt.Sprintf("%d %s / %s / vacancy %s", m.ID, name, m.ConversationState, m.VacancyID)
}

// manage runs actions for one manager until the user goes back.
func manage(ctx context.Context, a *application, managerID int64) error {
	log := a.logger.With(zap.Int64("manager_id", managerID))

	for {
		_, action, err := actionPrompt.Run()
		if err != nil {
			return err
		}

		switch action {
		case PromptBack:
			return nil
		case PromptExit:
			return errExit
		}

		if err := handleAction(ctx, a, managerID, action, log); err != nil {
			log.Error("action failed", zap.String("action", action), zap.Error(err))
		}
	}
}

func handleAction(ctx context.Context, a *application, managerID int64, action string, log *zap.Logger) error {
	svc := a.service

	switch action {
	case PromptAnalyzeCriteria:
		if err := svc.DefineSourcingCriteria(ctx, managerID, ""); err != nil {
			return err
		}
		log.Info("vacancy analysis queued")
	case PromptSendCriteria:
		v, err := svc.CurrentVacancy(ctx, managerID)
		if err != nil {
			return err
		}
		criteria, err := svc.SourcingCriteria(ctx, managerID)
		if err != nil {
			return err
		}
		if err := a.managerBot.CriteriaReady(ctx, managerID, v, criteria); err != nil {
			return err
		}
		log.Info("criteria sent", logger.Vacancy(v.ID))
	case PromptSource:
		added, err := svc.SourceNegotiations(ctx, managerID)
		if err != nil {
			return err
		}
		log.Info("negotiations sourced", zap.Int("added", added))
	case PromptFetch:
		fetched, err := svc.FetchResumes(ctx, managerID)
		if err != nil {
			return err
		}
		log.Info("resumes fetched", zap.Int("fetched", fetched))
	case PromptAnalyzeResumes:
		queued, err := svc.AnalyzeResumes(ctx, managerID)
		if err != nil {
			return err
		}
		log.Info("resume analysis queued", zap.Int("queued", queued))
	case PromptRecommend:
		sent, err := svc.Recommend(ctx, managerID)
		if err != nil {
			return err
		}
		log.Info("candidates recommended", zap.Int("sent", sent))
	case PromptProcessAll:
		return svc.ProcessManager(ctx, managerID)
	case PromptStatus:
		funnel, err := svc.Status(ctx, managerID)
		if err != nil {
			return err
		}
		fmt.Println(funnel.String())
	default:
		return fmt.Errorf("invalid action: %s", action)
	}

	return nil
}
