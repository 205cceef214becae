package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hrvibe/hrvibe-core/internal/logger"
	"github.com/hrvibe/hrvibe-core/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Apply, roll back or show database migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{store.MigrateUp, store.MigrateDown, store.MigrateStatus},
	Run: func(_ *cobra.Command, args []string) {
		migrate(args[0])
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func migrate(command string) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	dbConfig := store.Config{
		URL:          viper.GetString("database.url"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	ctx := context.Background()

	st, err := store.Open(ctx, dbConfig, logger)
	if err != nil {
		logger.Fatal("connecting to the database", zap.Error(err))
	}
	defer st.Close()

	if err := store.Migrate(ctx, st.DB(), command, logger); err != nil {
		logger.Fatal("migrating", zap.String("command", command), zap.Error(err))
	}
}
