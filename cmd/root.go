package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "hrvibe"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "hrvibe screens hh.ru applicants for recruiters through Telegram bots",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

// envBindings maps config keys to the environment variables the service has
// always been configured with.
var envBindings = map[string]string{
	"telegram.manager-token":            "TELEGRAM_MANAGER_BOT_TOKEN",
	"telegram.applicant-token":          "TELEGRAM_APPLICANT_BOT_TOKEN",
	"recruiting.applicant-bot-username": "BOT_FOR_APPLICANTS_USERNAME",
	"recruiting.shared-secret":          "BOT_SHARED_SECRET",
	"recruiting.data-dir":               "USERS_DATA_DIR",
	"database.url":                      "DATABASE_URL",
	"hh.client-id":                      "HH_CLIENT_ID",
	"hh.client-secret":                  "HH_CLIENT_SECRET",
	"hh.redirect-url":                   "OAUTH_REDIRECT_URL",
	"hh.user-agent":                     "USER_AGENT",
	"gemini.api-key":                    "GEMINI_API_KEY",
	"admin-id":                          "ADMIN_ID",
	"active-bot":                        "ACTIVE_BOT",
}

func init() {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hrvibe.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// .env is optional, real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(strings.ToUpper(app))
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// The config file is optional, everything can come from the environment.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}
