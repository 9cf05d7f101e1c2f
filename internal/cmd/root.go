package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Iron-Ham/nwbprep/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "nwbprep",
	Short: "Prepare a recording session for NWB conversion",
	Long: `nwbprep prepares one recording session for conversion to NWB
(Neurodata Without Borders).

Without a subcommand it runs the preparation for the configured session:
the session log is parsed into a task file (unless parse_log is disabled)
and the shared metadata files are merged into one file per session.

The session is chosen by the session.* configuration keys, or by flags:
  nwbprep --project-path /data/project --subject S1 --experiment E1 --session 01`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runPrepare,
}

// flagBindings maps command line flags to configuration keys
var flagBindings = map[string]string{
	"project-path": "project_path",
	"subject":      "session.subject",
	"experiment":   "session.experiment",
	"session":      "session.session",
	"verbose":      "settings.verbose",
	"parse-log":    "settings.parse_log",
	"lock":         "settings.lock",
	"metadata-dir": "metadata.dir",
	"log-level":    "logging.level",
}

// configErr holds a failure to read an explicitly requested or malformed
// config file, reported by the first command that needs the configuration
var configErr error

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "config file (default is $HOME/.config/nwbprep/config.yaml)")
	pf.String("project-path", "", "project root directory")
	pf.String("subject", "", "subject identifier")
	pf.String("experiment", "", "experiment identifier")
	pf.String("session", "", "session identifier")

	// Preparation flags
	f := rootCmd.Flags()
	f.Bool("verbose", true, "print status messages")
	f.Bool("parse-log", true, "parse the session log into a task file")
	f.Bool("lock", true, "lock the session folder while preparing")
	f.String("metadata-dir", "", "folder holding the shared metadata files")
	f.String("log-level", "", "run log level (debug, info, warn, error)")
}

// bindFlags connects flags to viper keys. It runs on every initialization so
// that bindings survive viper.Reset.
func bindFlags() {
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	for flag, key := range flagBindings {
		fl := rootCmd.PersistentFlags().Lookup(flag)
		if fl == nil {
			fl = rootCmd.Flags().Lookup(flag)
		}
		_ = viper.BindPFlag(key, fl)
	}
}

func initConfig() {
	configErr = nil

	// Set defaults first so they're available even without a config file
	config.SetDefaults()
	bindFlags()

	// Variables from .env never override the real environment
	if err := config.LoadEnvFile(".env"); err != nil {
		configErr = fmt.Errorf("failed to load .env: %w", err)
	}

	cfgFile := viper.GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/nwbprep")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("NWBPREP")
	// Replace dots with underscores for nested keys in env vars
	// e.g., NWBPREP_SETTINGS_PARSE_LOG for settings.parse_log
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine unless one was asked for explicitly
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			configErr = fmt.Errorf("failed to read config: %w", err)
		}
	}
}

// loadConfig returns the validated configuration for commands that act on a
// session
func loadConfig() (*config.Config, error) {
	if configErr != nil {
		return nil, configErr
	}
	return config.Load()
}
