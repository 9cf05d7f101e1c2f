package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Iron-Ham/nwbprep/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify nwbprep configuration",
	Long: `View or modify nwbprep configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Keys use dot notation, e.g.:
  nwbprep config set project_path /data/project
  nwbprep config set session.subject wv001
  nwbprep config set metadata.ignore "draft-*,old-*"

Valid keys:
  project_path        - Project root directory
  session.subject     - Subject identifier
  session.experiment  - Experiment identifier
  session.session     - Session identifier
  settings.verbose    - Print status messages (true/false)
  settings.parse_log  - Parse the session log (true/false)
  settings.lock       - Lock the session while preparing (true/false)
  metadata.dir        - Folder holding the shared metadata files
  metadata.select     - Metadata file extension
  metadata.ignore     - Comma separated glob patterns of files to skip
  task.select         - Session log file extension
  task.process        - Compute per-trial summaries (true/false)
  logging.enabled     - Write a run log to the session folder (true/false)
  logging.level       - Run log level: debug, info, warn, error`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/nwbprep/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var (
	configInitPath  string
	configInitForce bool
)

// settableKeys maps keys accepted by 'config set' to their value kind
var settableKeys = map[string]string{
	"project_path":       "string",
	"session.subject":    "string",
	"session.experiment": "string",
	"session.session":    "string",
	"settings.verbose":   "bool",
	"settings.parse_log": "bool",
	"settings.lock":      "bool",
	"metadata.dir":       "string",
	"metadata.select":    "string",
	"metadata.ignore":    "list",
	"task.select":        "string",
	"task.process":       "bool",
	"logging.enabled":    "bool",
	"logging.level":      "string",
}

// configComments are written above each section by 'config init'
var configComments = map[string]string{
	"project_path": "Root folder of the project; sessions live in <project_path>/recordings",
	"session":      "The session to prepare",
	"settings":     "Preparation switches",
	"metadata":     "Shared metadata files merged into <session>/metadata/<name>.yaml\nLater files (by name) override earlier ones on shared keys",
	"task":         "Session log parsing (behavior/logs/*.<select>)",
	"logging":      "Run log written to <session>/nwbprep.log",
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "Write the config file here instead of the default location")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return configErr
	}
	cfg, err := config.Unmarshal(viper.GetViper())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	fmt.Fprint(out, string(data))

	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "# Problems:")
		for _, e := range errs {
			fmt.Fprintf(out, "#   %s\n", e.Error())
		}
	}

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	keyType, ok := settableKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'nwbprep config set --help' to see valid keys", key)
	}

	// Validate the value based on type
	var typedValue any
	switch keyType {
	case "string":
		if key == "logging.level" && !slices.Contains(config.ValidLogLevels(), value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidLogLevels(), ", "))
		}
		typedValue = value
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = value == "true"
	case "list":
		items := []string{}
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		typedValue = items
	}

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = config.ConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Only keys already in the file are written back, never env or flag values
	fileCfg := viper.New()
	fileCfg.SetConfigFile(configFile)
	if _, err := os.Stat(configFile); err == nil {
		if err := fileCfg.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	fileCfg.Set(key, typedValue)
	if err := fileCfg.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)

	return nil
}

// configTemplate renders the default configuration with section comments
func configTemplate() ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(config.Default()); err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if comment, ok := configComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}

	var buf bytes.Buffer
	buf.WriteString("# nwbprep configuration\n\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := configInitPath
	if configFile == "" {
		configFile = config.ConfigFile()
	}

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil && !configInitForce {
		return fmt.Errorf("config file already exists at %s\nUse 'nwbprep config set' to modify values", configFile)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := configTemplate()
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := os.WriteFile(configFile, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Set project_path and the session identifiers before running nwbprep.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", config.ConfigFile())
	fmt.Fprintf(out, "  2. $HOME/.config/nwbprep/config.yaml\n")
	fmt.Fprintf(out, "  3. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: NWBPREP_* (e.g., NWBPREP_SETTINGS_PARSE_LOG)")
	fmt.Fprintln(out, "A .env file in the current directory is loaded first.")

	return nil
}
