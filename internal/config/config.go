package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete nwbprep configuration
type Config struct {
	ProjectPath string         `mapstructure:"project_path" yaml:"project_path"`
	Session     SessionConfig  `mapstructure:"session" yaml:"session"`
	Settings    SettingsConfig `mapstructure:"settings" yaml:"settings"`
	Metadata    MetadataConfig `mapstructure:"metadata" yaml:"metadata"`
	Task        TaskConfig     `mapstructure:"task" yaml:"task"`
	Logging     LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// SessionConfig identifies the session to prepare
type SessionConfig struct {
	Subject    string `mapstructure:"subject" yaml:"subject"`
	Experiment string `mapstructure:"experiment" yaml:"experiment"`
	Session    string `mapstructure:"session" yaml:"session"`
}

// SettingsConfig controls the preparation run
type SettingsConfig struct {
	// Verbose prints status lines to stdout
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
	// ParseLog parses the session log into a task artifact
	ParseLog bool `mapstructure:"parse_log" yaml:"parse_log"`
	// Lock holds a lock file in the session folder for the duration of a run
	Lock bool `mapstructure:"lock" yaml:"lock"`
}

// MetadataConfig controls which metadata files are collected
type MetadataConfig struct {
	// Dir is the folder holding the shared metadata files.
	// Relative paths are resolved against the working directory.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Select is the file extension to collect, without the dot
	Select string `mapstructure:"select" yaml:"select"`
	// Ignore lists glob patterns of file names to skip
	Ignore []string `mapstructure:"ignore" yaml:"ignore"`
}

// TaskConfig controls session log parsing
type TaskConfig struct {
	// Select is the session log file extension, without the dot
	Select string `mapstructure:"select" yaml:"select"`
	// Process computes per-trial summaries after parsing
	Process bool `mapstructure:"process" yaml:"process"`
}

// LoggingConfig controls the run log written to the session folder
type LoggingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is one of: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
}

// ResolveDir returns the absolute metadata directory.
// Relative paths are resolved against baseDir.
func (m *MetadataConfig) ResolveDir(baseDir string) string {
	path := m.Dir
	if path == "" {
		path = Default().Metadata.Dir
	}

	// Expand ~ to home directory
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Settings: SettingsConfig{
			Verbose:  true,
			ParseLog: true,
			Lock:     true,
		},
		Metadata: MetadataConfig{
			Dir:    "metadata",
			Select: "yaml",
			Ignore: []string{},
		},
		Task: TaskConfig{
			Select:  "jsonl",
			Process: true,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("project_path", defaults.ProjectPath)

	// Session identifiers have no defaults, but registering them lets
	// environment variables reach them through Unmarshal
	v.SetDefault("session.subject", "")
	v.SetDefault("session.experiment", "")
	v.SetDefault("session.session", "")

	v.SetDefault("settings.verbose", defaults.Settings.Verbose)
	v.SetDefault("settings.parse_log", defaults.Settings.ParseLog)
	v.SetDefault("settings.lock", defaults.Settings.Lock)

	v.SetDefault("metadata.dir", defaults.Metadata.Dir)
	v.SetDefault("metadata.select", defaults.Metadata.Select)
	v.SetDefault("metadata.ignore", defaults.Metadata.Ignore)

	v.SetDefault("task.select", defaults.Task.Select)
	v.SetDefault("task.process", defaults.Task.Process)

	v.SetDefault("logging.enabled", defaults.Logging.Enabled)
	v.SetDefault("logging.level", defaults.Logging.Level)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v and validates it
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg, err := Unmarshal(v)
	if err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return cfg, nil
}

// Unmarshal reads the configuration from v without validating it
func Unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeHook lets list settings be given as comma separated strings, which is
// how they arrive from environment variables and flags.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.DecodeHookFuncType(commaListHook)
}

func commaListHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
		return data, nil
	}

	raw := strings.TrimSpace(data.(string))
	if raw == "" {
		return []string{}, nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// LoadEnvFile loads variables from a .env file into the process environment.
// Variables already set are not overridden. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nwbprep")
	}
	// Fall back to ~/.config/nwbprep
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nwbprep"
	}
	return filepath.Join(home, ".config", "nwbprep")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
