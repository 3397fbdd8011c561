package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all AutoManager configuration.
type Config struct {
	// Directory holding metadata.json and the table files
	DataDir string `yaml:"data_dir"`

	// JSON credential store
	UsersFile string `yaml:"users_file"`

	// Undo snapshots kept per table, 0 for unbounded
	HistoryLimit int `yaml:"history_limit"`

	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
	Backup  BackupConfig  `yaml:"backup"`
}

// LoggingConfig configures the log sinks.
type LoggingConfig struct {
	Level  string `yaml:"level"`   // debug, info, warn, error
	SeqURL string `yaml:"seq_url"` // empty disables the Seq sink
	File   string `yaml:"file"`    // empty disables the JSON file sink
}

// ServerConfig configures the TCP front end.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// BackupConfig configures local table archives.
type BackupConfig struct {
	Dir         string `yaml:"dir"`
	Parallelism int    `yaml:"parallelism"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		DataDir:      "data",
		UsersFile:    filepath.Join("data", "users.json"),
		HistoryLimit: 0,
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Port: 4444,
		},
		Backup: BackupConfig{
			Dir:         "backups",
			Parallelism: 4,
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Defaults if config file doesn't exist
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("AUTOMANAGER_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if path := os.Getenv("AUTOMANAGER_USERS_FILE"); path != "" {
		c.UsersFile = path
	}
	if url := os.Getenv("AUTOMANAGER_SEQ_URL"); url != "" {
		c.Logging.SeqURL = url
	}
	if level := os.Getenv("AUTOMANAGER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if limit := os.Getenv("AUTOMANAGER_HISTORY_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			c.HistoryLimit = n
		}
	}
}

// Validate checks the configuration for values the application cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir must be set")
	}
	if strings.TrimSpace(c.UsersFile) == "" {
		return fmt.Errorf("users_file must be set")
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative, got %d", c.HistoryLimit)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Backup.Parallelism < 1 {
		return fmt.Errorf("backup.parallelism must be at least 1, got %d", c.Backup.Parallelism)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Logging.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("invalid logging.level %q: %w", c.Logging.Level, err)
	}
	return level, nil
}
