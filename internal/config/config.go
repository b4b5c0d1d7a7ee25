// Package config loads and provides access to the punch configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pterm/pterm"
)

type (
	// Config holds all configuration settings.
	Config struct {
		Jira     JiraConfig
		Settings SettingsConfig
		Menubar  MenubarConfig
		System   SystemConfig
	}

	// JiraConfig holds settings for the remote issue-tracking service.
	JiraConfig struct {
		Host string
	}

	// SettingsConfig holds general behaviour settings.
	SettingsConfig struct {
		// CommentBlock enables the comment workflow before posting a
		// work log. When disabled, posting happens immediately.
		CommentBlock bool
		// RequestTimeout bounds every outbound request.
		RequestTimeout time.Duration
		// Notify enables desktop notifications for post results.
		Notify bool
		// PostCmd is an arbitrary command executed after a successful
		// work-log post.
		PostCmd string
	}

	// MenubarConfig controls which pieces appear in the menubar summary.
	MenubarConfig struct {
		HideTiming bool
		HideKey    bool
	}

	// SystemConfig holds derived filesystem paths.
	SystemConfig struct {
		ConfigPath string
		DBPath     string
		CredsPath  string
		LogPath    string
	}

	// Option is a function that modifies Config.
	Option func(*Config) error
)

const Version = "v0.3.0"

// ServiceName is the fixed service identity used to key stored credentials.
const ServiceName = "punch"

var (
	configDir      = "punch"
	configFileName = "config.yml"
	dbFileName     = "punch.db"
	credsFileName  = "credentials.db"
	logFileName    = "punch.log"
	configFilePath string
	dbFilePath     string
	credsFilePath  string
	logFilePath    string
)

func Dir() string {
	return configDir
}

func ConfigFilePath() string {
	return configFilePath
}

func DBFilePath() string {
	return dbFilePath
}

func CredsFilePath() string {
	return credsFilePath
}

func LogFilePath() string {
	return logFilePath
}

// InitializePaths resolves the XDG locations for the config file, the timer
// database, the credential database, and the log file. Setting PUNCH_ENV
// isolates all of them for development and testing.
func InitializePaths() {
	punchEnv := strings.TrimSpace(os.Getenv("PUNCH_ENV"))
	if punchEnv != "" {
		configFileName = fmt.Sprintf("config_%s.yml", punchEnv)
		dbFileName = fmt.Sprintf("punch_%s.db", punchEnv)
		credsFileName = fmt.Sprintf("credentials_%s.db", punchEnv)
		logFileName = fmt.Sprintf("punch_%s.log", punchEnv)
	}

	var err error

	relPath := filepath.Join(configDir, configFileName)

	configFilePath, err = xdg.ConfigFile(relPath)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	dataDir, err := xdg.DataFile(configDir)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	dbFilePath = filepath.Join(dataDir, dbFileName)

	credsFilePath = filepath.Join(dataDir, credsFileName)

	logFilePath = filepath.Join(dataDir, "log", logFileName)
}

// New creates a new Config with default values and applies options.
func New(opts ...Option) (*Config, error) {
	cfg := &Config{
		System: SystemConfig{
			ConfigPath: configFilePath,
			DBPath:     dbFilePath,
			CredsPath:  credsFilePath,
			LogPath:    logFilePath,
		},
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("config option error: %w", err)
		}
	}

	return cfg, nil
}
