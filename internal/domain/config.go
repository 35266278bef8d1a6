package domain

import (
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Parser       ParserConfig       `mapstructure:"parser"`
	Download     DownloadConfig     `mapstructure:"download"`
	Probe        ProbeConfig        `mapstructure:"probe"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Share        ShareConfig        `mapstructure:"share"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ParserConfig contains settings for the remote parse service
type ParserConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// DownloadConfig contains settings for local materialization
type DownloadConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Timeout     time.Duration `mapstructure:"timeout"` // 0 disables the overall download deadline
}

// ProbeConfig contains settings for the metadata probes
type ProbeConfig struct {
	HeadTimeout     time.Duration `mapstructure:"head_timeout"`
	DurationTimeout time.Duration `mapstructure:"duration_timeout"`
	SniffBytes      int64         `mapstructure:"sniff_bytes"`
}

// StorageConfig contains local storage locations
type StorageConfig struct {
	BaseDir      string `mapstructure:"base_dir"`
	LibraryDir   string `mapstructure:"library_dir"`
	DatabasePath string `mapstructure:"database_path"`
}

// MediaDir returns the private directory materialized videos are written to
func (c StorageConfig) MediaDir() string {
	return filepath.Join(c.BaseDir, "media")
}

// LogsDir returns the directory for categorized log files
func (c StorageConfig) LogsDir() string {
	return filepath.Join(c.BaseDir, "logs")
}

// ShareConfig controls the share/export hand-off
type ShareConfig struct {
	// AllowRemoteFallback hands the remote URL to the share target when the
	// local download fails. Off by default so shared paths are always local files.
	AllowRemoteFallback bool `mapstructure:"allow_remote_fallback"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8090,
		},
		Parser: ParserConfig{
			Endpoint:    "https://api-doubaonomark.wenhaofree.com/parse-video",
			Timeout:     30 * time.Second,
			MaxAttempts: MaxParseAttempts,
		},
		Download: DownloadConfig{
			MaxAttempts: MaxDownloadAttempts,
			Timeout:     10 * time.Minute,
		},
		Probe: ProbeConfig{
			HeadTimeout:     15 * time.Second,
			DurationTimeout: 15 * time.Second,
			SniffBytes:      512 * 1024,
		},
		Storage: StorageConfig{
			BaseDir:      "$HOME/.nowatermark",
			LibraryDir:   "$HOME/Movies/nowatermark",
			DatabasePath: "$HOME/.nowatermark/history.db",
		},
		Share: ShareConfig{
			AllowRemoteFallback: false,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   true,
			Method:  "osascript",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
