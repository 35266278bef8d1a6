package app

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/yourusername/nowatermark-go/internal/domain"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.nowatermark")
		v.AddConfigPath("/etc/nowatermark")
	}

	v.SetEnvPrefix("NOWATERMARK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnvKeys registers every key so AutomaticEnv also applies to keys
// absent from the config file.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.host", "server.port",
		"parser.endpoint", "parser.timeout", "parser.max_attempts",
		"download.max_attempts", "download.timeout",
		"probe.head_timeout", "probe.duration_timeout", "probe.sniff_bytes",
		"storage.base_dir", "storage.library_dir", "storage.database_path",
		"share.allow_remote_fallback",
		"notification.enabled", "notification.sound", "notification.method",
		"logging.level", "logging.format", "logging.output_path",
	} {
		v.BindEnv(key)
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Storage.BaseDir = expandPath(config.Storage.BaseDir)
	config.Storage.LibraryDir = expandPath(config.Storage.LibraryDir)
	config.Storage.DatabasePath = expandPath(config.Storage.DatabasePath)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	endpoint, err := url.Parse(config.Parser.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return fmt.Errorf("invalid parser endpoint: %q", config.Parser.Endpoint)
	}

	if config.Parser.Timeout <= 0 {
		return fmt.Errorf("parser timeout must be positive")
	}

	if config.Parser.MaxAttempts < 1 {
		return fmt.Errorf("parser max attempts must be at least 1")
	}

	if config.Download.MaxAttempts < 1 {
		return fmt.Errorf("download max attempts must be at least 1")
	}

	if config.Download.Timeout < 0 {
		return fmt.Errorf("download timeout cannot be negative")
	}

	if config.Probe.SniffBytes < 1024 {
		return fmt.Errorf("probe sniff bytes must be at least 1024")
	}

	if config.Storage.BaseDir == "" {
		return fmt.Errorf("storage base directory not configured")
	}

	if config.Storage.DatabasePath == "" {
		return fmt.Errorf("history database path not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("server.host", config.Server.Host)
	v.Set("server.port", config.Server.Port)
	v.Set("parser.endpoint", config.Parser.Endpoint)
	v.Set("parser.timeout", config.Parser.Timeout.String())
	v.Set("parser.max_attempts", config.Parser.MaxAttempts)
	v.Set("download.max_attempts", config.Download.MaxAttempts)
	v.Set("download.timeout", config.Download.Timeout.String())
	v.Set("probe.head_timeout", config.Probe.HeadTimeout.String())
	v.Set("probe.duration_timeout", config.Probe.DurationTimeout.String())
	v.Set("probe.sniff_bytes", config.Probe.SniffBytes)
	v.Set("storage.base_dir", config.Storage.BaseDir)
	v.Set("storage.library_dir", config.Storage.LibraryDir)
	v.Set("storage.database_path", config.Storage.DatabasePath)
	v.Set("share.allow_remote_fallback", config.Share.AllowRemoteFallback)
	v.Set("notification.enabled", config.Notification.Enabled)
	v.Set("notification.sound", config.Notification.Sound)
	v.Set("notification.method", config.Notification.Method)
	v.Set("logging.level", config.Logging.Level)
	v.Set("logging.format", config.Logging.Format)
	v.Set("logging.output_path", config.Logging.OutputPath)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
