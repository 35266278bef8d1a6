package domain

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NotNil(t, config)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 8090, config.Server.Port)
	assert.Equal(t, 30*time.Second, config.Parser.Timeout)
	assert.Equal(t, 3, config.Parser.MaxAttempts)
	assert.Equal(t, 3, config.Download.MaxAttempts)
	assert.Equal(t, 15*time.Second, config.Probe.HeadTimeout)
	assert.Equal(t, 15*time.Second, config.Probe.DurationTimeout)
	assert.Positive(t, config.Probe.SniffBytes)
	assert.False(t, config.Share.AllowRemoteFallback)
	assert.False(t, config.Notification.Enabled)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestStorageConfig_Dirs(t *testing.T) {
	storage := StorageConfig{BaseDir: "/data/nowatermark"}

	assert.Equal(t, filepath.Join("/data/nowatermark", "media"), storage.MediaDir())
	assert.Equal(t, filepath.Join("/data/nowatermark", "logs"), storage.LogsDir())
}
