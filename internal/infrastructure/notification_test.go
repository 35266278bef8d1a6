package infrastructure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/nowatermark-go/internal/domain"
	"go.uber.org/zap"
)

type recordedCommand struct {
	name string
	args []string
}

func newRecordingNotifier(config *domain.NotificationConfig, runErr error) (*NotificationService, *[]recordedCommand) {
	var commands []recordedCommand
	n := NewNotificationService(config, zap.NewNop())
	n.run = func(name string, args ...string) error {
		commands = append(commands, recordedCommand{name: name, args: args})
		return runErr
	}
	return n, &commands
}

func TestNotificationService_Disabled(t *testing.T) {
	n, commands := newRecordingNotifier(&domain.NotificationConfig{Enabled: false, Method: "osascript"}, nil)

	require.NoError(t, n.Send("title", "message"))
	assert.Empty(t, *commands)
}

func TestNotificationService_OSAScript(t *testing.T) {
	n, commands := newRecordingNotifier(&domain.NotificationConfig{Enabled: true, Method: "osascript"}, nil)

	n.NotifyExtractionReady(`https://x.test/"quoted"`)

	require.Len(t, *commands, 1)
	cmd := (*commands)[0]
	assert.Equal(t, "osascript", cmd.name)
	require.Len(t, cmd.args, 2)
	assert.Contains(t, cmd.args[1], `with title "Extraction Complete"`)
	assert.Contains(t, cmd.args[1], `\"quoted\"`)
	assert.NotContains(t, cmd.args[1], "sound name")
}

func TestNotificationService_NotifySend(t *testing.T) {
	n, commands := newRecordingNotifier(&domain.NotificationConfig{Enabled: true, Method: "notify-send"}, nil)

	n.NotifyExtractionFailed("https://x.test/a", domain.NewServerStatusError(500).UserMessage())

	require.Len(t, *commands, 1)
	assert.Equal(t, "notify-send", (*commands)[0].name)
	assert.Equal(t, []string{"Extraction Failed", "https://x.test/a: Extraction service error (500)"}, (*commands)[0].args)
}

func TestNotificationService_UnknownMethodAndErrors(t *testing.T) {
	n, commands := newRecordingNotifier(&domain.NotificationConfig{Enabled: true, Method: "pager"}, nil)
	assert.NoError(t, n.Send("t", "m"))
	assert.Empty(t, *commands)

	failing, _ := newRecordingNotifier(&domain.NotificationConfig{Enabled: true, Method: "notify-send"}, errors.New("missing binary"))
	assert.Error(t, failing.Send("t", "m"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abc...", truncateString("abcdef", 3))
}
