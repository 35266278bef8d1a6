package infrastructure

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/yourusername/nowatermark-go/internal/domain"
	"go.uber.org/zap"
)

// NotificationService handles sending desktop notifications
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
	run    func(name string, args ...string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		config: config,
		logger: logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	var name string
	var args []string
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(message), escapeAppleScript(title))
		if n.config.Sound {
			script += ` sound name "Glass"`
		}
		name, args = "osascript", []string{"-e", script}
	case "notify-send":
		name, args = "notify-send", []string{title, message}
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err := n.run(name, args...); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

// NotifyExtractionReady sends notification when a remote video was resolved
func (n *NotificationService) NotifyExtractionReady(link string) {
	n.Send("Extraction Complete", fmt.Sprintf("Ready: %s", truncateString(link, 30)))
}

// NotifyExtractionFailed sends notification when a run fails
func (n *NotificationService) NotifyExtractionFailed(link, reason string) {
	n.Send("Extraction Failed", fmt.Sprintf("%s: %s", truncateString(link, 30), reason))
}

// NotifyVideoSaved sends notification when a local copy was written
func (n *NotificationService) NotifyVideoSaved(path string) {
	n.Send("Video Saved", truncateString(path, 60))
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func escapeAppleScript(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
