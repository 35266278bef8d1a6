package domain

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	defaultVideoExtension = "mp4"
	localFilePrefix       = "nowatermark"
)

// ExtensionFor picks the file extension for a materialized video. The first
// non-empty candidate wins: the source URL path, the server-suggested filename,
// the MIME type, then "mp4".
func ExtensionFor(sourceURL, suggestedFilename, mimeType string) string {
	if u, err := url.Parse(sourceURL); err == nil {
		if ext := pathExtension(u.Path); ext != "" {
			return ext
		}
	}

	if ext := pathExtension(suggestedFilename); ext != "" {
		return ext
	}

	mime := strings.ToLower(mimeType)
	if strings.Contains(mime, "mp4") {
		return "mp4"
	}
	if strings.Contains(mime, "quicktime") || strings.Contains(mime, "mov") {
		return "mov"
	}

	return defaultVideoExtension
}

func pathExtension(p string) string {
	if p == "" {
		return ""
	}
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	ext := path.Ext(base)
	if ext == base {
		// dotfile such as ".mp4" has no extension
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// LocalFileName builds a collision-safe local file name qualified by both
// the creation time and a per-download token.
func LocalFileName(ext string, createdAt time.Time, token string) string {
	if ext == "" {
		ext = defaultVideoExtension
	}
	if token == "" {
		return fmt.Sprintf("%s_%d.%s", localFilePrefix, createdAt.Unix(), ext)
	}
	return fmt.Sprintf("%s_%d_%s.%s", localFilePrefix, createdAt.Unix(), token, ext)
}

// BuildTitle derives the history title from the remote URL's last path
// segment, falling back to a timestamped synthetic name.
func BuildTitle(remoteURL string, createdAt time.Time) string {
	if u, err := url.Parse(remoteURL); err == nil {
		name := path.Base(u.Path)
		if name != "" && name != "/" && name != "." {
			if pathExtension(name) == "" {
				return name + "." + defaultVideoExtension
			}
			return name
		}
	}
	return fmt.Sprintf("%s_%s.%s", localFilePrefix, createdAt.Format("20060102_150405"), defaultVideoExtension)
}
