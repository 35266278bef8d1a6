package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
	"github.com/yourusername/nowatermark-go/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var playlistSignature = []byte("#EXTM3U")

// HTTPMediaProbe loads best-effort metadata for a remote video
type HTTPMediaProbe struct {
	config *domain.ProbeConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPMediaProbe creates a new media probe
func NewHTTPMediaProbe(config *domain.ProbeConfig, logger *zap.Logger) *HTTPMediaProbe {
	return &HTTPMediaProbe{
		config: config,
		client: &http.Client{},
		logger: logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (p *HTTPMediaProbe) WithHTTPClient(client *http.Client) *HTTPMediaProbe {
	p.client = client
	return p
}

// Probe runs the size and duration probes concurrently and waits for both.
// Each probe converts its own failure to an absent value, so the join never fails.
func (p *HTTPMediaProbe) Probe(ctx context.Context, videoURL string) domain.MediaMetadata {
	var size *int64
	var duration *float64

	var g errgroup.Group
	g.Go(func() error {
		size = p.ProbeRemoteSize(ctx, videoURL)
		return nil
	})
	g.Go(func() error {
		duration = p.ProbeDuration(ctx, videoURL)
		return nil
	})
	_ = g.Wait()

	return domain.MediaMetadata{
		FileSizeBytes:   size,
		DurationSeconds: duration,
	}
}

// ProbeRemoteSize issues a HEAD request and returns Content-Length on a
// 2xx-3xx response. Any failure yields nil.
func (p *HTTPMediaProbe) ProbeRemoteSize(ctx context.Context, videoURL string) *int64 {
	ctx, cancel := context.WithTimeout(ctx, p.config.HeadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, videoURL, nil)
	if err != nil {
		return nil
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("Size probe failed", zap.String("url", videoURL), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 399 {
		p.logger.Debug("Size probe rejected", zap.String("url", videoURL), zap.Int("status", resp.StatusCode))
		return nil
	}

	raw := strings.TrimSpace(resp.Header.Get("Content-Length"))
	if raw == "" {
		return nil
	}
	size, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || size < 0 {
		return nil
	}
	return &size
}

// ProbeDuration inspects the head (and if needed the tail) of the remote
// file for its duration. HLS playlists are summed segment by segment.
// Any failure, or a non-finite or non-positive result, yields nil.
func (p *HTTPMediaProbe) ProbeDuration(ctx context.Context, videoURL string) *float64 {
	ctx, cancel := context.WithTimeout(ctx, p.config.DurationTimeout)
	defer cancel()

	seconds, err := p.loadDuration(ctx, videoURL)
	if err != nil {
		p.logger.Debug("Duration probe failed", zap.String("url", videoURL), zap.Error(err))
		return nil
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return nil
	}
	return &seconds
}

func (p *HTTPMediaProbe) loadDuration(ctx context.Context, videoURL string) (float64, error) {
	base, err := url.Parse(videoURL)
	if err != nil {
		return 0, err
	}

	if strings.HasSuffix(strings.ToLower(base.Path), ".m3u8") {
		body, _, err := p.fetchRange(ctx, videoURL, "")
		if err != nil {
			return 0, err
		}
		return p.playlistDuration(ctx, base, body, true)
	}

	head, total, err := p.fetchRange(ctx, videoURL, fmt.Sprintf("bytes=0-%d", p.config.SniffBytes-1))
	if err != nil {
		return 0, err
	}
	if bytes.HasPrefix(bytes.TrimSpace(head), playlistSignature) {
		return p.playlistDuration(ctx, base, head, true)
	}

	seconds, err := mp4Duration(head)
	if err == nil {
		return seconds, nil
	}
	if total <= int64(len(head)) {
		return 0, err
	}

	// moov is commonly written after mdat
	tail, _, err := p.fetchRange(ctx, videoURL, fmt.Sprintf("bytes=-%d", p.config.SniffBytes))
	if err != nil {
		return 0, err
	}
	return mp4Duration(tail)
}

// fetchRange GETs at most SniffBytes of the resource. It returns the body
// and the total resource size when the server reports one.
func (p *HTTPMediaProbe) fetchRange(ctx context.Context, rawURL, byteRange string) ([]byte, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.config.SniffBytes))
	if err != nil {
		return nil, 0, err
	}

	total := resp.ContentLength
	if resp.StatusCode == http.StatusPartialContent {
		total = contentRangeTotal(resp.Header.Get("Content-Range"))
	}
	return body, total, nil
}

// playlistDuration sums segment durations of a closed media playlist.
// A master playlist is followed one hop to its first variant.
func (p *HTTPMediaProbe) playlistDuration(ctx context.Context, base *url.URL, body []byte, followVariant bool) (float64, error) {
	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		return 0, err
	}

	switch listType {
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		if !followVariant {
			return 0, fmt.Errorf("nested master playlist")
		}
		for _, variant := range master.Variants {
			if variant == nil || variant.URI == "" {
				continue
			}
			ref, err := url.Parse(variant.URI)
			if err != nil {
				return 0, err
			}
			variantURL := base.ResolveReference(ref)
			variantBody, _, err := p.fetchRange(ctx, variantURL.String(), "")
			if err != nil {
				return 0, err
			}
			return p.playlistDuration(ctx, variantURL, variantBody, false)
		}
		return 0, fmt.Errorf("master playlist has no variants")

	case m3u8.MEDIA:
		media := playlist.(*m3u8.MediaPlaylist)
		if !media.Closed {
			return 0, fmt.Errorf("live playlist has no duration")
		}
		var total float64
		for _, segment := range media.Segments {
			if segment == nil {
				continue
			}
			total += segment.Duration
		}
		return total, nil
	}

	return 0, fmt.Errorf("unknown playlist type")
}

// contentRangeTotal extracts the complete length from "bytes 0-99/1234"
func contentRangeTotal(header string) int64 {
	idx := strings.LastIndex(header, "/")
	if idx < 0 {
		return -1
	}
	total, err := strconv.ParseInt(strings.TrimSpace(header[idx+1:]), 10, 64)
	if err != nil {
		return -1
	}
	return total
}
