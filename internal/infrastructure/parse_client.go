package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/yourusername/nowatermark-go/internal/domain"
	"go.uber.org/zap"
)

const maxParseResponseBytes = 4 << 20

type parseRequest struct {
	URL       string `json:"url"`
	ReturnRaw bool   `json:"return_raw"`
}

type parseVideoPayload struct {
	URL        string `json:"url"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Definition string `json:"definition"`
	PosterURL  string `json:"poster_url"`
}

type parseResponse struct {
	Success bool               `json:"success"`
	Video   *parseVideoPayload `json:"video"`
	Message *string            `json:"message"`
}

// ParseClient calls the remote parse service. It makes exactly one request
// per Parse call; retries belong to the caller.
type ParseClient struct {
	config *domain.ParserConfig
	client *http.Client
	logger *zap.Logger
}

// NewParseClient creates a new parse service client
func NewParseClient(config *domain.ParserConfig, logger *zap.Logger) *ParseClient {
	return &ParseClient{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (c *ParseClient) WithHTTPClient(client *http.Client) *ParseClient {
	c.client = client
	return c
}

// Parse resolves a user link into a video descriptor
func (c *ParseClient) Parse(ctx context.Context, link string) (*domain.VideoDescriptor, error) {
	endpoint, err := url.Parse(c.config.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, domain.NewKindError(domain.KindInvalidEndpoint, err)
	}

	body, err := json.Marshal(parseRequest{URL: link, ReturnRaw: false})
	if err != nil {
		return nil, domain.NewKindError(domain.KindInvalidPayload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewKindError(domain.KindInvalidEndpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.NewTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxParseResponseBytes))
	if err != nil {
		return nil, domain.NewTransportError(err)
	}

	c.logger.Debug("Parse service responded",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope parseResponse
		if json.Unmarshal(data, &envelope) == nil && envelope.Message != nil && *envelope.Message != "" {
			return nil, domain.NewServerMessageError(resp.StatusCode, *envelope.Message)
		}
		return nil, domain.NewServerStatusError(resp.StatusCode)
	}

	var decoded parseResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, domain.NewKindError(domain.KindInvalidPayload, err)
	}
	if !decoded.Success {
		message := "Extraction service reported a failure"
		if decoded.Message != nil && *decoded.Message != "" {
			message = *decoded.Message
		}
		return nil, domain.NewServerMessageError(resp.StatusCode, message)
	}
	if decoded.Video == nil {
		return nil, domain.NewKindError(domain.KindEmptyVideoURL, nil)
	}

	videoURL := strings.TrimSpace(decoded.Video.URL)
	if !isAbsoluteURL(videoURL) {
		return nil, domain.NewKindError(domain.KindEmptyVideoURL, fmt.Errorf("unusable video url %q", videoURL))
	}

	return &domain.VideoDescriptor{
		VideoURL:   videoURL,
		PosterURL:  strings.TrimSpace(decoded.Video.PosterURL),
		Width:      decoded.Video.Width,
		Height:     decoded.Video.Height,
		Definition: decoded.Video.Definition,
	}, nil
}

func isAbsoluteURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
