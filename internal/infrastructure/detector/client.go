// Package detector talks to the object detection HTTP service that runs the
// trained model over uploaded images and videos.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/astroguard/backend/internal/domain/detection"
	infraconfig "github.com/astroguard/backend/internal/infrastructure/config"
	"github.com/astroguard/backend/internal/infrastructure/logger"
	"github.com/astroguard/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	imagePath = "/detect"
	videoPath = "/detect-video"

	// formField is the multipart field the detection service reads the upload from
	formField = "file"

	maxErrorBody    = 64 << 10
	maxResponseBody = 512 << 20
)

// Client implements detection.Provider over HTTP.
type Client struct {
	baseURL    *url.URL
	confidence float64
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *telemetry.DetectionMetrics
}

var _ detection.Provider = (*Client)(nil)

// Option is a functional option for configuring Client
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithLogger sets the fallback logger used when the request context has none
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// WithMetrics records request counts and latency
func WithMetrics(m *telemetry.DetectionMetrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// NewClient creates a detection client from configuration.
func NewClient(cfg *infraconfig.DetectionConfig, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("detection configuration is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid detection base url %q", cfg.BaseURL)
	}

	c := &Client{
		baseURL:    base,
		confidence: cfg.Confidence,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DetectImage posts an image to the detection service and returns its
// detections and the annotated image.
func (c *Client) DetectImage(ctx context.Context, media detection.Media) (*detection.ImageResult, error) {
	query := url.Values{}
	if c.confidence > 0 {
		query.Set("conf", strconv.FormatFloat(c.confidence, 'f', -1, 64))
	}

	var result detection.ImageResult
	if err := c.post(ctx, "image", imagePath, query, media, &result); err != nil {
		return nil, err
	}
	if result.Detections == nil {
		result.Detections = []detection.Detection{}
	}
	// Older service builds omit count.
	if result.Count == 0 {
		result.Count = len(result.Detections)
	}
	c.metrics.ObserveObjects(ctx, result.ClassCounts())
	return &result, nil
}

// DetectVideo posts a video to the detection service and returns per-class
// counts and the annotated frames.
func (c *Client) DetectVideo(ctx context.Context, media detection.Media) (*detection.VideoResult, error) {
	var result detection.VideoResult
	if err := c.post(ctx, "video", videoPath, nil, media, &result); err != nil {
		return nil, err
	}
	if result.ClassCounts == nil {
		result.ClassCounts = detection.ClassCountMap{}
	}
	if result.ProcessedFrames == nil {
		result.ProcessedFrames = []detection.ProcessedFrame{}
	}
	c.metrics.ObserveObjects(ctx, result.ClassCounts)
	return &result, nil
}

func (c *Client) post(ctx context.Context, kind, path string, query url.Values, media detection.Media, out any) error {
	log := logger.WithLogger(ctx, c.logger)
	start := time.Now()

	body, contentType, err := encodeUpload(media)
	if err != nil {
		return fmt.Errorf("encode upload: %w", err)
	}

	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("build detection request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(ctx, kind, "transport_error", time.Since(start))
		log.Warn("Detection service unreachable",
			zap.String("endpoint", endpoint.Path),
			zap.Error(err),
		)
		return detection.ErrTransport.Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := decodeProviderError(resp)
		c.metrics.ObserveRequest(ctx, kind, "provider_error", time.Since(start))
		log.Warn("Detection service returned an error",
			zap.String("endpoint", endpoint.Path),
			zap.Int("status", perr.StatusCode),
			zap.String("message", perr.Message),
		)
		return perr
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(out); err != nil {
		c.metrics.ObserveRequest(ctx, kind, "malformed_response", time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return detection.ErrTransport.Wrap(err)
		}
		return &detection.ProviderError{
			StatusCode: resp.StatusCode,
			Message:    "Malformed response from detection service",
		}
	}

	elapsed := time.Since(start)
	c.metrics.ObserveRequest(ctx, kind, "success", elapsed)
	log.Debug("Detection completed",
		zap.String("endpoint", endpoint.Path),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

// encodeUpload writes media as a single-file multipart body.
func encodeUpload(media detection.Media) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := media.FileName
	if name == "" {
		name = "upload." + media.Extension()
	}
	ct := media.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		formField, escapeQuotes(name)))
	header.Set("Content-Type", ct)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(media.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// errorBody covers both the {error} shape of the detection service and the
// {detail} shape FastAPI produces for validation failures.
type errorBody struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

func decodeProviderError(resp *http.Response) *detection.ProviderError {
	perr := &detection.ProviderError{StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		switch {
		case eb.Error != "":
			perr.Message = eb.Error
		case len(eb.Detail) > 0:
			var detail string
			if json.Unmarshal(eb.Detail, &detail) == nil {
				perr.Message = detail
			} else {
				perr.Message = string(eb.Detail)
			}
		}
	} else if text := strings.TrimSpace(string(raw)); text != "" && !strings.HasPrefix(text, "<") {
		perr.Message = text
	}

	if perr.Message == "" {
		perr.Message = http.StatusText(resp.StatusCode)
	}
	return perr
}
