// v1
// internal/transport/client.go
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nrg-champ/telemetry-stream/internal/telemetry"
)

const (
	DefaultProbeTimeout   = 5 * time.Second
	DefaultRequestTimeout = 5 * time.Second

	// maxBodyDetail caps how much of an error response body is kept.
	maxBodyDetail = 512
)

var (
	ErrConnectivity = errors.New("telemetry endpoint unreachable")
	ErrTransmission = errors.New("telemetry transmission failed")
)

// TransmissionError describes a single failed POST. StatusCode is zero when
// the request never produced a response.
type TransmissionError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("telemetry endpoint returned %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("telemetry request failed: %v", e.Err)
}

func (e *TransmissionError) Unwrap() error { return e.Err }

func (e *TransmissionError) Is(target error) bool { return target == ErrTransmission }

// Observer receives the outcome of every POST. Optional.
type Observer interface {
	Transmitted(ok bool, status int, elapsed time.Duration)
}

// Client talks to the receiving application's telemetry endpoint.
type Client struct {
	endpoint       string
	h              *http.Client
	log            *slog.Logger
	probeTimeout   time.Duration
	requestTimeout time.Duration
	obs            Observer
}

type Config struct {
	Endpoint       string
	ProbeTimeout   time.Duration
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Observer       Observer
}

func New(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	h := cfg.HTTPClient
	if h == nil {
		h = &http.Client{}
	}
	pt := cfg.ProbeTimeout
	if pt <= 0 {
		pt = DefaultProbeTimeout
	}
	rt := cfg.RequestTimeout
	if rt <= 0 {
		rt = DefaultRequestTimeout
	}
	return &Client{
		endpoint:       cfg.Endpoint,
		h:              h,
		log:            log,
		probeTimeout:   pt,
		requestTimeout: rt,
		obs:            cfg.Observer,
	}
}

func (c *Client) Endpoint() string { return c.endpoint }

// Probe issues a GET against the endpoint and succeeds only on 200.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	resp, err := c.h.Do(req)
	if err != nil {
		c.log.Error("api connection failed", "endpoint", c.endpoint, "err", err)
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	defer resp.Body.Close()
	_, _ = io.CopyN(io.Discard, resp.Body, 64)

	if resp.StatusCode != http.StatusOK {
		c.log.Error("api returned unexpected status", "endpoint", c.endpoint, "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", ErrConnectivity, resp.StatusCode)
	}
	c.log.Info("api connection successful", "endpoint", c.endpoint)
	return nil
}

// Send POSTs one sample. Network failures and non-200 responses come back
// as *TransmissionError; anything else is a programming or encoding error.
func (c *Client) Send(ctx context.Context, s telemetry.Sample) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.h.Do(req)
	if err != nil {
		c.observe(false, 0, start)
		c.log.Warn("failed to send telemetry", "err", err)
		return &TransmissionError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyDetail))
		c.observe(false, resp.StatusCode, start)
		body := strings.TrimSpace(string(detail))
		c.log.Warn("api error", "status", resp.StatusCode, "body", body)
		return &TransmissionError{StatusCode: resp.StatusCode, Body: body}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	c.observe(true, resp.StatusCode, start)
	return nil
}

func (c *Client) observe(ok bool, status int, start time.Time) {
	if c.obs != nil {
		c.obs.Transmitted(ok, status, time.Since(start))
	}
}
