// Package fetch retrieves URLs from a site's origin server with bounded
// retry. Connections dial the configured origin IP while the request
// presents the declared hostname, so a CDN in front of the site never
// sees the export traffic.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sitesnap/sitesnap/internal/clock"
)

// baseRetryDelay scales the linear backoff between attempts: the nth retry
// waits n times this long.
const baseRetryDelay = 500 * time.Millisecond

// defaultUserAgents rotate round-robin across requests when the
// configuration does not supply its own list.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Config captures the parameters of the origin-dialing client.
type Config struct {
	// Hostname is the declared site host, sent as the Host header and
	// used for TLS verification.
	Hostname string
	// OriginIP is the address connections are actually dialed to.
	OriginIP string
	// ConnectTimeout bounds the TCP dial.
	ConnectTimeout time.Duration
	// ReadTimeout bounds the whole request including the body read.
	ReadTimeout time.Duration
	// MaxRetries is the number of re-attempts after a failed fetch.
	MaxRetries int
	// UserAgents overrides the default rotation list when non-empty.
	UserAgents []string
}

// Result is the outcome of a successful fetch (HTTP 200), classified as
// page or binary asset. It is produced per fetch and never persisted.
type Result struct {
	URL         string
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
	Kind        Kind
}

// StatusError reports the final non-200 status once retries are exhausted.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	text := http.StatusText(e.StatusCode)
	if text == "" {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: status %d %s", e.URL, e.StatusCode, text)
}

// Client fetches URLs from the configured origin while presenting the
// declared hostname. It is not safe for concurrent use; the crawl loop
// issues one fetch at a time.
type Client struct {
	httpClient *http.Client
	hostname   string
	userAgents []string
	nextAgent  int
	retries    int
	baseDelay  time.Duration
	clock      clock.Clock
	logger     *zap.Logger
}

// New builds a Client whose transport dials cfg.OriginIP for the declared
// host while TLS verification and the Host header keep the hostname.
func New(cfg Config, clk clock.Clock, logger *zap.Logger) *Client {
	return NewWithHTTPClient(&http.Client{
		Transport: originTransport(cfg),
		Timeout:   cfg.ReadTimeout,
	}, cfg, clk, logger)
}

// NewWithHTTPClient builds a Client over a caller-supplied HTTP client.
// Tests inject fixture transports through it.
func NewWithHTTPClient(httpClient *http.Client, cfg Config, clk clock.Clock, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	agents := cfg.UserAgents
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		httpClient: httpClient,
		hostname:   cfg.Hostname,
		userAgents: agents,
		retries:    retries,
		baseDelay:  baseRetryDelay,
		clock:      clk,
		logger:     logger,
	}
}

// originTransport rewrites the dial target of requests addressed to the
// declared host (with or without the www prefix) to the origin IP. TLS
// still handshakes and verifies against the hostname from the URL.
func originTransport(cfg Config) *http.Transport {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	site := strings.TrimPrefix(strings.ToLower(cfg.Hostname), "www.")
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err == nil {
				candidate := strings.TrimPrefix(strings.ToLower(host), "www.")
				if candidate == site {
					addr = net.JoinHostPort(cfg.OriginIP, port)
				}
			}
			return dialer.DialContext(ctx, network, addr)
		},
		ForceAttemptHTTP2: true,
	}
}

// Fetch performs a GET with up to 1+MaxRetries attempts. Transport
// failures and non-200 statuses both trigger a retry after a linearly
// growing backoff; only a 200 response is a success. After exhaustion the
// last error is returned (a *StatusError when the final attempt completed
// with a non-200 status).
func (c *Client) Fetch(ctx context.Context, rawURL string) (Result, error) {
	attempts := c.retries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * c.baseDelay
			c.logger.Debug("retrying fetch",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			if err := c.clock.Sleep(ctx, backoff); err != nil {
				return Result{}, err
			}
		}

		result, err := c.fetchOnce(ctx, rawURL)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			lastErr = err
			continue
		}
		if result.StatusCode == http.StatusOK {
			return result, nil
		}
		lastErr = &StatusError{URL: rawURL, StatusCode: result.StatusCode}
	}

	return Result{}, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, rawURL string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Host = c.hostname
	req.Header.Set("User-Agent", c.nextUserAgent())
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read body: %w", err)
	}

	result := Result{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}
	if resp.StatusCode == http.StatusOK {
		result.ContentType = resp.Header.Get("Content-Type")
		result.Kind = Classify(resp.Header)
	}
	return result, nil
}

// nextUserAgent advances the round-robin rotation. Deterministic order
// keeps fetch sequences reproducible.
func (c *Client) nextUserAgent() string {
	agent := c.userAgents[c.nextAgent%len(c.userAgents)]
	c.nextAgent++
	return agent
}
