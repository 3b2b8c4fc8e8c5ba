// Package payments wraps the payment processor SDK behind the few calls
// the marketplace makes.
package payments

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const (
	// DefaultBaseURL is the processor's production API root.
	DefaultBaseURL = stripe.APIURL

	clientTimeout         = 30 * time.Second
	dialTimeout           = 10 * time.Second
	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 15 * time.Second
)

// ErrNotConfigured is returned when the client has no secret key.
var ErrNotConfigured = errors.New("payments client not configured")

// Client calls the processor API with one secret key.
// It is safe for concurrent use.
type Client struct {
	secretKey string
	api       *client.API
}

type clientConfig struct {
	baseURL    string
	httpClient *http.Client
	retries    int64
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*clientConfig)

// WithHTTPClient replaces the default transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithBaseURL points the client at another API root, such as a test server.
func WithBaseURL(u string) Option {
	return func(c *clientConfig) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithMaxNetworkRetries lets the SDK retry failed requests. The default is
// no retries. POSTs are retried under one idempotency key.
func WithMaxNetworkRetries(n int64) Option {
	return func(c *clientConfig) { c.retries = n }
}

// WithLogger routes SDK log lines through logger. Without it the SDK is silent.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}

// NewClient creates a client authenticated with secretKey.
func NewClient(secretKey string, opts ...Option) *Client {
	cfg := clientConfig{
		baseURL:    DefaultBaseURL,
		httpClient: newHTTPClient(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var logger stripe.LeveledLoggerInterface = &stripe.LeveledLogger{Level: stripe.LevelNull}
	if cfg.logger != nil {
		logger = &sdkLogger{logger: cfg.logger.With("component", "payments.sdk")}
	}

	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		URL:               stripe.String(cfg.baseURL),
		HTTPClient:        cfg.httpClient,
		MaxNetworkRetries: stripe.Int64(cfg.retries),
		LeveledLogger:     logger,
		EnableTelemetry:   stripe.Bool(false),
	})

	return &Client{
		secretKey: secretKey,
		api:       client.New(secretKey, backends),
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: clientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   dialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   tlsHandshakeTimeout,
			ResponseHeaderTimeout: responseHeaderTimeout,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (c *Client) ready() error {
	if c.secretKey == "" {
		return ErrNotConfigured
	}
	return nil
}

// sdkLogger adapts slog to the SDK's printf-style logger.
type sdkLogger struct {
	logger *slog.Logger
}

func (l *sdkLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *sdkLogger) Infof(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l *sdkLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l *sdkLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}
