package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tradepilot-indicators/internal/flow"
	"github.com/dgnsrekt/tradepilot-indicators/internal/metrics"
	"github.com/dgnsrekt/tradepilot-indicators/internal/scan"
)

// Notifier is the interface for sending signal alerts.
type Notifier interface {
	SendSignal(ctx context.Context, result flow.Result) error
	SendScanSummary(ctx context.Context, result *scan.BatchResult, duration time.Duration) error
}

// Client implements the ntfy notification client.
type Client struct {
	httpClient *http.Client
	config     *Config
	logger     *zap.Logger
}

// NewClient creates a new ntfy client.
func NewClient(cfg *Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
	}
}

// SendSignal sends an alert for one symbol's composite signal. Bearish
// signals go out at high priority regardless of the configured default.
func (c *Client) SendSignal(ctx context.Context, result flow.Result) error {
	if !c.config.Enabled || result.OverallSignal == nil {
		return nil
	}

	title := fmt.Sprintf("%s: %s signal", result.Symbol, *result.OverallSignal)
	message := FormatSignalMessage(result)
	tags := c.config.Tags
	priority := c.config.Priority
	if *result.OverallSignal == "BEARISH" {
		tags += ",small_red_triangle_down"
		priority = "high"
	} else {
		tags += ",small_red_triangle"
	}

	return c.send(ctx, title, message, tags, priority)
}

// SendScanSummary sends a watchlist scan completion notice.
func (c *Client) SendScanSummary(ctx context.Context, result *scan.BatchResult, duration time.Duration) error {
	if !c.config.Enabled {
		return nil
	}

	title := fmt.Sprintf("Scan Complete: %d symbols", result.Total)
	message := FormatScanMessage(result, duration)
	tags := c.config.Tags + ",white_check_mark"

	return c.send(ctx, title, message, tags, c.config.Priority)
}

func (c *Client) send(ctx context.Context, title, message, tags, priority string) error {
	url := fmt.Sprintf("%s/%s", strings.TrimSuffix(c.config.Server, "/"), c.config.Topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Title", title)
	req.Header.Set("Priority", priority)
	req.Header.Set("Tags", tags)

	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		c.logger.Warn("failed to send notification", zap.Error(err))
		return fmt.Errorf("sending notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain response body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		c.logger.Warn("notification failed",
			zap.Int("status", resp.StatusCode),
			zap.String("url", url),
		)
		return fmt.Errorf("notification failed with status: %d", resp.StatusCode)
	}

	metrics.NotificationsSent.WithLabelValues("success").Inc()
	c.logger.Debug("notification sent", zap.String("title", title))
	return nil
}

// NoopNotifier is a no-op implementation for when notifications are disabled.
type NoopNotifier struct{}

// SendSignal is a no-op.
func (n *NoopNotifier) SendSignal(_ context.Context, _ flow.Result) error {
	return nil
}

// SendScanSummary is a no-op.
func (n *NoopNotifier) SendScanSummary(_ context.Context, _ *scan.BatchResult, _ time.Duration) error {
	return nil
}

// New creates the appropriate notifier based on config.
func New(cfg *Config, logger *zap.Logger) Notifier {
	if !cfg.Enabled {
		return &NoopNotifier{}
	}
	return NewClient(cfg, logger)
}
