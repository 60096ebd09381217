package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrPollingDisabled is returned by FetchOutcomes when no status URL is set.
var ErrPollingDisabled = errors.New("automation engine status endpoint not configured")

// StatusError is a non-2xx answer from the engine.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("automation engine answered %d: %s", e.StatusCode, e.Body)
}

type Config struct {
	WebhookURL string
	StatusURL  string
	Token      string
	Timeout    time.Duration
}

// Client talks to the external workflow engine. Dispatch is fire-and-forget:
// a 2xx only means the batch was accepted for processing.
type Client struct {
	webhookURL string
	statusURL  string
	token      string
	http       *http.Client
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		webhookURL: cfg.WebhookURL,
		statusURL:  cfg.StatusURL,
		token:      cfg.Token,
		http:       &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (c *Client) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResponse, error) {
	var out DispatchResponse
	if err := c.post(ctx, c.webhookURL, req, &out); err != nil {
		return nil, fmt.Errorf("dispatch campaign %s: %w", req.CampaignID, err)
	}

	c.logger.Debug("batch accepted by automation engine",
		zap.String("campaign_id", req.CampaignID),
		zap.Int("prospects", len(req.Prospects)),
		zap.String("execution_id", out.ExecutionID))
	return &out, nil
}

// FetchOutcomes asks the engine for verdicts on prospects still awaiting one.
func (c *Client) FetchOutcomes(ctx context.Context, prospectIDs []string) ([]OutcomeEvent, error) {
	if c.statusURL == "" {
		return nil, ErrPollingDisabled
	}
	if len(prospectIDs) == 0 {
		return nil, nil
	}

	var out outcomesResponse
	if err := c.post(ctx, c.statusURL, outcomesRequest{ProspectIDs: prospectIDs}, &out); err != nil {
		return nil, fmt.Errorf("fetch outcomes: %w", err)
	}
	return out.Outcomes, nil
}

func (c *Client) post(ctx context.Context, url string, payload, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("automation engine rejected request",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// n8n style webhooks often answer with plain text; the 2xx is what counts
		c.logger.Debug("non-JSON engine response ignored", zap.Error(err))
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "LinkedinOutreach/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
