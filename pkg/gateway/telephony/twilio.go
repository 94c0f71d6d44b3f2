// Package telephony places and ends calls through the Twilio REST API and
// renders the TwiML that connects an answered call to the media stream.
package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/Urzzard/Operador-IA/pkg/core"
)

const (
	DefaultBaseURL = "https://api.twilio.com"
	apiVersion     = "2010-04-01"
	providerName   = "twilio"

	defaultAttempts = 3
	defaultBackoff  = 250 * time.Millisecond
)

// StatusCallbackEvents are the call progress events the status callback subscribes to.
var StatusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

// Terminal call statuses reported by the status callback.
const (
	StatusCompleted = "completed"
	StatusBusy      = "busy"
	StatusNoAnswer  = "no-answer"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// IsTerminalStatus reports whether a status callback means the call is over.
func IsTerminalStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case StatusCompleted, StatusBusy, StatusNoAnswer, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Hanger ends a live call.
type Hanger interface {
	Hangup(ctx context.Context, callSID string) error
}

// Config configures a Client.
type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	// WebhookBaseURL is the public base URL Twilio calls back on.
	WebhookBaseURL string
	BaseURL        string
	HTTPClient     *http.Client
	Attempts       uint64
	Backoff        time.Duration
	Logger         *slog.Logger
}

// Client is a minimal Twilio Voice REST client.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("twilio account sid and auth token are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.WebhookBaseURL = strings.TrimRight(cfg.WebhookBaseURL, "/")
	if cfg.Attempts == 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{cfg: cfg, http: client, logger: cfg.Logger}, nil
}

// Call is the subset of Twilio's call resource the bridge uses.
type Call struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
	From   string `json:"from"`
}

// PlaceCall dials to and points the answered call at the TwiML webhook.
// Only throttling and overload responses are retried, so a call is never
// placed twice.
func (c *Client) PlaceCall(ctx context.Context, to string) (*Call, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, core.NewInvalidRequestError("destination phone is required")
	}
	if c.cfg.FromNumber == "" {
		return nil, core.NewInvalidRequestError("twilio phone number is not configured")
	}
	if c.cfg.WebhookBaseURL == "" {
		return nil, core.NewInvalidRequestError("webhook base url is not configured")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.cfg.FromNumber)
	form.Set("Url", c.cfg.WebhookBaseURL+"/twilio-webhook")
	form.Set("StatusCallback", c.cfg.WebhookBaseURL+"/call-status")
	form.Set("StatusCallbackMethod", http.MethodPost)
	for _, ev := range StatusCallbackEvents {
		form.Add("StatusCallbackEvent", ev)
	}

	var call Call
	err := c.do(ctx, c.accountURL("Calls.json"), form, &call, func(e *core.Error) bool {
		return e.Type == core.ErrRateLimit || e.Type == core.ErrOverloaded
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("call placed", "call_sid", call.SID, "status", call.Status)
	return &call, nil
}

// Hangup ends callSID by moving it to the completed state. It is idempotent
// on Twilio's side, so every retryable failure is retried.
func (c *Client) Hangup(ctx context.Context, callSID string) error {
	callSID = strings.TrimSpace(callSID)
	if callSID == "" {
		return core.NewInvalidRequestError("call sid is required")
	}
	form := url.Values{}
	form.Set("Status", StatusCompleted)

	var call Call
	err := c.do(ctx, c.accountURL("Calls", callSID+".json"), form, &call, (*core.Error).IsRetryable)
	if err != nil {
		return err
	}
	c.logger.Info("call hung up", "call_sid", callSID, "status", call.Status)
	return nil
}

func (c *Client) accountURL(parts ...string) string {
	elems := append([]string{apiVersion, "Accounts", c.cfg.AccountSID}, parts...)
	for i, e := range elems {
		elems[i] = url.PathEscape(e)
	}
	return c.cfg.BaseURL + "/" + strings.Join(elems, "/")
}

func (c *Client) do(ctx context.Context, endpoint string, form url.Values, out any, retryable func(*core.Error) bool) error {
	backoff := retry.WithMaxRetries(c.cfg.Attempts-1, retry.NewExponential(c.cfg.Backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.post(ctx, endpoint, form, out)
		var ce *core.Error
		if errors.As(err, &ce) && retryable(ce) {
			c.logger.Warn("twilio request failed, retrying", "endpoint", endpoint, "err", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &core.Error{Type: core.ErrAPI, Message: err.Error(), Provider: providerName, ProviderError: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return core.NewProviderError(providerName, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.NewHTTPError(providerName, resp.StatusCode, []byte(twilioMessage(body)))
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return core.NewProviderError(providerName, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// twilioMessage extracts the message field of Twilio's error envelope.
func twilioMessage(body []byte) string {
	var env struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		if env.Code != 0 {
			return fmt.Sprintf("%s (code %d)", env.Message, env.Code)
		}
		return env.Message
	}
	return string(body)
}
