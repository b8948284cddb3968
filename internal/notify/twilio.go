package notify

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
)

// ErrNotDelivered reports a message the provider accepted but marked as
// failed or undelivered.
var ErrNotDelivered = errors.New("message not delivered")

// Delivery statuses the provider can report. Anything outside both sets is
// treated as non-failure but is not logged as a success either.
var (
	successStatuses = map[string]bool{
		"sent": true, "delivered": true, "sending": true, "queued": true, "accepted": true,
	}
	failureStatuses = map[string]bool{
		"failed": true, "undelivered": true,
	}
)

// TwilioOptions configures a TwilioClient. Tests point BaseURL at an
// httptest server.
type TwilioOptions struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// TwilioClient sends SMS through the Twilio Messages endpoint.
type TwilioClient struct {
	accountSID string
	authToken  string
	from       string
	to         string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewTwilioClient builds an SMS notifier.
func NewTwilioClient(opts TwilioOptions) *TwilioClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TwilioClient{
		accountSID: opts.AccountSID,
		authToken:  opts.AuthToken,
		from:       opts.From,
		to:         opts.To,
		baseURL:    baseURL,
		httpClient: httpClient,
		log:        log.With("component", "notify"),
	}
}

// Send validates the body and posts it as one SMS. Failed or undelivered
// statuses surface as ErrNotDelivered; transport and API failures surface
// with their cause.
func (c *TwilioClient) Send(ctx context.Context, body string) error {
	if err := ValidateBody(body); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("To", c.to)
	form.Set("From", c.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	respBody, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sms send failed: status=%d message=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var message struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &message); err != nil {
		return err
	}

	switch {
	case successStatuses[message.Status]:
		c.log.Info("message delivered", "sid", message.SID, "status", message.Status)
		return nil
	case failureStatuses[message.Status]:
		c.log.Warn("message not delivered", "sid", message.SID, "status", message.Status)
		return fmt.Errorf("%w: sid=%s status=%s", ErrNotDelivered, message.SID, message.Status)
	default:
		c.log.Debug("message in unknown state", "sid", message.SID, "status", message.Status)
		return nil
	}
}
