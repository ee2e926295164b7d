// Package provider is the delivery-provider adapter: a uniform send surface
// over SMS and WhatsApp against a Twilio-compatible messaging REST API, plus
// webhook signature verification.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unibox/config"
	"unibox/internal/models"
	"unibox/internal/utils"
)

const whatsappPrefix = "whatsapp:"

type SendResult struct {
	ProviderID     string
	ProviderStatus string
}

// Sender is the slice of the adapter the dispatch and drain paths need.
type Sender interface {
	Send(ctx context.Context, channel, to, body string, media []models.Media) (*SendResult, error)
}

type Client struct {
	httpClient *http.Client
	accountSID string
	authToken  string
	smsFrom    string
	waFrom     string
	baseURL    string
	verified   map[string]struct{}
}

// NewClient builds the adapter once at process start; it is injected into
// the dispatch, ingestion and drain paths rather than read ambiently.
func NewClient(cfg *config.ProviderConfig) *Client {
	verified := make(map[string]struct{}, len(cfg.VerifiedNumbers))
	for _, n := range cfg.VerifiedNumbers {
		verified[strings.TrimPrefix(n, whatsappPrefix)] = struct{}{}
	}

	return &Client{
		httpClient: newHTTPClient(30 * time.Second),
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		smsFrom:    cfg.SMSFrom,
		waFrom:     cfg.WAFrom,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		verified:   verified,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// ensureTrialAllowed rejects recipients outside the configured allow-list.
// An empty list means the account is not in trial mode.
func (c *Client) ensureTrialAllowed(to string) error {
	if len(c.verified) == 0 {
		return nil
	}
	if _, ok := c.verified[strings.TrimPrefix(to, whatsappPrefix)]; !ok {
		return fmt.Errorf("%w: %q", models.ErrTrialGuardBlocked, to)
	}
	return nil
}

// Send dispatches one message. WhatsApp addresses are normalized to the
// channel-prefixed form; SMS addresses are passed through as-is.
func (c *Client) Send(ctx context.Context, channel, to, body string, media []models.Media) (*SendResult, error) {
	from := c.smsFrom
	if channel == models.ChannelWhatsApp {
		if !strings.HasPrefix(to, whatsappPrefix) {
			to = whatsappPrefix + to
		}
		from = c.waFrom
		if !strings.HasPrefix(from, whatsappPrefix) {
			from = whatsappPrefix + from
		}
	}

	if err := c.ensureTrialAllowed(to); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)
	for _, m := range media {
		form.Add("MediaUrl", m.URL)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	resp, err := doWithRetry(ctx, c.httpClient, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
			strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(c.accountSID, c.authToken)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", models.ErrProviderRejected, providerErrorMessage(raw))
	default:
		return nil, fmt.Errorf("%w: HTTP %d", models.ErrProviderUnavailable, resp.StatusCode)
	}

	var parsed struct {
		Sid    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Sid == "" {
		return nil, fmt.Errorf("%w: unexpected response body", models.ErrProviderUnavailable)
	}

	utils.LogDebug("provider accepted message sid=%s status=%s", parsed.Sid, parsed.Status)
	return &SendResult{ProviderID: parsed.Sid, ProviderStatus: parsed.Status}, nil
}

func providerErrorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return string(raw)
}
