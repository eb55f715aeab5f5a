// Package gateway is the HTTP client for the hosted-checkout payment
// processor.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.mercadopago.com"
	DefaultTimeout = 5 * time.Second

	maxResponseBytes = 1 << 20
)

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
}

// Client talks to the processor. It never retries; callers decide.
type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialSource
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

func NewClient(cfg Config, creds CredentialSource, log logrus.FieldLogger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		creds:   creds,
		limiter: limiter,
		log:     log.WithField("component", "gateway"),
	}
}

// CreatePreference opens a hosted-checkout session.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	var pref Preference
	if err := c.do(ctx, "create preference", http.MethodPost, "/checkout/preferences", req.body(), &pref); err != nil {
		return nil, err
	}
	if pref.ID == "" {
		return nil, &APIError{Op: "create preference", StatusCode: http.StatusOK, Message: "response without preference id"}
	}
	return &pref, nil
}

// FetchPayment reads the authoritative state of a payment.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var body paymentBody
	path := "/v1/payments/" + url.PathEscape(paymentID)
	if err := c.do(ctx, "fetch payment", http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	payment := body.toPayment()
	if payment.ID == "" {
		payment.ID = paymentID
	}
	return payment, nil
}

type invalidator interface {
	Invalidate()
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, op)
	}

	token, err := c.creds.AccessToken(ctx)
	if err != nil {
		return errors.Wrap(err, op)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "%s: marshal request", op)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrapf(err, "%s: build request", op)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrapf(err, "%s: read response", op)
	}

	log := c.log.WithFields(logrus.Fields{
		"op":       op,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := parseAPIError(op, resp.StatusCode, raw)
		if resp.StatusCode == http.StatusUnauthorized {
			if inv, ok := c.creds.(invalidator); ok {
				inv.Invalidate()
			}
		}
		log.WithField("code", apiErr.Code).Warn(apiErr.Message)
		return apiErr
	}
	log.Debug("gateway call ok")

	if out == nil {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(raw, out), "%s: decode response", op)
}
