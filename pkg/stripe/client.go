// Package stripe is a small REST client for the Stripe endpoints Lookout uses
// plus webhook signature verification.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/lookout-hq/lookout/pkg/logging"
	"github.com/lookout-hq/lookout/pkg/retry"
)

// DefaultBaseURL is the Stripe API root.
const DefaultBaseURL = "https://api.stripe.com"

// ErrNotConfigured is returned when no secret key is set.
var ErrNotConfigured = errors.New("stripe secret key not configured")

// APIError is an error response from the Stripe API.
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Param      string `json:"param"`
}

func (e *APIError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("stripe: HTTP %d", e.StatusCode))
	if e.Type != "" {
		parts = append(parts, e.Type)
	}
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, ": ")
}

// IsRetryable implements retry.RetryableError. Rate limits, lock timeouts
// and server errors are transient; everything else is a caller error.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError ||
		e.Code == "lock_timeout"
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

// Config holds the Stripe client configuration.
type Config struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
	Retry     *retry.Config
}

// Client calls the Stripe REST API with form-encoded requests.
type Client struct {
	http   *resty.Client
	retry  *retry.Config
	logger *zap.Logger
}

// NewClient creates a Stripe client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.APIConfig()
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetAuthToken(cfg.SecretKey).
		SetTimeout(timeout)

	return &Client{
		http:   httpClient,
		retry:  retryCfg,
		logger: logger.Named("stripe"),
	}, nil
}

// CustomerParams are the fields set when creating a customer.
type CustomerParams struct {
	Email    string
	Name     string
	Metadata map[string]string
}

// CreateCustomer creates a customer. idempotencyKey makes retries safe.
func (c *Client) CreateCustomer(ctx context.Context, params CustomerParams, idempotencyKey string) (*Customer, error) {
	form := url.Values{}
	if params.Email != "" {
		form.Set("email", params.Email)
	}
	if params.Name != "" {
		form.Set("name", params.Name)
	}
	setMetadata(form, "metadata", params.Metadata)

	var customer Customer
	if err := c.do(ctx, http.MethodPost, "/v1/customers", form, idempotencyKey, &customer); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return &customer, nil
}

// CheckoutSessionParams describe a subscription checkout.
type CheckoutSessionParams struct {
	CustomerID               string
	PriceID                  string
	Quantity                 int
	SuccessURL               string
	CancelURL                string
	PaymentMethodTypes       []string
	BillingAddressCollection string
	Metadata                 map[string]string
	SubscriptionDataMetadata map[string]string
}

// CreateCheckoutSession creates a subscription-mode Checkout Session.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams, idempotencyKey string) (*CheckoutSession, error) {
	quantity := params.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("customer", params.CustomerID)
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", fmt.Sprintf("%d", quantity))
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	for i, t := range params.PaymentMethodTypes {
		form.Set(fmt.Sprintf("payment_method_types[%d]", i), t)
	}
	if params.BillingAddressCollection != "" {
		form.Set("billing_address_collection", params.BillingAddressCollection)
	}
	setMetadata(form, "metadata", params.Metadata)
	setMetadata(form, "subscription_data[metadata]", params.SubscriptionDataMetadata)

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, idempotencyKey, &session); err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &session, nil
}

// GetSubscription retrieves a subscription by id.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var sub Subscription
	if err := c.do(ctx, http.MethodGet, "/v1/subscriptions/"+url.PathEscape(subscriptionID), nil, "", &sub); err != nil {
		return nil, fmt.Errorf("retrieve subscription %s: %w", subscriptionID, err)
	}
	return &sub, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, idempotencyKey string, out any) error {
	attempt := 0
	_, err := retry.DoIfRetryableWithResult(ctx, c.retry, func() (struct{}, error) {
		attempt++
		var envelope errorEnvelope

		req := c.http.R().
			SetContext(ctx).
			SetResult(out).
			SetError(&envelope)
		if form != nil {
			req.SetFormDataFromValues(form)
		}
		if idempotencyKey != "" {
			req.SetHeader("Idempotency-Key", idempotencyKey)
		}

		resp, err := req.Execute(method, path)
		if err != nil {
			c.logger.Warn("Stripe request failed",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("attempt", attempt),
				logging.SafeError(err))
			return struct{}{}, err
		}

		if resp.IsError() {
			apiErr := envelope.Error
			apiErr.StatusCode = resp.StatusCode()
			c.logger.Warn("Stripe returned an error",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("status", apiErr.StatusCode),
				zap.String("type", apiErr.Type),
				zap.String("code", apiErr.Code),
				zap.Int("attempt", attempt))
			return struct{}{}, &apiErr
		}
		return struct{}{}, nil
	})
	return err
}

func setMetadata(form url.Values, prefix string, metadata map[string]string) {
	for k, v := range metadata {
		form.Set(prefix+"["+k+"]", v)
	}
}
