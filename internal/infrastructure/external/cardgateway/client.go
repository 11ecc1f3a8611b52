package cardgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bivex/paygate/internal/domain/entity"
	domainErrors "github.com/bivex/paygate/internal/domain/errors"
	"github.com/bivex/paygate/internal/domain/service"
	"github.com/bivex/paygate/internal/domain/signature"
)

const (
	// DefaultBaseURL is the production acquiring API
	DefaultBaseURL = "https://securepay.tinkoff.ru"
	// DefaultTimeout for HTTP requests
	DefaultTimeout = 30 * time.Second
)

// Config represents the acquiring terminal configuration
type Config struct {
	BaseURL         string
	TerminalKey     string
	Password        string
	NotificationURL string
	Timeout         time.Duration
}

// Client talks to the card acquiring API v2
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new acquiring client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// flexString accepts both JSON strings and numbers. The API returns PaymentId
// as either depending on the method.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type apiResponse struct {
	Success    bool       `json:"Success"`
	ErrorCode  string     `json:"ErrorCode"`
	Message    string     `json:"Message"`
	Details    string     `json:"Details"`
	PaymentID  flexString `json:"PaymentId"`
	PaymentURL string     `json:"PaymentURL"`
	Status     string     `json:"Status"`
	RebillID   flexString `json:"RebillId"`
}

// Init opens a hosted payment page for the order
func (c *Client) Init(ctx context.Context, req service.CardInitRequest) (*service.CardPayment, error) {
	body := map[string]any{
		"TerminalKey": c.config.TerminalKey,
		"Amount":      req.AmountMinor,
		"OrderId":     req.OrderID,
		"Description": req.Description,
	}
	if req.CustomerKey != "" {
		body["CustomerKey"] = req.CustomerKey
	}
	if req.Recurrent {
		body["Recurrent"] = "Y"
	}
	if c.config.NotificationURL != "" {
		body["NotificationURL"] = c.config.NotificationURL
	}
	if req.SuccessURL != "" {
		body["SuccessURL"] = req.SuccessURL
	}
	if req.FailURL != "" {
		body["FailURL"] = req.FailURL
	}
	if len(req.Data) > 0 {
		body["DATA"] = req.Data
	}

	resp, err := c.call(ctx, "Init", body)
	if err != nil {
		return nil, err
	}
	return toPayment(resp), nil
}

// ChargeRecurring charges a saved card: a payment is opened with Init and then
// confirmed with Charge against the rebill id.
func (c *Client) ChargeRecurring(ctx context.Context, req service.CardRecurringRequest) (*service.CardPayment, error) {
	initResp, err := c.call(ctx, "Init", map[string]any{
		"TerminalKey":     c.config.TerminalKey,
		"Amount":          req.AmountMinor,
		"OrderId":         req.OrderID,
		"Description":     req.Description,
		"CustomerKey":     req.CustomerKey,
		"NotificationURL": c.config.NotificationURL,
	})
	if err != nil {
		return nil, err
	}

	chargeResp, err := c.call(ctx, "Charge", map[string]any{
		"TerminalKey": c.config.TerminalKey,
		"PaymentId":   string(initResp.PaymentID),
		"RebillId":    req.RebillID,
	})
	if err != nil {
		return nil, err
	}

	payment := toPayment(chargeResp)
	if payment.PaymentID == "" {
		payment.PaymentID = string(initResp.PaymentID)
	}
	return payment, nil
}

// Cancel reverses or refunds a payment
func (c *Client) Cancel(ctx context.Context, paymentID string, amountMinor int64) (*service.CardPayment, error) {
	body := map[string]any{
		"TerminalKey": c.config.TerminalKey,
		"PaymentId":   paymentID,
	}
	if amountMinor > 0 {
		body["Amount"] = amountMinor
	}

	resp, err := c.call(ctx, "Cancel", body)
	if err != nil {
		return nil, err
	}
	return toPayment(resp), nil
}

func toPayment(resp *apiResponse) *service.CardPayment {
	return &service.CardPayment{
		PaymentID:  string(resp.PaymentID),
		PaymentURL: resp.PaymentURL,
		Status:     resp.Status,
		RebillID:   string(resp.RebillID),
	}
}

// call signs body, posts it to the method endpoint and decodes the reply.
// Transport failures wrap ErrExternalServiceUnavailable; business rejections
// come back as GatewayError with the provider's message.
func (c *Client) call(ctx context.Context, method string, body map[string]any) (*apiResponse, error) {
	body[signature.TokenKey] = signature.Sign(signature.FromMap(body), c.config.Password)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v2/"+method, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("Card gateway request failed",
			zap.String("method", method),
			zap.Error(err),
		)
		return nil, fmt.Errorf("card gateway %s: %w: %v", method, domainErrors.ErrExternalServiceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("card gateway %s: %w: %v", method, domainErrors.ErrExternalServiceUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Card gateway returned error status",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(raw)),
		)
		return nil, fmt.Errorf("card gateway %s returned status %d: %w", method, resp.StatusCode, domainErrors.ErrExternalServiceUnavailable)
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	c.logger.Debug("Card gateway call",
		zap.String("method", method),
		zap.Bool("success", out.Success),
		zap.String("status", out.Status),
		zap.Duration("duration", time.Since(start)),
	)

	if !out.Success || (out.ErrorCode != "" && out.ErrorCode != "0") {
		message := out.Details
		if message == "" {
			message = out.Message
		}
		if message == "" {
			message = "payment rejected"
		}
		return nil, domainErrors.NewGatewayError(string(entity.GatewayCard), out.ErrorCode, message)
	}
	return &out, nil
}

var _ service.CardGateway = (*Client)(nil)

