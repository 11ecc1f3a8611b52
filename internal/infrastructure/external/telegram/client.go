package telegram

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
	"github.com/bivex/paygate/internal/domain/valueobject"
)

const (
	// DefaultAPIBaseURL is the public Bot API endpoint
	DefaultAPIBaseURL = "https://api.telegram.org"
	// DefaultTimeout for HTTP requests
	DefaultTimeout = 15 * time.Second
)

// Config represents bot credentials
type Config struct {
	APIBaseURL string
	BotToken   string
	Timeout    time.Duration
}

// Client calls the Bot API methods used for in-chat payments and notifications
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Bot API client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.APIBaseURL == "" {
		config.APIBaseURL = DefaultAPIBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	config.APIBaseURL = strings.TrimRight(config.APIBaseURL, "/")

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

type labeledPrice struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// CreateInvoiceLink issues a Stars invoice link
func (c *Client) CreateInvoiceLink(ctx context.Context, req service.InvoiceRequest) (string, error) {
	var link string
	err := c.call(ctx, "createInvoiceLink", map[string]any{
		"title":          req.Title,
		"description":    req.Description,
		"payload":        req.Payload,
		"provider_token": "",
		"currency":       valueobject.CurrencyStars,
		"prices":         []labeledPrice{{Label: req.Title, Amount: req.AmountStars}},
	}, &link)
	if err != nil {
		return "", err
	}
	return link, nil
}

// AnswerPreCheckoutQuery confirms or declines a pending payment
func (c *Client) AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	body := map[string]any{
		"pre_checkout_query_id": queryID,
		"ok":                    ok,
	}
	if !ok {
		body["error_message"] = errorMessage
	}
	return c.call(ctx, "answerPreCheckoutQuery", body, nil)
}

// RefundStarPayment returns Stars to the payer
func (c *Client) RefundStarPayment(ctx context.Context, chatUserID int64, chargeID string) error {
	return c.call(ctx, "refundStarPayment", map[string]any{
		"user_id":                    chatUserID,
		"telegram_payment_charge_id": chargeID,
	}, nil)
}

// SendMessage delivers a plain text message to a chat
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	}, nil)
}

func (c *Client) call(ctx context.Context, method string, body map[string]any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.config.APIBaseURL, c.config.BotToken, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// The URL carries the bot token, so the transport error is not logged verbatim.
		c.logger.Warn("Bot API request failed", zap.String("method", method))
		return fmt.Errorf("bot api %s: %w", method, domainErrors.ErrExternalServiceUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("bot api %s: %w: %v", method, domainErrors.ErrExternalServiceUnavailable, err)
	}

	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode >= 500 {
			return fmt.Errorf("bot api %s returned status %d: %w", method, resp.StatusCode, domainErrors.ErrExternalServiceUnavailable)
		}
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	if !out.OK {
		if resp.StatusCode >= 500 || out.ErrorCode == http.StatusTooManyRequests {
			return fmt.Errorf("bot api %s: %s: %w", method, out.Description, domainErrors.ErrExternalServiceUnavailable)
		}
		c.logger.Warn("Bot API rejected request",
			zap.String("method", method),
			zap.Int("error_code", out.ErrorCode),
			zap.String("description", out.Description),
		)
		return domainErrors.NewGatewayError(string(entity.GatewayInChat), fmt.Sprintf("%d", out.ErrorCode), out.Description)
	}

	if result != nil {
		if err := json.Unmarshal(out.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

var _ service.InChatGateway = (*Client)(nil)
