package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bivex/paygate/internal/application/dto"
	"github.com/bivex/paygate/internal/domain/entity"
	"github.com/bivex/paygate/internal/domain/service"
	"github.com/bivex/paygate/internal/infrastructure/logging"
	"github.com/bivex/paygate/internal/infrastructure/metrics"
)

const (
	// telegramSecretHeader carries the secret set with setWebhook
	telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
	maxWebhookBody       = 1 << 20
)

// WebhookHandler receives gateway notifications. Every delivery is
// acknowledged with 200, whatever the reconciliation outcome.
type WebhookHandler struct {
	reconciler *service.ReconcilerService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(reconciler *service.ReconcilerService) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// CardWebhook handles card gateway notifications
// @Summary Card gateway notification
// @Tags webhooks
// @Accept json
// @Produce plain
// @Success 200 {string} string "OK"
// @Router /webhook/card [post]
func (h *WebhookHandler) CardWebhook(c *gin.Context) {
	log := logging.GetLogger(c)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		log.Warn("Failed to read card notification", zap.Error(err))
		c.String(http.StatusOK, "OK")
		return
	}

	var payload map[string]any
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		log.Warn("Malformed card notification", zap.Error(err))
		metrics.RecordWebhook(string(entity.GatewayCard), "malformed")
		c.String(http.StatusOK, "OK")
		return
	}

	outcome := h.reconciler.HandleCardNotification(c.Request.Context(), payload)
	log.Debug("Card notification processed", zap.String("outcome", string(outcome)))

	c.String(http.StatusOK, "OK")
}

// TelegramWebhook handles bot updates carrying payment events
// @Summary Chat platform bot update
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool
// @Router /webhook/telegram [post]
func (h *WebhookHandler) TelegramWebhook(c *gin.Context) {
	log := logging.GetLogger(c)

	var update dto.TelegramUpdate
	if err := json.NewDecoder(io.LimitReader(c.Request.Body, maxWebhookBody)).Decode(&update); err != nil {
		log.Warn("Malformed bot update", zap.Error(err))
		metrics.RecordWebhook(string(entity.GatewayInChat), "malformed")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	outcome := h.reconciler.HandleInChatUpdate(c.Request.Context(), c.GetHeader(telegramSecretHeader), update.ToDomain())
	log.Debug("Bot update processed",
		zap.Int64("update_id", update.UpdateID),
		zap.String("outcome", string(outcome)),
	)

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
