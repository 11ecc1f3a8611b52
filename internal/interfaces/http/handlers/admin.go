package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bivex/paygate/internal/application/command"
	"github.com/bivex/paygate/internal/application/dto"
	"github.com/bivex/paygate/internal/application/middleware"
	"github.com/bivex/paygate/internal/infrastructure/logging"
	"github.com/bivex/paygate/internal/interfaces/http/response"
	"github.com/bivex/paygate/internal/worker/tasks"
)

// SweepEnqueuer queues a billing sweep on the worker
type SweepEnqueuer interface {
	EnqueueSweep(ctx context.Context) (string, error)
}

// AdminHandler handles billing operations endpoints
type AdminHandler struct {
	chargeCmd *command.ChargeSubscriptionCommand
	refundCmd *command.RefundChargeCommand
	sweeps    SweepEnqueuer
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(chargeCmd *command.ChargeSubscriptionCommand, refundCmd *command.RefundChargeCommand, sweeps SweepEnqueuer) *AdminHandler {
	return &AdminHandler{
		chargeCmd: chargeCmd,
		refundCmd: refundCmd,
		sweeps:    sweeps,
	}
}

// ChargeSubscription charges one due subscription now
// @Summary Charge a subscription
// @Tags admin
// @Produce json
// @Security Bearer
// @Param id path string true "Subscription ID"
// @Success 200 {object} response.SuccessResponse{data=service.SubscriptionResult}
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /v1/admin/subscriptions/{id}/charge [post]
func (h *AdminHandler) ChargeSubscription(c *gin.Context) {
	result, err := h.chargeCmd.Execute(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	logging.GetLogger(c).Info("Admin charged subscription",
		zap.String("admin_id", middleware.UserID(c).String()),
		zap.String("subscription_id", c.Param("id")),
		zap.String("outcome", string(result.Outcome)),
	)
	response.OK(c, result)
}

// TriggerSweep queues a billing sweep
// @Summary Run the billing sweep
// @Tags admin
// @Produce json
// @Security Bearer
// @Success 202 {object} response.SuccessResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /v1/admin/billing/sweep [post]
func (h *AdminHandler) TriggerSweep(c *gin.Context) {
	taskID, err := h.sweeps.EnqueueSweep(c.Request.Context())
	if err != nil {
		if errors.Is(err, tasks.ErrSweepAlreadyQueued) {
			response.Error(c, http.StatusConflict, "SWEEP_IN_PROGRESS", "A billing sweep is already queued")
			return
		}
		logging.GetLogger(c).Error("Failed to queue billing sweep", zap.Error(err))
		response.ServiceUnavailable(c, "Task queue unavailable")
		return
	}

	response.Send(c, http.StatusAccepted, gin.H{"task_id": taskID})
}

// RefundTransaction refunds a completed transaction
// @Summary Refund a transaction
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "Transaction ID"
// @Param request body dto.RefundRequest true "Refund reason"
// @Success 200 {object} response.SuccessResponse{data=dto.TransactionResponse}
// @Failure 409 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /v1/admin/transactions/{id}/refund [post]
func (h *AdminHandler) RefundTransaction(c *gin.Context) {
	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.refundCmd.Execute(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	logging.GetLogger(c).Info("Admin refunded transaction",
		zap.String("admin_id", middleware.UserID(c).String()),
		zap.String("transaction_id", resp.ID),
		zap.String("reason", req.Reason),
	)
	response.OK(c, resp)
}
