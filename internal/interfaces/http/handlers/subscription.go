package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/bivex/paygate/internal/application/command"
	"github.com/bivex/paygate/internal/application/middleware"
	"github.com/bivex/paygate/internal/interfaces/http/response"
)

// SubscriptionHandler handles subscription endpoints
type SubscriptionHandler struct {
	cancelCmd *command.CancelSubscriptionCommand
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(cancelCmd *command.CancelSubscriptionCommand) *SubscriptionHandler {
	return &SubscriptionHandler{cancelCmd: cancelCmd}
}

// CancelSubscription stops renewal of the user's subscription. Access lasts
// until the paid period ends.
// @Summary Cancel subscription
// @Tags subscription
// @Produce json
// @Security Bearer
// @Param id path string true "Subscription ID"
// @Success 200 {object} response.SuccessResponse{data=dto.SubscriptionResponse}
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /v1/subscriptions/{id} [delete]
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	resp, err := h.cancelCmd.Execute(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, resp)
}
