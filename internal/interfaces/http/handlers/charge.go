package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/bivex/paygate/internal/application/command"
	"github.com/bivex/paygate/internal/application/dto"
	"github.com/bivex/paygate/internal/application/middleware"
	"github.com/bivex/paygate/internal/application/query"
	"github.com/bivex/paygate/internal/interfaces/http/response"
)

// ChargeHandler handles purchase endpoints
type ChargeHandler struct {
	createCmd *command.CreateChargeCommand
	getQuery  *query.GetTransactionQuery
}

// NewChargeHandler creates a new charge handler
func NewChargeHandler(createCmd *command.CreateChargeCommand, getQuery *query.GetTransactionQuery) *ChargeHandler {
	return &ChargeHandler{
		createCmd: createCmd,
		getQuery:  getQuery,
	}
}

// CreateCharge starts a purchase
// @Summary Create a charge
// @Tags charges
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body dto.CreateChargeRequest true "Charge request"
// @Success 200 {object} response.SuccessResponse{data=dto.ChargeResponse}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /v1/charges [post]
func (h *ChargeHandler) CreateCharge(c *gin.Context) {
	var req dto.CreateChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.createCmd.Execute(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, resp)
}

// GetCharge returns the status of one of the caller's transactions
// @Summary Poll charge status
// @Tags charges
// @Produce json
// @Security Bearer
// @Param id path string true "Transaction ID"
// @Success 200 {object} response.SuccessResponse{data=dto.TransactionResponse}
// @Failure 404 {object} response.ErrorResponse
// @Router /v1/charges/{id} [get]
func (h *ChargeHandler) GetCharge(c *gin.Context) {
	resp, err := h.getQuery.Execute(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, resp)
}
