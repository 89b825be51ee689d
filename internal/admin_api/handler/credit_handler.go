package handler

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sendbulk-reconciler/internal/admin_api/service"
	"github.com/sendbulk-reconciler/internal/domain/credit"
)

// CreditHandler handles HTTP requests for the credit ledger
type CreditHandler struct {
	creditService service.CreditService
	logger        *slog.Logger
}

func NewCreditHandler(logger *slog.Logger, creditService service.CreditService) *CreditHandler {
	return &CreditHandler{
		creditService: creditService,
		logger:        logger,
	}
}

func (h *CreditHandler) userID(c *gin.Context) (int64, bool) {
	raw := c.Param("userId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		RespondBadRequest(c, "Invalid user ID")
		return 0, false
	}
	return id, true
}

// GetBalance never fails: an unreadable ledger reports a zero balance
func (h *CreditHandler) GetBalance(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	balance := h.creditService.GetBalance(c.Request.Context(), userID)
	RespondOK(c, BalanceResponse{UserID: userID, Balance: balance.String()})
}

// ListEntries returns ledger history, newest first
func (h *CreditHandler) ListEntries(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	entries, total, err := h.creditService.ListEntries(c.Request.Context(), userID, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list ledger entries", "user_id", userID, "error", err)
		RespondInternalError(c)
		return
	}

	response := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, mapEntryToResponse(e))
	}
	RespondWithPaginatedData(c, response, pagination.Page, pagination.PerPage, total)
}

// Adjust posts a manual signed adjustment
func (h *CreditHandler) Adjust(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req CreditAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	entry, err := h.creditService.Adjust(c.Request.Context(), userID, req.Amount, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, credit.ErrZeroAmount), errors.Is(err, credit.ErrAmountPrecision), errors.Is(err, credit.ErrEmptyDescription):
			RespondValidationFailed(c, err.Error())
		case errors.Is(err, credit.ErrInsufficientCredit):
			RespondInsufficientCredit(c)
		default:
			h.logger.Error("Failed to adjust credit", "user_id", userID, "error", err)
			RespondInternalError(c)
		}
		return
	}

	h.logger.Info("Manual credit adjustment", "user_id", userID, "amount", entry.Amount.String(), "entry_id", entry.ID)
	RespondCreated(c, mapEntryToResponse(entry))
}
