package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sendbulk-reconciler/internal/admin_api/service"
	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/domain/credit"
	"github.com/sendbulk-reconciler/internal/domain/shared"
)

// BatchHandler handles HTTP requests for batch operations
type BatchHandler struct {
	batchService service.BatchService
	logger       *slog.Logger
}

func NewBatchHandler(logger *slog.Logger, batchService service.BatchService) *BatchHandler {
	return &BatchHandler{
		batchService: batchService,
		logger:       logger,
	}
}

// Register reserves the batch's credit and starts tracking it
func (h *BatchHandler) Register(c *gin.Context) {
	var req RegisterBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	b, err := h.batchService.RegisterBatch(c.Request.Context(), service.Registration{
		BatchID:            req.BatchID,
		OwnerID:            req.OwnerID,
		Title:              req.Title,
		Message:            req.Message,
		Recipients:         req.Recipients,
		ReservedCredit:     req.ReservedCredit,
		NotificationTarget: req.NotificationTarget,
	})
	if err != nil {
		var validationErr *service.ValidationError
		switch {
		case errors.As(err, &validationErr):
			RespondValidationFailed(c, validationErr.Error())
		case errors.Is(err, credit.ErrInsufficientCredit):
			h.logger.Warn("Batch rejected for insufficient credit", "batch_id", req.BatchID, "owner_id", req.OwnerID)
			RespondInsufficientCredit(c)
		case errors.Is(err, batch.ErrDuplicateBatch{}):
			RespondConflict(c, "Batch "+req.BatchID+" is already registered")
		default:
			h.logger.Error("Failed to register batch", "batch_id", req.BatchID, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapBatchToResponse(b))
}

// List returns a page of batches, optionally filtered by state
func (h *BatchHandler) List(c *gin.Context) {
	var params BatchListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters")
		return
	}

	state := shared.BatchState(params.State)
	if state != "" && !state.IsValid() {
		RespondBadRequest(c, "Unknown state "+params.State)
		return
	}

	batches, total, err := h.batchService.ListBatches(c.Request.Context(), state, params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list batches", "state", state, "error", err)
		RespondInternalError(c)
		return
	}

	response := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		response = append(response, mapBatchToResponse(b))
	}
	RespondWithPaginatedData(c, response, params.Page, params.PerPage, total)
}

func (h *BatchHandler) GetByID(c *gin.Context) {
	batchID := c.Param("batchId")

	b, err := h.batchService.GetBatch(c.Request.Context(), batchID)
	if err != nil {
		if errors.Is(err, batch.ErrBatchNotFound{}) {
			RespondNotFound(c, "Batch not found")
			return
		}
		h.logger.Error("Failed to get batch", "batch_id", batchID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapBatchToResponse(b))
}

// ListPolls returns the archived gateway responses of a batch
func (h *BatchHandler) ListPolls(c *gin.Context) {
	batchID := c.Param("batchId")

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	records, total, err := h.batchService.ListPolls(c.Request.Context(), batchID, pagination.Page, pagination.PerPage)
	if err != nil {
		if errors.Is(err, batch.ErrBatchNotFound{}) {
			RespondNotFound(c, "Batch not found")
			return
		}
		h.logger.Error("Failed to list polls", "batch_id", batchID, "error", err)
		RespondInternalError(c)
		return
	}

	response := make([]PollResponse, 0, len(records))
	for _, r := range records {
		response = append(response, mapPollToResponse(r))
	}
	RespondWithPaginatedData(c, response, pagination.Page, pagination.PerPage, total)
}

// Reconcile queues an immediate reconciliation of a pending batch
func (h *BatchHandler) Reconcile(c *gin.Context) {
	batchID := c.Param("batchId")

	var req ReconcileBatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}
	if req.RequestedBy == "" {
		req.RequestedBy = "admin-api"
	}

	request, err := h.batchService.RequestReconcile(c.Request.Context(), batchID, req.RequestedBy)
	if err != nil {
		switch {
		case errors.Is(err, batch.ErrBatchNotFound{}):
			RespondNotFound(c, "Batch not found")
		case errors.Is(err, batch.ErrBatchAlreadyTerminal{}):
			RespondConflict(c, "Batch "+batchID+" is already in a terminal state")
		default:
			h.logger.Error("Failed to request reconcile", "batch_id", batchID, "error", err)
			RespondServiceUnavailable(c, "Reconcile request could not be queued")
		}
		return
	}

	RespondWithData(c, http.StatusAccepted, ReconcileAcceptedResponse{
		BatchID:     request.BatchID,
		Status:      "QUEUED",
		RequestedAt: request.RequestedAt.Format(time.RFC3339),
	})
}
