package handler

import (
	"time"

	"github.com/sendbulk-reconciler/internal/domain/audit"
	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/domain/credit"
	"github.com/shopspring/decimal"
)

// RegisterBatchRequest registers a batch the gateway has accepted.
// reserved_credit may be a JSON number or a decimal string.
type RegisterBatchRequest struct {
	BatchID            string          `json:"batch_id" binding:"required,max=64"`
	OwnerID            int64           `json:"owner_id" binding:"required,gt=0"`
	Title              string          `json:"title" binding:"required"`
	Message            string          `json:"message" binding:"required"`
	Recipients         []string        `json:"recipients" binding:"required,min=1"`
	ReservedCredit     decimal.Decimal `json:"reserved_credit"`
	NotificationTarget string          `json:"notification_target" binding:"max=32"`
}

// ReconcileBatchRequest is the optional body of a manual reconcile
type ReconcileBatchRequest struct {
	RequestedBy string `json:"requested_by"`
}

// CreditAdjustmentRequest posts a signed manual adjustment
type CreditAdjustmentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" binding:"required"`
}

type BatchResponse struct {
	BatchID            string  `json:"batch_id"`
	OwnerID            int64   `json:"owner_id"`
	State              string  `json:"state"`
	Title              string  `json:"title"`
	RecipientCount     int     `json:"recipient_count"`
	ReservedCredit     string  `json:"reserved_credit"`
	NotificationTarget string  `json:"notification_target,omitempty"`
	GatewayStatusCode  *int    `json:"gateway_status_code,omitempty"`
	ResultMessage      *string `json:"result_message,omitempty"`
	SentCount          int     `json:"sent_count"`
	FailedCount        int     `json:"failed_count"`
	SubmittedAt        string  `json:"submitted_at"`
	ProcessedAt        string  `json:"processed_at,omitempty"`
	UpdatedAt          string  `json:"updated_at"`
}

type PollResponse struct {
	StatusCode  int    `json:"status_code"`
	SentCount   int    `json:"sent_count"`
	FailedCount int    `json:"failed_count"`
	CompletedAt string `json:"completed_at,omitempty"`
	Diagnostic  string `json:"diagnostic,omitempty"`
	Outcome     string `json:"outcome"`
	PolledAt    string `json:"polled_at"`
}

type ReconcileAcceptedResponse struct {
	BatchID     string `json:"batch_id"`
	Status      string `json:"status"`
	RequestedAt string `json:"requested_at"`
}

type BalanceResponse struct {
	UserID  int64  `json:"user_id"`
	Balance string `json:"balance"`
}

type EntryResponse struct {
	ID               string  `json:"id"`
	UserID           int64   `json:"user_id"`
	Amount           string  `json:"amount"`
	ResultingBalance string  `json:"resulting_balance"`
	Description      string  `json:"description"`
	Kind             string  `json:"kind"`
	MessageCount     int     `json:"message_count"`
	BatchID          *string `json:"batch_id,omitempty"`
	Status           string  `json:"status"`
	CreatedAt        string  `json:"created_at"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

type BatchListParams struct {
	PaginationParams
	State string `form:"state"`
}

func mapBatchToResponse(b *batch.Batch) BatchResponse {
	response := BatchResponse{
		BatchID:            b.BatchID,
		OwnerID:            b.OwnerID,
		State:              string(b.State),
		Title:              b.Title,
		RecipientCount:     b.RecipientCount,
		ReservedCredit:     b.ReservedCredit.String(),
		NotificationTarget: b.NotificationTarget,
		GatewayStatusCode:  b.GatewayStatusCode,
		ResultMessage:      b.ResultMessage,
		SentCount:          b.SentCount,
		FailedCount:        b.FailedCount,
		SubmittedAt:        b.SubmittedAt.Format(time.RFC3339),
		UpdatedAt:          b.UpdatedAt.Format(time.RFC3339),
	}
	if b.ProcessedAt != nil {
		response.ProcessedAt = b.ProcessedAt.Format(time.RFC3339)
	}
	return response
}

func mapPollToResponse(r *audit.PollRecord) PollResponse {
	response := PollResponse{
		StatusCode:  r.StatusCode,
		SentCount:   r.SentCount,
		FailedCount: r.FailedCount,
		Diagnostic:  r.Diagnostic,
		Outcome:     string(r.Outcome),
		PolledAt:    r.PolledAt.Format(time.RFC3339),
	}
	if r.CompletedAt != nil {
		response.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return response
}

func mapEntryToResponse(e *credit.Entry) EntryResponse {
	return EntryResponse{
		ID:               e.ID.String(),
		UserID:           e.UserID,
		Amount:           e.Amount.String(),
		ResultingBalance: e.ResultingBalance.String(),
		Description:      e.Description,
		Kind:             string(e.Kind),
		MessageCount:     e.MessageCount,
		BatchID:          e.BatchID,
		Status:           string(e.Status),
		CreatedAt:        e.CreatedAt.Format(time.RFC3339),
	}
}
