package shared

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrMissingBatchID = errors.New("batch id is required")

// BatchOutcomeEvent is published after a terminal transition has committed
type BatchOutcomeEvent struct {
	BatchID        string          `json:"batch_id"`
	OwnerID        int64           `json:"owner_id"`
	State          BatchState      `json:"state"`
	GatewayStatus  int             `json:"gateway_status"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
	SentCount      int             `json:"sent_count"`
	FailedCount    int             `json:"failed_count"`
	ProcessedAt    time.Time       `json:"processed_at"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// ReconcileRequest asks the reconciler to poll one batch immediately
type ReconcileRequest struct {
	BatchID       string    `json:"batch_id"`
	RequestedBy   string    `json:"requested_by,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	RequestedAt   time.Time `json:"requested_at"`
}

func (r ReconcileRequest) Validate() error {
	if r.BatchID == "" {
		return ErrMissingBatchID
	}
	return nil
}
