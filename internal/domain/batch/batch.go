package batch

import (
	"errors"
	"time"

	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyBatchID          = errors.New("batch id cannot be empty")
	ErrInvalidOwner          = errors.New("owner id must be positive")
	ErrNegativeReservation   = errors.New("reserved credit cannot be negative")
	ErrInvalidRecipientCount = errors.New("recipient count must be positive")
	ErrReservationPrecision  = errors.New("reserved credit allows at most 2 decimal places")
)

// Batch tracks one bulk submission from reservation to its terminal outcome.
// ReservedCredit is fixed at creation; credit effects live in the ledger.
type Batch struct {
	BatchID               string            `json:"batch_id"`
	OwnerID               int64             `json:"owner_id"`
	ReservedCredit        decimal.Decimal   `json:"reserved_credit"`
	RecipientCount        int               `json:"recipient_count"`
	Title                 string            `json:"title"`
	MessageBody           string            `json:"message_body"`
	NotificationTarget    string            `json:"notification_target"`
	SubmittedAt           time.Time         `json:"submitted_at"`
	ProcessedAt           *time.Time        `json:"processed_at,omitempty"`
	State                 shared.BatchState `json:"lifecycle_state"`
	GatewayStatusCode     *int              `json:"gateway_status_code,omitempty"`
	ResultMessage         *string           `json:"result_message,omitempty"`
	LastRawGatewayPayload *string           `json:"last_raw_gateway_payload,omitempty"`
	SentCount             int               `json:"sent_count"`
	FailedCount           int               `json:"failed_count"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// NewBatch creates a pending batch for an already submitted gateway id.
func NewBatch(batchID string, ownerID int64, reservedCredit decimal.Decimal, recipientCount int, title, messageBody, notificationTarget string) (*Batch, error) {
	if batchID == "" {
		return nil, ErrEmptyBatchID
	}
	if ownerID <= 0 {
		return nil, ErrInvalidOwner
	}
	if reservedCredit.IsNegative() {
		return nil, ErrNegativeReservation
	}
	if !shared.FitsCreditScale(reservedCredit) {
		return nil, ErrReservationPrecision
	}
	if recipientCount <= 0 {
		return nil, ErrInvalidRecipientCount
	}

	now := time.Now().UTC()
	return &Batch{
		BatchID:            batchID,
		OwnerID:            ownerID,
		ReservedCredit:     reservedCredit,
		RecipientCount:     recipientCount,
		Title:              title,
		MessageBody:        messageBody,
		NotificationTarget: notificationTarget,
		SubmittedAt:        now,
		State:              shared.BatchStatePending,
		UpdatedAt:          now,
	}, nil
}

func (b *Batch) IsTerminal() bool {
	return b.State.IsTerminal()
}

// Age is how long the batch has been waiting since submission.
func (b *Batch) Age(now time.Time) time.Duration {
	return now.Sub(b.SubmittedAt)
}
