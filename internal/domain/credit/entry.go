package credit

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sendbulk-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var (
	ErrZeroAmount         = errors.New("credit delta must not be zero")
	ErrInvalidUserID      = errors.New("user id must be positive")
	ErrEmptyDescription   = errors.New("description cannot be empty")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrAmountPrecision    = errors.New("credit amounts allow at most 2 decimal places")
)

// Entry is one immutable balance change of a user's SMS credit
type Entry struct {
	ID               uuid.UUID          `json:"id"`
	UserID           int64              `json:"user_id"`
	Amount           decimal.Decimal    `json:"amount"`
	ResultingBalance decimal.Decimal    `json:"resulting_balance"`
	Description      string             `json:"description"`
	Kind             shared.EntryKind   `json:"kind"`
	MessageCount     int                `json:"message_count"`
	BatchID          *string            `json:"batch_id,omitempty"`
	Status           shared.EntryStatus `json:"status"`
	CreatedAt        time.Time          `json:"created_at"`
}

// NewEntry builds the entry that moves a user from previous to previous+amount.
func NewEntry(previous decimal.Decimal, d Delta) (*Entry, error) {
	if d.UserID <= 0 {
		return nil, ErrInvalidUserID
	}
	if d.Amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if !shared.FitsCreditScale(d.Amount) {
		return nil, ErrAmountPrecision
	}
	if d.Description == "" {
		return nil, ErrEmptyDescription
	}

	kind := d.Kind
	if kind == "" {
		kind = shared.EntryKindAdjustment
	}

	var batchID *string
	if d.BatchID != "" {
		id := d.BatchID
		batchID = &id
	}

	return &Entry{
		ID:               uuid.New(),
		UserID:           d.UserID,
		Amount:           d.Amount,
		ResultingBalance: previous.Add(d.Amount),
		Description:      d.Description,
		Kind:             kind,
		MessageCount:     d.MessageCount,
		BatchID:          batchID,
		Status:           shared.EntryStatusSuccess,
		CreatedAt:        time.Now().UTC(), // replaced by the database clock on Append
	}, nil
}

// RefundDescription is the audit text of a refunded reservation.
func RefundDescription(messageCount int) string {
	return fmt.Sprintf("refund - bulk send not approved - count: %d", messageCount)
}

// ReservationDescription is the audit text of a submission-time debit.
func ReservationDescription(messageCount int) string {
	return fmt.Sprintf("bulk send reservation - count: %d", messageCount)
}
