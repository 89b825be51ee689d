package shared

// BatchState is the lifecycle state of a bulk SMS batch
type BatchState string

const (
	BatchStatePending           BatchState = "PENDING"
	BatchStateConfirmed         BatchState = "CONFIRMED"
	BatchStateRefundedFailed    BatchState = "REFUNDED_FAILED"
	BatchStateRefundedCancelled BatchState = "REFUNDED_CANCELLED"
)

// IsValid reports whether s is one of the known states
func (s BatchState) IsValid() bool {
	switch s {
	case BatchStatePending, BatchStateConfirmed, BatchStateRefundedFailed, BatchStateRefundedCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition can leave s
func (s BatchState) IsTerminal() bool {
	return s.IsValid() && s != BatchStatePending
}

// Refunds reports whether entering s credits the reservation back
func (s BatchState) Refunds() bool {
	return s == BatchStateRefundedFailed || s == BatchStateRefundedCancelled
}

// EntryKind classifies a credit ledger entry
type EntryKind string

const (
	EntryKindReservation EntryKind = "RESERVATION"
	EntryKindRefund      EntryKind = "REFUND"
	EntryKindAdjustment  EntryKind = "ADJUSTMENT"
)

// EntryStatus records whether the ledger write itself succeeded
type EntryStatus string

const (
	EntryStatusSuccess EntryStatus = "SUCCESS"
	EntryStatusFailed  EntryStatus = "FAILED"
)

// ReconcileOutcome is the result of reconciling one batch once
type ReconcileOutcome string

const (
	OutcomePollFailed      ReconcileOutcome = "poll_failed"
	OutcomeStillPending    ReconcileOutcome = "still_pending"
	OutcomeUnrecognized    ReconcileOutcome = "unrecognized"
	OutcomeConfirmed       ReconcileOutcome = "confirmed"
	OutcomeRefunded        ReconcileOutcome = "refunded"
	OutcomeAlreadyTerminal ReconcileOutcome = "already_terminal"
)
