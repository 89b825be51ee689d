package batch

import (
	"time"

	"github.com/sendbulk-reconciler/internal/domain/shared"
)

// Gateway SendStatus codes reported by GetBulkDetails
const (
	GatewayCodeMissing   = -1
	GatewayCodeQueued    = 0
	GatewayCodeApproving = 1
	GatewayCodeSending   = 2
	GatewayCodeSent      = 3
	GatewayCodeFailed    = 4
	GatewayCodeRejected  = 7 // not approved by the carrier
)

const (
	ResultConfirmed = "bulk send confirmed and delivered"
	ResultFailed    = "bulk send failed - credit refunded"
	ResultRejected  = "bulk send not approved - credit refunded"
)

// GatewayStatus is the parsed outcome of one status poll. It is never stored
// as such; MarkTerminal copies what it needs.
type GatewayStatus struct {
	RawStatusCode   int
	SentCount       int
	FailedCount     int
	CompletedAt     *time.Time
	Diagnostic      string
	OriginalPayload string
}

// Resolution classifies a gateway code.
type Resolution int

const (
	ResolutionInProgress Resolution = iota
	ResolutionUnrecognized
	ResolutionTerminal
)

func (r Resolution) String() string {
	switch r {
	case ResolutionInProgress:
		return "in_progress"
	case ResolutionTerminal:
		return "terminal"
	default:
		return "unrecognized"
	}
}

// ResolveGatewayStatus maps a SendStatus code onto the lifecycle. The state
// is only meaningful when the resolution is ResolutionTerminal.
func ResolveGatewayStatus(code int) (shared.BatchState, Resolution) {
	switch code {
	case GatewayCodeSent:
		return shared.BatchStateConfirmed, ResolutionTerminal
	case GatewayCodeFailed:
		return shared.BatchStateRefundedFailed, ResolutionTerminal
	case GatewayCodeRejected:
		return shared.BatchStateRefundedCancelled, ResolutionTerminal
	case GatewayCodeQueued, GatewayCodeApproving, GatewayCodeSending:
		return shared.BatchStatePending, ResolutionInProgress
	default:
		return shared.BatchStatePending, ResolutionUnrecognized
	}
}

// Transition is the terminal update applied to a pending batch.
type Transition struct {
	State             shared.BatchState
	ResultMessage     string
	GatewayStatusCode int
	SentCount         int
	FailedCount       int
	ProcessedAt       time.Time
	RawPayload        string
}

// RequiresRefund reports whether the reservation goes back to the owner.
func (t Transition) RequiresRefund() bool {
	return t.State.Refunds()
}

// NewTransition derives the terminal transition for status. The transition is
// zero unless res is ResolutionTerminal. ProcessedAt falls back to now when
// the gateway gave no completion time.
func NewTransition(status *GatewayStatus, now time.Time) (t Transition, res Resolution) {
	state, res := ResolveGatewayStatus(status.RawStatusCode)
	if res != ResolutionTerminal {
		return Transition{}, res
	}

	processedAt := now.UTC()
	if status.CompletedAt != nil {
		processedAt = status.CompletedAt.UTC()
	}

	return Transition{
		State:             state,
		ResultMessage:     resultMessage(state),
		GatewayStatusCode: status.RawStatusCode,
		SentCount:         status.SentCount,
		FailedCount:       status.FailedCount,
		ProcessedAt:       processedAt,
		RawPayload:        status.OriginalPayload,
	}, res
}

func resultMessage(state shared.BatchState) string {
	switch state {
	case shared.BatchStateConfirmed:
		return ResultConfirmed
	case shared.BatchStateRefundedFailed:
		return ResultFailed
	default:
		return ResultRejected
	}
}
