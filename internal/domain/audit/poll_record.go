package audit

import (
	"time"

	"github.com/sendbulk-reconciler/internal/domain/batch"
	"github.com/sendbulk-reconciler/internal/domain/shared"
)

// PollRecord is the archived result of one gateway status poll
type PollRecord struct {
	BatchID     string                  `json:"batch_id" bson:"batch_id"`
	StatusCode  int                     `json:"status_code" bson:"status_code"`
	SentCount   int                     `json:"sent_count" bson:"sent_count"`
	FailedCount int                     `json:"failed_count" bson:"failed_count"`
	CompletedAt *time.Time              `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	Diagnostic  string                  `json:"diagnostic,omitempty" bson:"diagnostic,omitempty"`
	Payload     string                  `json:"payload,omitempty" bson:"payload,omitempty"`
	Outcome     shared.ReconcileOutcome `json:"outcome" bson:"outcome"`
	PolledAt    time.Time               `json:"polled_at" bson:"polled_at"`
}

func NewPollRecord(batchID string, status *batch.GatewayStatus, outcome shared.ReconcileOutcome) *PollRecord {
	return &PollRecord{
		BatchID:     batchID,
		StatusCode:  status.RawStatusCode,
		SentCount:   status.SentCount,
		FailedCount: status.FailedCount,
		CompletedAt: status.CompletedAt,
		Diagnostic:  status.Diagnostic,
		Payload:     status.OriginalPayload,
		Outcome:     outcome,
		PolledAt:    time.Now().UTC(),
	}
}
