package notifier

import (
	"fmt"
	"time"

	"github.com/sendbulk-reconciler/internal/domain/batch"
)

const dateLayout = "2006/01/02 15:04"

// OutcomeMessage renders the owner notification for a committed transition.
// now should already be in the gateway's local zone.
func OutcomeMessage(b *batch.Batch, t batch.Transition, now time.Time) string {
	if t.RequiresRefund() {
		return fmt.Sprintf("❌ bulk send failed\nTitle: %s\nCount: %d\nRefunded credit: %s\nDate: %s",
			b.Title, b.RecipientCount, b.ReservedCredit.String(), now.Format(dateLayout))
	}
	return fmt.Sprintf("✅ bulk send succeeded\nTitle: %s\nCount: %d\nDate: %s",
		b.Title, b.RecipientCount, now.Format(dateLayout))
}
