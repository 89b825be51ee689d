// Package notify holds the delivery channels used for batch outcome
// notifications.
package notify

import "context"

// Sender delivers one text notification to a target.
type Sender interface {
	Name() string
	Send(ctx context.Context, target, text string) error
}
