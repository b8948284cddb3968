// Package notify delivers deal alerts by SMS.
package notify

import (
	"context"
	"fmt"
)

// MaxBodyLength is the provider's hard limit on an SMS body.
const MaxBodyLength = 1600

// ValidationError reports a message body that violates the provider's
// bounds. The send is never attempted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid message: %s", e.Reason)
}

// Notifier delivers one text message.
type Notifier interface {
	Send(ctx context.Context, body string) error
}

// ValidateBody enforces the provider's bounds: non-empty and at most
// MaxBodyLength characters.
func ValidateBody(body string) error {
	if len(body) == 0 {
		return &ValidationError{Reason: "message is empty"}
	}
	if len(body) > MaxBodyLength {
		return &ValidationError{Reason: fmt.Sprintf("message is %d characters, max %d", len(body), MaxBodyLength)}
	}
	return nil
}
