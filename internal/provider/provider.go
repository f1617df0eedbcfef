// Package provider defines the interface for email delivery backends and the
// error taxonomy the pipeline branches on.
package provider

import (
	"context"
	"fmt"

	"github.com/farewell-protocol/farewell-claimer/internal/message"
)

// Result describes one successfully transmitted message.
type Result struct {
	// Raw is the exact message as transmitted. For SMTP this is the locally
	// composed document; API providers may substitute the server's canonical
	// copy, whose headers can differ byte-for-byte.
	Raw []byte

	// MessageID is the provider-side identifier when one exists (e.g. the
	// Gmail message id). Empty for plain SMTP.
	MessageID string
}

// Provider is the interface that email delivery backends must implement.
// A provider owns at most one session per run: it is created once, reused
// across recipients, and closed on exit.
type Provider interface {
	// Verify checks connectivity and credentials without sending anything.
	// A credential problem is reported as an *AuthError.
	Verify(ctx context.Context) error

	// Send delivers a composed message to its single recipient and returns
	// the raw transmitted bytes. Failures other than *AuthError are scoped
	// to the recipient and must not poison the session for later sends.
	Send(ctx context.Context, msg *message.Message) (*Result, error)

	// Name returns the human-readable name of this provider.
	Name() string

	// Close releases the provider's session, if any.
	Close() error
}

// AuthError reports bad or expired credentials. The run aborts: retrying
// the remaining recipients with the same credentials cannot succeed.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// SendError reports a recipient-scoped transport failure (rejection,
// timeout, rate limit). The run continues with the next recipient.
type SendError struct {
	Provider  string
	Recipient string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s failed to send to %s: %v", e.Provider, e.Recipient, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
