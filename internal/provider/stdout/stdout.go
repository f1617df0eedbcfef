// Package stdout implements a dry-run Provider that prints composed messages
// instead of transmitting them. Useful for inspecting output files without
// touching a mail server.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/farewell-protocol/farewell-claimer/internal/message"
	"github.com/farewell-protocol/farewell-claimer/internal/provider"
)

// Provider prints each composed message to its writer.
type Provider struct {
	writer io.Writer
}

// New creates a Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a Provider that writes to the given writer.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// Verify always succeeds; there is nothing to connect to.
func (p *Provider) Verify(_ context.Context) error {
	return nil
}

// Send prints the message in a readable frame and reports the composed bytes
// as the transmitted ones, so export behaves exactly as in a real run.
func (p *Provider) Send(_ context.Context, msg *message.Message) (*provider.Result, error) {
	var b strings.Builder

	b.WriteString("========================================\n")
	fmt.Fprintf(&b, "From: %s <%s>\n", msg.From.Name(), msg.From.Email)
	fmt.Fprintf(&b, "To: %s\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(&b, "Message-ID: %s\n", msg.MessageID)
	b.WriteString("Body:\n")
	b.WriteString(strings.ReplaceAll(msg.TextBody, "\r\n", "\n"))
	b.WriteString("========================================\n")

	if _, err := fmt.Fprint(p.writer, b.String()); err != nil {
		return nil, &provider.SendError{Provider: p.Name(), Recipient: msg.To, Err: err}
	}

	return &provider.Result{Raw: msg.Raw}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}
