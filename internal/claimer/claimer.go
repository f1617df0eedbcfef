// Package claimer drives the per-recipient pipeline: compose, send, export.
// Recipients are processed strictly in order; a transport failure is recorded
// and the batch continues, while an authentication failure aborts the run.
package claimer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/farewell-protocol/farewell-claimer/internal/eml"
	"github.com/farewell-protocol/farewell-claimer/internal/export"
	"github.com/farewell-protocol/farewell-claimer/internal/input"
	"github.com/farewell-protocol/farewell-claimer/internal/message"
	"github.com/farewell-protocol/farewell-claimer/internal/proof"
	"github.com/farewell-protocol/farewell-claimer/internal/provider"
)

// defaultPause is the delay between consecutive sends, matching human-paced
// batches and keeping providers from rate limiting the run.
const defaultPause = 1 * time.Second

// RecipientResult records the outcome for one recipient.
type RecipientResult struct {
	Recipient string
	EMLPath   string
	ProofPath string
	Err       error
}

// OK reports whether the recipient was sent and exported.
func (r RecipientResult) OK() bool { return r.Err == nil }

// Summary aggregates a completed (or aborted) run.
type Summary struct {
	RunDir  string
	Results []RecipientResult
}

// Succeeded returns the results that sent and exported cleanly.
func (s *Summary) Succeeded() []RecipientResult {
	return s.filter(true)
}

// Failed returns the results that did not.
func (s *Summary) Failed() []RecipientResult {
	return s.filter(false)
}

func (s *Summary) filter(ok bool) []RecipientResult {
	var out []RecipientResult
	for _, r := range s.Results {
		if r.OK() == ok {
			out = append(out, r)
		}
	}
	return out
}

// Runner wires the pipeline stages together for one run.
type Runner struct {
	Provider provider.Provider
	Exporter *export.Exporter
	Sender   message.Sender

	// Pause overrides the inter-send delay; negative disables it.
	Pause time.Duration

	// Now stamps proof records; defaults to time.Now.
	Now func() time.Time
}

// Run processes every recipient in order. It returns the summary together
// with a run-level error when the batch was aborted (authentication failure
// or cancelled context); recipient-scoped failures only appear in the
// summary.
func (r *Runner) Run(ctx context.Context, req *input.Request) (*Summary, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	now := r.Now
	if now == nil {
		now = time.Now
	}
	pause := r.Pause
	if pause == 0 {
		pause = defaultPause
	}

	summary := &Summary{}
	total := len(req.Recipients)

	for i, recipient := range req.Recipients {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("run cancelled: %w", err)
		}

		slog.Info("processing recipient",
			"recipient", recipient,
			"position", i+1,
			"total", total,
		)

		result, err := r.processOne(ctx, i+1, recipient, req, now)
		if err != nil {
			var authErr *provider.AuthError
			if errors.As(err, &authErr) {
				summary.Results = append(summary.Results, RecipientResult{Recipient: recipient, Err: err})
				summary.RunDir = r.Exporter.RunDir()
				return summary, err
			}
			slog.Error("recipient failed", "recipient", recipient, "error", err)
			summary.Results = append(summary.Results, RecipientResult{Recipient: recipient, Err: err})
		} else {
			summary.Results = append(summary.Results, *result)
		}

		if i < total-1 && pause > 0 {
			select {
			case <-ctx.Done():
				summary.RunDir = r.Exporter.RunDir()
				return summary, fmt.Errorf("run cancelled: %w", ctx.Err())
			case <-time.After(pause):
			}
		}
	}

	summary.RunDir = r.Exporter.RunDir()
	return summary, nil
}

// processOne runs compose -> send -> export for a single recipient.
func (r *Runner) processOne(ctx context.Context, index int, recipient string, req *input.Request, now func() time.Time) (*RecipientResult, error) {
	msg, err := message.Compose(message.Input{
		Sender:      r.Sender,
		Recipient:   recipient,
		Subject:     req.Subject,
		Body:        req.Message,
		ContentHash: req.ContentHash,
	})
	if err != nil {
		return nil, fmt.Errorf("compose failed: %w", err)
	}

	sent, err := r.Provider.Send(ctx, msg)
	if err != nil {
		return nil, err
	}
	sentAt := now()

	// Proof metadata comes from the exported bytes, which may be the
	// provider's canonical copy rather than the composed one.
	messageID := msg.MessageID
	dkimDomain := eml.Domain(r.Sender.Email)
	if meta, err := eml.Extract(sent.Raw); err == nil {
		if meta.MessageID != "" {
			messageID = meta.MessageID
		}
		if meta.DKIMDomain != "" {
			dkimDomain = meta.DKIMDomain
		}
	} else {
		slog.Warn("could not parse transmitted message headers", "error", err)
	}

	rec := proof.NewRecord(recipient, req.ContentHash, r.Sender.Email, messageID, dkimDomain, sentAt)

	emlPath, proofPath, err := r.Exporter.Export(index, recipient, sent.Raw, rec)
	if err != nil {
		return nil, fmt.Errorf("export failed: %w", err)
	}

	slog.Info("recipient complete",
		"recipient", recipient,
		"eml", emlPath,
		"proof", proofPath,
	)

	return &RecipientResult{
		Recipient: recipient,
		EMLPath:   emlPath,
		ProofPath: proofPath,
	}, nil
}
