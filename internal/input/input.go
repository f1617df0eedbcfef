// Package input loads and validates the message request, either from a JSON
// file exported by the Farewell UI or from interactive collection.
package input

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"os"
	"strings"

	"github.com/farewell-protocol/farewell-claimer/internal/message"
)

// DefaultSubject is used when the request does not carry one.
const DefaultSubject = "Farewell Message Delivery"

// Request is the read-only batch description driving one run.
type Request struct {
	Recipients    []string
	ContentHash   string
	Message       string
	Subject       string
	PublicMessage string
	SKShare       string
}

// fileRequest mirrors the UI export format. Recipients may be a JSON array
// or a comma-separated string; the hash field accepts both camelCase and
// snake_case spellings.
type fileRequest struct {
	Recipients    json.RawMessage `json:"recipients"`
	ContentHash   string          `json:"contentHash"`
	ContentHashSC string          `json:"content_hash"`
	Message       string          `json:"message"`
	Subject       string          `json:"subject"`
	PublicMessage string          `json:"publicMessage"`
	SKShare       string          `json:"skShare"`
}

// LoadFile reads and validates a request from a JSON file.
// All input errors are reported before any network activity.
func LoadFile(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read message file: %w", err)
	}

	var fr fileRequest
	if err := json.Unmarshal(data, &fr); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}

	recipients, err := parseRecipients(fr.Recipients)
	if err != nil {
		return nil, err
	}

	hash := fr.ContentHash
	if hash == "" {
		hash = fr.ContentHashSC
	}

	req := &Request{
		Recipients:    recipients,
		ContentHash:   hash,
		Message:       fr.Message,
		Subject:       fr.Subject,
		PublicMessage: fr.PublicMessage,
		SKShare:       fr.SKShare,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// parseRecipients accepts either a JSON string ("a@x.com, b@x.com") or a
// JSON array of address strings.
func parseRecipients(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing 'recipients' field")
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var joined string
	if err := json.Unmarshal(raw, &joined); err != nil {
		return nil, fmt.Errorf("'recipients' must be a string or a list of strings")
	}
	return SplitRecipients(joined), nil
}

// SplitRecipients splits a comma-separated address list, dropping empties.
func SplitRecipients(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Validate normalizes the request in place and reports the first problem
// found: no recipients, an unparseable address, a missing message, or a
// malformed content hash.
func (r *Request) Validate() error {
	if len(r.Recipients) == 0 {
		return fmt.Errorf("no recipients specified")
	}
	for i, rcpt := range r.Recipients {
		rcpt = strings.TrimSpace(rcpt)
		addr, err := mail.ParseAddress(rcpt)
		if err != nil {
			return fmt.Errorf("invalid recipient address %q: %w", rcpt, err)
		}
		r.Recipients[i] = addr.Address
	}

	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("missing 'message' field")
	}

	hash, err := message.NormalizeHash(r.ContentHash)
	if err != nil {
		return fmt.Errorf("invalid content hash: %w", err)
	}
	r.ContentHash = hash

	if r.Subject == "" {
		r.Subject = DefaultSubject
	}
	return nil
}
