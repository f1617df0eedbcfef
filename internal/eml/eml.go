// Package eml extracts proof-relevant header fields from a raw RFC 5322
// message. API providers may return a canonical copy whose headers differ
// from the locally composed ones, so proof records are always derived from
// the bytes that will be exported.
package eml

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"
)

// Metadata holds the header fields the external verifier needs alongside
// the .eml file.
type Metadata struct {
	MessageID  string
	From       string
	DKIMDomain string
}

// Extract parses the headers of a raw message. The DKIM domain is taken from
// the d= tag of the DKIM-Signature header when present, otherwise from the
// From address domain.
func Extract(raw []byte) (*Metadata, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message headers: %w", err)
	}

	meta := &Metadata{
		MessageID: strings.TrimSpace(msg.Header.Get("Message-Id")),
	}

	if from := msg.Header.Get("From"); from != "" {
		if addr, err := mail.ParseAddress(from); err == nil {
			meta.From = addr.Address
		}
	}

	if d := dkimDomain(msg.Header.Get("Dkim-Signature")); d != "" {
		meta.DKIMDomain = d
	} else {
		meta.DKIMDomain = Domain(meta.From)
	}

	return meta, nil
}

// dkimDomain pulls the d= tag out of a DKIM-Signature header value.
func dkimDomain(sig string) string {
	for _, tag := range strings.Split(sig, ";") {
		tag = strings.TrimSpace(tag)
		if v, ok := strings.CutPrefix(tag, "d="); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Domain returns the domain part of an email address, or "" when the
// address has none.
func Domain(email string) string {
	if idx := strings.Index(email, "@"); idx >= 0 {
		return email[idx+1:]
	}
	return ""
}
