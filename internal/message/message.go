// Package message composes the MIME farewell email with the embedded
// Farewell-Hash marker block.
package message

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// markerPrefix is the literal prefix of the hash marker line. An external
// verifier matches the full line textually, so it must survive transport
// byte-for-byte.
const markerPrefix = "Farewell-Hash: "

const (
	protocolName = "Farewell Protocol"
	protocolURL  = "https://www.iampedro.com/farewell"
)

// Sender identifies the sending account for composition.
type Sender struct {
	Email       string
	DisplayName string
}

// Name returns the display name, falling back to the local part of the address.
func (s Sender) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	if idx := strings.Index(s.Email, "@"); idx > 0 {
		return s.Email[:idx]
	}
	return s.Email
}

// Input carries everything needed to compose one message.
type Input struct {
	Sender      Sender
	Recipient   string
	Subject     string
	Body        string
	ContentHash string
}

// Message is a composed email bound to exactly one recipient. Raw holds the
// serialized MIME document as handed to the transport.
type Message struct {
	From        Sender
	To          string
	Subject     string
	ContentHash string
	MessageID   string
	TextBody    string
	HTMLBody    string
	Raw         []byte
}

// MarkerLine returns the literal marker line embedded in the text body for
// the given content hash.
func MarkerLine(hash string) string {
	return markerPrefix + hash
}

// NormalizeHash validates a content hash and returns it in canonical
// 0x-prefixed lowercase-hex form. An empty or non-hex hash is rejected.
func NormalizeHash(s string) (string, error) {
	h := strings.TrimSpace(s)
	h = strings.TrimPrefix(h, "0x")
	h = strings.TrimPrefix(h, "0X")
	if h == "" {
		return "", fmt.Errorf("content hash is empty")
	}
	if _, err := hex.DecodeString(strings.ToLower(h)); err != nil {
		return "", fmt.Errorf("content hash is not hex: %w", err)
	}
	if len(h)%2 != 0 {
		return "", fmt.Errorf("content hash has odd length %d", len(h))
	}
	return "0x" + strings.ToLower(h), nil
}

// Compose builds the MIME document for a single recipient. The text part
// carries the delimited Farewell-Hash block followed by the protocol
// attribution footer; an HTML alternative mirrors it for human readers.
func Compose(in Input) (*Message, error) {
	hash, err := NormalizeHash(in.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("invalid content hash: %w", err)
	}
	if in.Recipient == "" {
		return nil, fmt.Errorf("recipient is empty")
	}
	if in.Sender.Email == "" {
		return nil, fmt.Errorf("sender email is empty")
	}

	subject := in.Subject
	if subject == "" {
		subject = "Farewell Message Delivery"
	}

	msgID := GenerateMessageID(in.Sender.Email)
	text := textBody(in.Body, hash)
	htmlPart := htmlBody(in.Body, hash)

	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(subject)
	h.SetAddressList("From", []*mail.Address{{
		Name:    in.Sender.Name(),
		Address: in.Sender.Email,
	}})
	h.SetAddressList("To", []*mail.Address{{Address: in.Recipient}})
	h.Set("Message-ID", msgID)

	iw, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	if err := writePart(iw, "text/plain", text); err != nil {
		return nil, err
	}
	if err := writePart(iw, "text/html", htmlPart); err != nil {
		return nil, err
	}
	if err := iw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize message: %w", err)
	}

	return &Message{
		From:        in.Sender,
		To:          in.Recipient,
		Subject:     subject,
		ContentHash: hash,
		MessageID:   msgID,
		TextBody:    text,
		HTMLBody:    htmlPart,
		Raw:         buf.Bytes(),
	}, nil
}

// writePart writes one inline body part. The 8bit transfer encoding keeps the
// part verbatim: quoted-printable would soft-wrap the marker line past 76
// columns and break textual verification.
func writePart(iw *mail.InlineWriter, contentType, body string) error {
	var h mail.InlineHeader
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "8bit")

	w, err := iw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", contentType, err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		return fmt.Errorf("failed to write %s part: %w", contentType, err)
	}
	return w.Close()
}

// textBody assembles the plain-text part: the claimer's message, the delimited
// marker block, and the fixed attribution footer.
func textBody(body, hash string) string {
	var b strings.Builder
	b.WriteString(crlf(body))
	b.WriteString("\r\n\r\n---\r\n")
	b.WriteString(MarkerLine(hash))
	b.WriteString("\r\n---\r\n\r\n")
	fmt.Fprintf(&b, "This message was sent via %s (%s)\r\n", protocolName, protocolURL)
	b.WriteString("A zk-email proof may be generated to verify delivery of this message.\r\n")
	return b.String()
}

// htmlBody assembles the HTML alternative. It never contains the literal
// marker line; the text part is the authoritative carrier.
func htmlBody(body, hash string) string {
	escaped := strings.ReplaceAll(html.EscapeString(body), "\n", "<br>\r\n")

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\r\n<html>\r\n<head><meta charset=\"utf-8\"></head>\r\n")
	b.WriteString("<body style=\"font-family: Arial, sans-serif; padding: 20px;\">\r\n")
	b.WriteString("<div style=\"max-width: 600px; margin: 0 auto;\">\r\n")
	b.WriteString(escaped)
	b.WriteString("\r\n<hr style=\"margin: 30px 0; border: none; border-top: 1px solid #ddd;\">\r\n")
	b.WriteString("<div style=\"background: #f5f5f5; padding: 15px; border-radius: 8px; font-family: monospace;\">\r\n")
	b.WriteString("<strong>Farewell-Hash</strong><br>\r\n")
	fmt.Fprintf(&b, "<code style=\"word-break: break-all;\">%s</code>\r\n", hash)
	b.WriteString("</div>\r\n")
	b.WriteString("<p style=\"color: #666; font-size: 12px; margin-top: 20px;\">\r\n")
	fmt.Fprintf(&b, "This message was sent via <a href=\"%s\">%s</a>.<br>\r\n", protocolURL, protocolName)
	b.WriteString("A zk-email proof may be generated to verify delivery of this message.\r\n")
	b.WriteString("</p>\r\n</div>\r\n</body>\r\n</html>\r\n")
	return b.String()
}

// crlf normalizes bare LF line endings to CRLF for the wire.
func crlf(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

// GenerateMessageID builds a Message-ID header value from the current time
// and eight random bytes, scoped to the sender's domain so the id stays
// plausible for DKIM-signed mail. Senders without a domain fall back to
// localhost.
func GenerateMessageID(fromEmail string) string {
	domain := "localhost"
	if at := strings.LastIndex(fromEmail, "@"); at >= 0 && at < len(fromEmail)-1 {
		domain = fromEmail[at+1:]
	}

	var entropy [8]byte
	_, _ = rand.Read(entropy[:])

	return fmt.Sprintf("<%d.%x@%s>", time.Now().UnixNano(), entropy, domain)
}
