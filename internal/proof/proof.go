// Package proof builds the per-recipient proof record consumed by the
// external zk-email proving pipeline. The record is delivery metadata plus a
// placeholder proof structure; no zero-knowledge proof is computed here.
package proof

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// zeroHash stands in for fields the external circuit fills in.
const zeroHash = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Record describes one successfully sent message. Persisted as JSON next to
// the .eml file and never mutated afterwards.
type Record struct {
	Recipient     string `json:"recipient"`
	RecipientHash string `json:"recipientHash"`
	ContentHash   string `json:"contentHash"`
	Sender        string `json:"sender"`
	SentAt        string `json:"sentAt"`
	MessageID     string `json:"messageId,omitempty"`
	DKIMDomain    string `json:"dkimDomain,omitempty"`
	Proof         Data   `json:"proof"`
}

// Data is the groth16-shaped structure the external prover replaces. The
// public signals are ordered as the contract expects: recipient hash, DKIM
// public key hash, content hash.
type Data struct {
	PA            []string   `json:"pA"`
	PB            [][]string `json:"pB"`
	PC            []string   `json:"pC"`
	PublicSignals []string   `json:"publicSignals"`
}

// NewRecord assembles a record for one sent message.
func NewRecord(recipient, contentHash, sender, messageID, dkimDomain string, sentAt time.Time) *Record {
	rh := RecipientHash(recipient)
	return &Record{
		Recipient:     recipient,
		RecipientHash: rh,
		ContentHash:   contentHash,
		Sender:        sender,
		SentAt:        sentAt.UTC().Format(time.RFC3339),
		MessageID:     messageID,
		DKIMDomain:    dkimDomain,
		Proof: Data{
			PA:            []string{"0x0", "0x0"},
			PB:            [][]string{{"0x0", "0x0"}, {"0x0", "0x0"}},
			PC:            []string{"0x0", "0x0"},
			PublicSignals: []string{rh, zeroHash, contentHash},
		},
	}
}

// RecipientHash commits to a recipient address: 0x-prefixed SHA3-256 of the
// lowercased, trimmed address. Must match what the contract computes.
func RecipientHash(recipient string) string {
	normalized := strings.ToLower(strings.TrimSpace(recipient))
	sum := sha3.Sum256([]byte(normalized))
	return "0x" + hex.EncodeToString(sum[:])
}
