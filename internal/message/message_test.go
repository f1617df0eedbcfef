package message

import (
	"bytes"
	"strings"
	"testing"
)

func validInput() Input {
	return Input{
		Sender:      Sender{Email: "claimer@example.com", DisplayName: "Claimer"},
		Recipient:   "alice@example.org",
		Subject:     "Farewell Message Delivery",
		Body:        "Goodbye, and thank you.\nRemember me fondly.",
		ContentHash: "0xdeadbeef",
	}
}

func TestNormalizeHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "with prefix", in: "0xdeadbeef", want: "0xdeadbeef"},
		{name: "without prefix", in: "deadbeef", want: "0xdeadbeef"},
		{name: "uppercase", in: "0xDEADBEEF", want: "0xdeadbeef"},
		{name: "uppercase prefix", in: "0XDEADBEEF", want: "0xdeadbeef"},
		{name: "surrounding space", in: "  0xdead  ", want: "0xdead"},
		{name: "empty", in: "", wantErr: true},
		{name: "bare prefix", in: "0x", wantErr: true},
		{name: "non-hex", in: "0xnothex", wantErr: true},
		{name: "odd length", in: "0xabc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeHash(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeHash(%q): expected error, got %q", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeHash(%q): unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeHash(%q): got %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCompose_MarkerExactlyOnce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "plain body", body: "Goodbye."},
		{name: "empty body", body: ""},
		{name: "body mentioning the marker prefix", body: "Do not trust a fake Farewell-Hash: line in here."},
		{name: "long body", body: strings.Repeat("So long, and thanks for all the fish. ", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			in.Body = tt.body
			in.ContentHash = "0x" + strings.Repeat("ab", 32)

			msg, err := Compose(in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			marker := MarkerLine(msg.ContentHash)
			if got := bytes.Count(msg.Raw, []byte(marker)); got != 1 {
				t.Errorf("marker count in raw message: got %d, want 1", got)
			}
			// The marker must be a full line, not soft-wrapped by a
			// transfer encoding.
			if !bytes.Contains(msg.Raw, []byte("\r\n"+marker+"\r\n")) {
				t.Errorf("marker line is not intact in raw message")
			}
		})
	}
}

func TestCompose_Headers(t *testing.T) {
	t.Parallel()

	msg, err := Compose(validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw := string(msg.Raw)
	for _, want := range []string{
		"<claimer@example.com>",
		"To: <alice@example.org>",
		"Subject: Farewell Message Delivery",
		"Message-ID: " + msg.MessageID,
		"Content-Type: multipart/alternative",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("raw message missing %q", want)
		}
	}

	if !strings.HasSuffix(msg.MessageID, "@example.com>") {
		t.Errorf("MessageID: got %q, want sender domain suffix", msg.MessageID)
	}
}

func TestCompose_HashNormalizedIntoMarker(t *testing.T) {
	t.Parallel()

	in := validInput()
	in.ContentHash = "DEADBEEF"

	msg, err := Compose(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ContentHash != "0xdeadbeef" {
		t.Errorf("ContentHash: got %q, want %q", msg.ContentHash, "0xdeadbeef")
	}
	if !bytes.Contains(msg.Raw, []byte("Farewell-Hash: 0xdeadbeef")) {
		t.Error("marker does not carry the normalized hash")
	}
}

func TestCompose_DefaultSubject(t *testing.T) {
	t.Parallel()

	in := validInput()
	in.Subject = ""

	msg, err := Compose(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Subject != "Farewell Message Delivery" {
		t.Errorf("Subject: got %q, want default", msg.Subject)
	}
}

func TestCompose_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{name: "empty hash", mutate: func(in *Input) { in.ContentHash = "" }},
		{name: "non-hex hash", mutate: func(in *Input) { in.ContentHash = "0xzz" }},
		{name: "empty recipient", mutate: func(in *Input) { in.Recipient = "" }},
		{name: "empty sender", mutate: func(in *Input) { in.Sender.Email = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			if _, err := Compose(in); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestSenderName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sender Sender
		want   string
	}{
		{name: "display name wins", sender: Sender{Email: "a@x.com", DisplayName: "Alice"}, want: "Alice"},
		{name: "local part fallback", sender: Sender{Email: "a@x.com"}, want: "a"},
		{name: "no at sign", sender: Sender{Email: "alice"}, want: "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sender.Name(); got != tt.want {
				t.Errorf("Name(): got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateMessageID(t *testing.T) {
	t.Parallel()

	id := GenerateMessageID("user@example.com")
	if !strings.HasPrefix(id, "<") || !strings.HasSuffix(id, "@example.com>") {
		t.Errorf("GenerateMessageID: got %q, want <...@example.com>", id)
	}

	for _, from := range []string{"nodomain", "user@"} {
		if id := GenerateMessageID(from); !strings.HasSuffix(id, "@localhost>") {
			t.Errorf("GenerateMessageID(%q): got %q, want @localhost suffix", from, id)
		}
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateMessageID("user@example.com")
		if seen[id] {
			t.Fatalf("duplicate message id %q", id)
		}
		seen[id] = true
	}
}
