package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/farewell-protocol/farewell-claimer/internal/message"
	"github.com/farewell-protocol/farewell-claimer/internal/provider"
)

const testHash = "0x1f8b3a9c2e4d5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a"

// ---------------------------------------------------------------------------
// Token persistence
// ---------------------------------------------------------------------------

func TestTokenStore_RoundTrip(t *testing.T) {
	store := NewTokenStore(filepath.Join(t.TempDir(), "token.json"))

	tok := &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
	}
	if err := store.Save(tok); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file mode: got %o, want 0600", perm)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.AccessToken != tok.AccessToken || got.RefreshToken != tok.RefreshToken {
		t.Errorf("round trip mismatch: got %+v", got)
	}
}

func TestTokenStore_MissingFile(t *testing.T) {
	store := NewTokenStore(filepath.Join(t.TempDir(), "absent.json"))
	if _, err := store.Load(); !os.IsNotExist(err) {
		t.Errorf("Load() error: got %v, want os.IsNotExist", err)
	}
}

func TestTokenStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewTokenStore(path).Load(); err == nil {
		t.Error("expected error for corrupt token file, got nil")
	}
}

// staticSource yields a fixed sequence of tokens.
type staticSource struct {
	tokens []*oauth2.Token
	calls  int
}

func (s *staticSource) Token() (*oauth2.Token, error) {
	tok := s.tokens[s.calls]
	if s.calls < len(s.tokens)-1 {
		s.calls++
	}
	return tok, nil
}

func TestPersistingSource_SavesRefreshedToken(t *testing.T) {
	store := NewTokenStore(filepath.Join(t.TempDir(), "token.json"))

	initial := &oauth2.Token{AccessToken: "access-1", RefreshToken: "refresh-1"}
	refreshed := &oauth2.Token{AccessToken: "access-2", RefreshToken: "refresh-1"}

	src := newPersistingSource(&staticSource{tokens: []*oauth2.Token{initial, refreshed}}, store, initial)

	// Same token as the initial one: nothing to persist yet.
	if _, err := src.Token(); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(); !os.IsNotExist(err) {
		t.Errorf("token persisted before a refresh: %v", err)
	}

	// A refreshed token must hit the store.
	if _, err := src.Token(); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() after refresh: %v", err)
	}
	if got.AccessToken != "access-2" {
		t.Errorf("persisted AccessToken: got %q, want %q", got.AccessToken, "access-2")
	}
}

// ---------------------------------------------------------------------------
// API behavior against a local server
// ---------------------------------------------------------------------------

func newTestService(t *testing.T, handler http.Handler) *gmailapi.Service {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := gmailapi.NewService(context.Background(),
		option.WithoutAuthentication(),
		option.WithEndpoint(srv.URL),
	)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func compose(t *testing.T) *message.Message {
	t.Helper()
	msg, err := message.Compose(message.Input{
		Sender:      message.Sender{Email: "claimer@gmail.com"},
		Recipient:   "alice@example.com",
		Subject:     "Last words",
		Body:        "Goodbye.",
		ContentHash: testHash,
	})
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestVerify_SetsEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/profile", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(&gmailapi.Profile{EmailAddress: "claimer@gmail.com"})
	})

	p := NewWithService(newTestService(t, mux))
	if err := p.Verify(context.Background()); err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if p.Email() != "claimer@gmail.com" {
		t.Errorf("Email: got %q", p.Email())
	}
}

func TestVerify_Unauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/profile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"code": 401, "message": "Invalid Credentials"}}`)
	})

	p := NewWithService(newTestService(t, mux))
	err := p.Verify(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var authErr *provider.AuthError
	if !errors.As(err, &authErr) {
		t.Errorf("error type: got %T, want *provider.AuthError", err)
	}
}

func TestSend_UsesCanonicalCopy(t *testing.T) {
	canonical := "From: claimer@gmail.com\r\nMessage-ID: <server@mail.gmail.com>\r\n\r\nserver copy\r\n"

	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		var body gmailapi.Message
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad send body: %v", err)
		}
		if body.Raw == "" {
			t.Error("send request missing raw payload")
		}
		json.NewEncoder(w).Encode(&gmailapi.Message{Id: "msg-1"})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/msg-1", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("format"); got != "raw" {
			t.Errorf("format: got %q, want raw", got)
		}
		json.NewEncoder(w).Encode(&gmailapi.Message{
			Id:  "msg-1",
			Raw: base64.URLEncoding.EncodeToString([]byte(canonical)),
		})
	})

	p := NewWithService(newTestService(t, mux))
	res, err := p.Send(context.Background(), compose(t))
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if res.MessageID != "msg-1" {
		t.Errorf("MessageID: got %q", res.MessageID)
	}
	if string(res.Raw) != canonical {
		t.Errorf("Raw: got %q, want server copy", res.Raw)
	}
}

func TestSend_FallsBackToLocalBytes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(&gmailapi.Message{Id: "msg-1"})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/msg-1", func(w http.ResponseWriter, r *http.Request) {
		// Read scope declined: the canonical fetch fails.
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": {"code": 403, "message": "insufficient scope"}}`)
	})

	p := NewWithService(newTestService(t, mux))
	msg := compose(t)
	res, err := p.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if string(res.Raw) != string(msg.Raw) {
		t.Error("expected fallback to the locally composed bytes")
	}
}

func TestSend_AuthError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"code": 401, "message": "Invalid Credentials"}}`)
	})

	p := NewWithService(newTestService(t, mux))
	_, err := p.Send(context.Background(), compose(t))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var authErr *provider.AuthError
	if !errors.As(err, &authErr) {
		t.Errorf("error type: got %T, want *provider.AuthError", err)
	}
}

func TestSend_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"code": 400, "message": "Recipient address required"}}`)
	})

	p := NewWithService(newTestService(t, mux))
	_, err := p.Send(context.Background(), compose(t))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var sendErr *provider.SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("error type: got %T, want *provider.SendError", err)
	}
	if sendErr.Recipient != "alice@example.com" {
		t.Errorf("Recipient: got %q", sendErr.Recipient)
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func TestDecodeWebSafe(t *testing.T) {
	t.Parallel()

	want := "From: a@x.com\r\n\r\nhi\r\n"
	for _, enc := range []string{
		base64.URLEncoding.EncodeToString([]byte(want)),    // padded
		base64.RawURLEncoding.EncodeToString([]byte(want)), // unpadded
	} {
		got, err := decodeWebSafe(enc)
		if err != nil {
			t.Fatalf("decodeWebSafe(%q) error: %v", enc, err)
		}
		if string(got) != want {
			t.Errorf("decodeWebSafe mismatch: got %q", got)
		}
	}

	if _, err := decodeWebSafe("!!!"); err == nil {
		t.Error("expected error for invalid base64, got nil")
	}
}

func TestAsAuthError(t *testing.T) {
	t.Parallel()

	p := &Provider{}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "401", err: &googleapi.Error{Code: 401}, want: true},
		{name: "403", err: &googleapi.Error{Code: 403}, want: true},
		{name: "500", err: &googleapi.Error{Code: 500}, want: false},
		{name: "retrieve error", err: &oauth2.RetrieveError{}, want: true},
		{name: "wrapped retrieve error", err: fmt.Errorf("refresh: %w", &oauth2.RetrieveError{}), want: true},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.asAuthError(tt.err) != nil
			if got != tt.want {
				t.Errorf("asAuthError(%v) != nil = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
