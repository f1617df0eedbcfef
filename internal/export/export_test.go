package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/farewell-protocol/farewell-claimer/internal/proof"
)

func fixedClock() func() time.Time {
	at := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	return func() time.Time { return at }
}

func testRecord() *proof.Record {
	return proof.NewRecord("alice@example.com",
		"0x1f8b3a9c2e4d5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a",
		"claimer@example.com", "<abc@example.com>", "example.com",
		time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC))
}

func TestSanitizeAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "a@x.com", want: "a_at_x_com"},
		{in: "first.last@mail.example.org", want: "first_last_at_mail_example_org"},
		{in: "user+tag@x.com", want: "user_tag_at_x_com"},
		{in: "under_score-dash@x.com", want: "under_score-dash_at_x_com"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		if got := SanitizeAddress(tt.in); got != tt.want {
			t.Errorf("SanitizeAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExport_WritesPair(t *testing.T) {
	base := t.TempDir()
	e := NewWithClock(base, fixedClock())

	raw := []byte("From: claimer@example.com\r\n\r\nbody\r\n")
	emlPath, proofPath, err := e.Export(1, "alice@example.com", raw, testRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantDir := filepath.Join(base, "farewell_proofs_20260314_150926")
	if e.RunDir() != wantDir {
		t.Errorf("RunDir: got %q, want %q", e.RunDir(), wantDir)
	}
	if filepath.Base(emlPath) != "recipient_1_alice_at_example_com.eml" {
		t.Errorf("eml name: got %q", filepath.Base(emlPath))
	}
	if filepath.Base(proofPath) != "proof_1_alice_at_example_com.json" {
		t.Errorf("proof name: got %q", filepath.Base(proofPath))
	}

	got, err := os.ReadFile(emlPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(raw) {
		t.Error("eml bytes differ from the sent message")
	}

	data, err := os.ReadFile(proofPath)
	if err != nil {
		t.Fatal(err)
	}
	var rec proof.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("proof file is not valid JSON: %v", err)
	}
	if rec.Recipient != "alice@example.com" {
		t.Errorf("Recipient in proof file: got %q", rec.Recipient)
	}
}

func TestExport_LazyDirCreation(t *testing.T) {
	base := t.TempDir()
	e := NewWithClock(base, fixedClock())

	// No directory should exist before the first successful export.
	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("base dir not empty before export: %v", entries)
	}
	if e.RunDir() != "" {
		t.Errorf("RunDir before export: got %q, want empty", e.RunDir())
	}

	if _, _, err := e.Export(1, "a@x.com", []byte("From: a@x.com\r\n\r\nhi\r\n"), testRecord()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.RunDir() == "" {
		t.Error("RunDir still empty after export")
	}
}

func TestExport_NoOverwrite(t *testing.T) {
	base := t.TempDir()
	e := NewWithClock(base, fixedClock())

	raw := []byte("From: a@x.com\r\n\r\nhi\r\n")
	if _, _, err := e.Export(1, "alice@example.com", raw, testRecord()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _, err := e.Export(1, "alice@example.com", raw, testRecord())
	if err == nil {
		t.Fatal("expected error on duplicate export, got nil")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("error %q does not mention existing file", err)
	}
}

func TestExport_DistinctRunDirs(t *testing.T) {
	base := t.TempDir()
	raw := []byte("From: a@x.com\r\n\r\nhi\r\n")

	// Two runs inside the same second get suffixed directories.
	first := NewWithClock(base, fixedClock())
	if _, _, err := first.Export(1, "a@x.com", raw, testRecord()); err != nil {
		t.Fatal(err)
	}
	second := NewWithClock(base, fixedClock())
	if _, _, err := second.Export(1, "a@x.com", raw, testRecord()); err != nil {
		t.Fatal(err)
	}

	if first.RunDir() == second.RunDir() {
		t.Errorf("both runs used %q", first.RunDir())
	}
	if second.RunDir() != first.RunDir()+"_2" {
		t.Errorf("second run dir: got %q, want %q", second.RunDir(), first.RunDir()+"_2")
	}
}
