// Package export writes the per-recipient output files: the raw .eml and the
// paired proof-record JSON, inside one timestamped run directory.
package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/farewell-protocol/farewell-claimer/internal/proof"
)

// dirPrefix names the run directory; the timestamp suffix keeps re-runs
// from overwriting earlier output.
const dirPrefix = "farewell_proofs"

// Exporter owns one run directory, created lazily on the first export.
type Exporter struct {
	baseDir string
	runDir  string
	now     func() time.Time
}

// New creates an exporter rooted at baseDir ("." for the working directory).
func New(baseDir string) *Exporter {
	return &Exporter{baseDir: baseDir, now: time.Now}
}

// NewWithClock creates an exporter with a custom clock, used in tests.
func NewWithClock(baseDir string, now func() time.Time) *Exporter {
	return &Exporter{baseDir: baseDir, now: now}
}

// RunDir returns the run directory path, or "" before the first export.
func (e *Exporter) RunDir() string {
	return e.runDir
}

// Export writes the .eml and proof JSON for one recipient. index is the
// 1-based position of the recipient in the batch, so file indices increase
// monotonically and a pair is only ever written once per recipient.
func (e *Exporter) Export(index int, recipient string, raw []byte, rec *proof.Record) (emlPath, proofPath string, err error) {
	if err := e.ensureRunDir(); err != nil {
		return "", "", err
	}

	base := fmt.Sprintf("%d_%s", index, SanitizeAddress(recipient))
	emlPath = filepath.Join(e.runDir, "recipient_"+base+".eml")
	proofPath = filepath.Join(e.runDir, "proof_"+base+".json")

	// Files are never overwritten within a run.
	if _, err := os.Stat(emlPath); err == nil {
		return "", "", fmt.Errorf("output file already exists: %s", emlPath)
	}

	if err := os.WriteFile(emlPath, raw, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write eml file: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal proof record: %w", err)
	}
	if err := os.WriteFile(proofPath, append(data, '\n'), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write proof file: %w", err)
	}

	slog.Debug("exported recipient files",
		"eml", emlPath,
		"proof", proofPath,
	)

	return emlPath, proofPath, nil
}

// ensureRunDir creates the timestamped run directory exactly once per run.
// When a directory for the same second already exists (immediate re-run),
// a numeric suffix keeps the new run distinct.
func (e *Exporter) ensureRunDir() error {
	if e.runDir != "" {
		return nil
	}

	stamp := e.now().Format("20060102_150405")
	name := fmt.Sprintf("%s_%s", dirPrefix, stamp)

	for i := 0; ; i++ {
		dir := filepath.Join(e.baseDir, name)
		if i > 0 {
			dir = filepath.Join(e.baseDir, fmt.Sprintf("%s_%d", name, i+1))
		}
		err := os.Mkdir(dir, 0755)
		if err == nil {
			e.runDir = dir
			slog.Info("created output directory", "dir", dir)
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
}

// SanitizeAddress maps an email address to a filesystem-safe fragment:
// "@" becomes "_at_" and every other byte outside [A-Za-z0-9_-] becomes "_".
// Example: a@x.com -> a_at_x_com.
func SanitizeAddress(addr string) string {
	var b []byte
	for i := 0; i < len(addr); i++ {
		c := addr[i]
		switch {
		case c == '@':
			b = append(b, "_at_"...)
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			b = append(b, c)
		default:
			b = append(b, '_')
		}
	}
	return string(b)
}
