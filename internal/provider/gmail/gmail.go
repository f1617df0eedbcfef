// Package gmail implements a Provider that sends through the Gmail API with
// OAuth 2.0 user consent instead of an SMTP password.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/farewell-protocol/farewell-claimer/internal/message"
	"github.com/farewell-protocol/farewell-claimer/internal/provider"
)

// scopes requested from Google. gmail.send covers transmission; the readonly
// scope lets us fetch the server's canonical copy of the sent message, whose
// headers may differ from the locally composed bytes.
var scopes = []string{
	gmailapi.GmailSendScope,
	gmailapi.GmailReadonlyScope,
}

// Authorize obtains an authorization code for the given consent URL, e.g. by
// showing the URL and reading the pasted code from the terminal.
type Authorize func(authURL string) (code string, err error)

// Config holds the Gmail provider setup.
type Config struct {
	CredentialsFile string
	TokenFile       string

	// Authorize drives the interactive consent flow when no usable token
	// exists. Without it, a missing token is a hard error.
	Authorize Authorize
}

// Provider sends via the Gmail API. One service client is built per run.
type Provider struct {
	svc   *gmailapi.Service
	email string
}

// New builds the provider: loads the OAuth client secret, obtains a token
// (stored, refreshed, or newly consented), and constructs the API client.
// A missing credentials file is a configuration error; a failed exchange is
// an *provider.AuthError.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	secret, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read OAuth credentials file %s: %w", cfg.CredentialsFile, err)
	}

	ocfg, err := google.ConfigFromJSON(secret, scopes...)
	if err != nil {
		return nil, fmt.Errorf("invalid OAuth credentials file: %w", err)
	}

	store := NewTokenStore(cfg.TokenFile)
	tok, err := store.Load()
	switch {
	case err == nil:
		slog.Debug("using stored OAuth token", "path", store.Path())
	case os.IsNotExist(err):
		tok, err = consent(ctx, ocfg, cfg.Authorize)
		if err != nil {
			return nil, err
		}
		if err := store.Save(tok); err != nil {
			slog.Warn("could not persist OAuth token", "error", err)
		} else {
			slog.Info("OAuth token saved", "path", store.Path())
		}
	default:
		return nil, err
	}

	src := newPersistingSource(ocfg.TokenSource(ctx, tok), store, tok)

	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(oauth2.ReuseTokenSource(nil, src)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail client: %w", err)
	}

	return &Provider{svc: svc}, nil
}

// NewWithService builds a provider around an existing API client.
// Used for testing against a local HTTP server.
func NewWithService(svc *gmailapi.Service) *Provider {
	return &Provider{svc: svc}
}

// consent runs the interactive authorization flow.
func consent(ctx context.Context, ocfg *oauth2.Config, authorize Authorize) (*oauth2.Token, error) {
	if authorize == nil {
		return nil, &provider.AuthError{
			Provider: "gmail",
			Err:      fmt.Errorf("no stored token and no interactive consent available"),
		}
	}

	authURL := ocfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	code, err := authorize(authURL)
	if err != nil {
		return nil, fmt.Errorf("authorization aborted: %w", err)
	}

	tok, err := ocfg.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, &provider.AuthError{Provider: "gmail", Err: err}
	}
	return tok, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "gmail"
}

// Email returns the authenticated address, available after Verify.
func (p *Provider) Email() string {
	return p.email
}

// Verify resolves the authenticated profile, proving the token works and
// fixing the sender address for the run.
func (p *Provider) Verify(ctx context.Context) error {
	profile, err := p.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return p.classify(err)
	}
	p.email = profile.EmailAddress
	slog.Info("authenticated with Gmail", "email", p.email)
	return nil
}

// Send submits the raw message and then fetches the provider's canonical
// copy for export. When the fetch fails (e.g. the read scope was declined)
// the locally composed bytes are exported instead.
func (p *Provider) Send(ctx context.Context, msg *message.Message) (*provider.Result, error) {
	encoded := base64.RawURLEncoding.EncodeToString(msg.Raw)

	sent, err := p.svc.Users.Messages.Send("me", &gmailapi.Message{Raw: encoded}).Context(ctx).Do()
	if err != nil {
		if authErr := p.asAuthError(err); authErr != nil {
			return nil, authErr
		}
		return nil, &provider.SendError{
			Provider:  p.Name(),
			Recipient: msg.To,
			Err:       err,
		}
	}

	result := &provider.Result{Raw: msg.Raw, MessageID: sent.Id}

	canonical, err := p.fetchRaw(ctx, sent.Id)
	if err != nil {
		slog.Warn("could not fetch canonical copy, exporting local bytes",
			"gmail_id", sent.Id,
			"error", err,
		)
		return result, nil
	}

	result.Raw = canonical
	return result, nil
}

// fetchRaw retrieves the server-side copy of a sent message in raw form.
func (p *Provider) fetchRaw(ctx context.Context, id string) ([]byte, error) {
	got, err := p.svc.Users.Messages.Get("me", id).Format("raw").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	raw, err := decodeWebSafe(got.Raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode raw message: %w", err)
	}
	return raw, nil
}

// decodeWebSafe decodes the API's web-safe base64, with or without padding.
func decodeWebSafe(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// classify maps a profile/API error to the run-level taxonomy.
func (p *Provider) classify(err error) error {
	if authErr := p.asAuthError(err); authErr != nil {
		return authErr
	}
	return fmt.Errorf("Gmail API error: %w", err)
}

// asAuthError returns an *provider.AuthError when the API rejected our
// credentials, nil otherwise.
func (p *Provider) asAuthError(err error) *provider.AuthError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 401 || apiErr.Code == 403 {
			return &provider.AuthError{Provider: p.Name(), Err: err}
		}
	}
	// oauth2 wraps refresh failures in its own retrieve error.
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return &provider.AuthError{Provider: p.Name(), Err: err}
	}
	return nil
}

// Close is a no-op; the Gmail service holds no persistent connection state
// beyond the HTTP client's pool.
func (p *Provider) Close() error {
	return nil
}
