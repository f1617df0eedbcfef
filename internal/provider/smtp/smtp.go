// Package smtp implements a Provider that transmits messages over a direct
// SMTP session with implicit TLS or STARTTLS.
package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"github.com/farewell-protocol/farewell-claimer/internal/message"
	"github.com/farewell-protocol/farewell-claimer/internal/provider"
	smtptls "github.com/farewell-protocol/farewell-claimer/internal/tls"
)

// dialTimeout bounds connection establishment and each SMTP command.
const dialTimeout = 30 * time.Second

// Config holds the SMTP connection parameters for one run.
type Config struct {
	Host     string
	Port     int
	StartTLS bool
	SSL      bool
	Username string
	Password string

	// Custom trust settings for self-hosted servers.
	TLSCAFile   string
	TLSInsecure bool

	// AllowPlaintext permits an unencrypted session. Only tests and
	// localhost relays should set it.
	AllowPlaintext bool
}

// Provider holds one SMTP client, established lazily on first use and
// reused for every recipient in the run.
type Provider struct {
	cfg    Config
	client *gosmtp.Client
}

// New creates an SMTP provider. No connection is made until Verify or the
// first Send.
func New(cfg Config) *Provider {
	return &Provider{cfg: cfg}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "smtp"
}

// Verify connects and authenticates without sending. Bad credentials are
// reported as *provider.AuthError.
func (p *Provider) Verify(ctx context.Context) error {
	if err := p.connect(ctx); err != nil {
		return err
	}
	if err := p.client.Noop(); err != nil {
		return fmt.Errorf("smtp noop failed: %w", err)
	}
	return nil
}

// Send transmits the composed message to its recipient, connecting first if
// needed. The returned raw bytes are exactly the composed document, which is
// what was placed on the wire.
func (p *Provider) Send(ctx context.Context, msg *message.Message) (*provider.Result, error) {
	if err := p.connect(ctx); err != nil {
		return nil, err
	}

	err := p.client.SendMail(msg.From.Email, []string{msg.To}, bytes.NewReader(msg.Raw))
	if err != nil {
		return nil, &provider.SendError{
			Provider:  p.Name(),
			Recipient: msg.To,
			Err:       err,
		}
	}

	slog.Debug("smtp message accepted",
		"recipient", msg.To,
		"message_id", msg.MessageID,
		"size", len(msg.Raw),
	)

	return &provider.Result{Raw: msg.Raw}, nil
}

// connect establishes and authenticates the session once per run.
func (p *Provider) connect(ctx context.Context) error {
	if p.client != nil {
		return nil
	}

	tlsCfg, err := smtptls.ClientConfig(p.cfg.Host, p.cfg.TLSCAFile, p.cfg.TLSInsecure)
	if err != nil {
		return fmt.Errorf("failed to build TLS config: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	var dialFn func(addr string, tlsConfig *tls.Config) (*gosmtp.Client, error)
	switch {
	case p.cfg.SSL:
		dialFn = gosmtp.DialTLS
	case p.cfg.StartTLS:
		dialFn = gosmtp.DialStartTLS
	case p.cfg.AllowPlaintext:
		dialFn = func(addr string, _ *tls.Config) (*gosmtp.Client, error) {
			return gosmtp.Dial(addr)
		}
	default:
		return fmt.Errorf("refusing plaintext connection to %s: enable SSL or STARTTLS", addr)
	}

	slog.Debug("connecting to smtp server",
		"addr", addr,
		"ssl", p.cfg.SSL,
		"starttls", p.cfg.StartTLS,
	)

	client, err := dialFn(addr, tlsCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	client.CommandTimeout = dialTimeout
	client.SubmissionTimeout = dialTimeout

	if p.cfg.Password != "" {
		auth := sasl.NewPlainClient("", p.cfg.Username, p.cfg.Password)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return &provider.AuthError{Provider: p.Name(), Err: err}
		}
	}

	p.client = client
	return nil
}

// Close terminates the SMTP session with QUIT, falling back to a hard close.
func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	client := p.client
	p.client = nil

	if err := client.Quit(); err != nil {
		return client.Close()
	}
	return nil
}
