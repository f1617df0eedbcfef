// Package main is the entry point for the farewell claimer CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/farewell-protocol/farewell-claimer/internal/claimer"
	"github.com/farewell-protocol/farewell-claimer/internal/config"
	"github.com/farewell-protocol/farewell-claimer/internal/export"
	"github.com/farewell-protocol/farewell-claimer/internal/input"
	"github.com/farewell-protocol/farewell-claimer/internal/message"
	"github.com/farewell-protocol/farewell-claimer/internal/provider"
	gmailprov "github.com/farewell-protocol/farewell-claimer/internal/provider/gmail"
	sesprov "github.com/farewell-protocol/farewell-claimer/internal/provider/ses"
	smtpprov "github.com/farewell-protocol/farewell-claimer/internal/provider/smtp"
	stdoutprov "github.com/farewell-protocol/farewell-claimer/internal/provider/stdout"
	"github.com/farewell-protocol/farewell-claimer/internal/ui"
)

// options holds the parsed command line.
type options struct {
	messageFile string
	configPath  string
	provider    string
	dryRun      bool
}

func main() {
	var (
		fileFlag     = flag.String("f", "", "path to message JSON file (alternative to the positional argument)")
		configPath   = flag.String("config", "", "path to YAML configuration file (optional)")
		providerFlag = flag.String("provider", "", "provider id (gmail-oauth, gmail, outlook, yahoo, icloud, zoho, protonmail, ses, custom, dry-run)")
		dryRun       = flag.Bool("dry-run", false, "compose and export without sending")
	)
	flag.Parse()

	opts := options{
		messageFile: flag.Arg(0),
		configPath:  *configPath,
		provider:    *providerFlag,
		dryRun:      *dryRun,
	}
	// Positional argument takes precedence over the -f flag.
	if opts.messageFile == "" {
		opts.messageFile = *fileFlag
	}

	os.Exit(run(opts))
}

// run executes the pipeline and returns the process exit code. Failures exit
// through returns rather than os.Exit so the deferred provider Close still
// terminates the transport session on aborted and partially failed runs.
func run(opts options) int {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}
	setupLogger(cfg.Logging.Level)

	u := ui.New()
	u.Banner()

	req, err := loadRequest(u, opts.messageFile)
	if err != nil {
		u.Error("%v", err)
		return 1
	}

	providerID := opts.provider
	if opts.dryRun {
		providerID = "dry-run"
	}
	if providerID == "" {
		providerID = cfg.Provider
	}

	interactive := opts.messageFile == "" || providerID == ""

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, aborting", "signal", sig)
		cancel()
	}()

	prov, sender, err := setupProvider(ctx, u, cfg, providerID, interactive)
	if err != nil {
		u.Error("%v", err)
		return 1
	}
	defer prov.Close()

	printRunSummary(u, sender, req)
	if interactive {
		proceed, err := u.Confirm("Proceed with sending?", true)
		if err != nil {
			u.Error("%v", err)
			return 1
		}
		if !proceed {
			u.Info("Aborted by user.")
			return 0
		}
	}

	u.Section("Sending Emails & Generating Proofs")

	runner := &claimer.Runner{
		Provider: prov,
		Exporter: export.New(cfg.Output.Dir),
		Sender:   sender,
	}

	summary, runErr := runner.Run(ctx, req)
	printResults(u, summary)

	if runErr != nil {
		u.Error("run aborted: %v", runErr)
		return 1
	}
	if len(summary.Succeeded()) > 0 {
		printNextSteps(u)
	}
	if len(summary.Failed()) > 0 {
		return 1
	}
	return 0
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// loadRequest either loads the message JSON or collects it interactively.
func loadRequest(u *ui.UI, path string) (*input.Request, error) {
	if path != "" {
		u.Section("Loading Message Data")
		req, err := input.LoadFile(path)
		if err != nil {
			return nil, err
		}
		u.Success("Loaded message data from: %s", path)
		u.Info("  Recipients: %d", len(req.Recipients))
		u.Info("  Content hash: %s", req.ContentHash)
		return req, nil
	}
	return collectRequest(u)
}

// setupProvider resolves the provider configuration, completes missing
// fields interactively, builds the transport and verifies it. In interactive
// mode a failed verification offers one reconfiguration retry.
func setupProvider(ctx context.Context, u *ui.UI, cfg *config.Config, providerID string, interactive bool) (provider.Provider, message.Sender, error) {
	for attempt := 0; ; attempt++ {
		id := providerID
		if id == "" {
			var err error
			id, err = chooseProvider(u)
			if err != nil {
				return nil, message.Sender{}, err
			}
		}

		sc, err := resolveInteractive(u, cfg, id, interactive)
		if err != nil {
			return nil, message.Sender{}, err
		}

		prov, err := buildProvider(ctx, u, sc)
		if err != nil {
			return nil, message.Sender{}, err
		}

		u.Info("Testing %s connection...", prov.Name())
		if err := prov.Verify(ctx); err != nil {
			prov.Close()
			u.Error("Connection failed: %v", err)
			if interactive && attempt == 0 {
				retry, cerr := u.Confirm("Connection failed. Try again?", true)
				if cerr == nil && retry {
					providerID = ""
					continue
				}
			}
			return nil, message.Sender{}, fmt.Errorf("could not verify %s connection: %w", sc.Provider, err)
		}
		u.Success("Connection verified!")

		sender := message.Sender{Email: sc.Email, DisplayName: sc.DisplayName}

		// OAuth resolves the sender address from the authenticated profile.
		if gp, ok := prov.(*gmailprov.Provider); ok && gp.Email() != "" {
			sender.Email = gp.Email()
			if interactive && sender.DisplayName == "" {
				name, perr := u.Prompt("Display name (optional)", message.Sender{Email: sender.Email}.Name())
				if perr != nil {
					prov.Close()
					return nil, message.Sender{}, perr
				}
				sender.DisplayName = name
			}
		}
		if sender.Email == "" {
			prov.Close()
			return nil, message.Sender{}, fmt.Errorf("sender email is not configured")
		}

		return prov, sender, nil
	}
}

// buildProvider constructs the transport for a resolved configuration.
func buildProvider(ctx context.Context, u *ui.UI, sc *config.SendConfig) (provider.Provider, error) {
	switch sc.Auth {
	case config.AuthPassword:
		return smtpprov.New(smtpprov.Config{
			Host:        sc.Host,
			Port:        sc.Port,
			StartTLS:    sc.StartTLS,
			SSL:         sc.SSL,
			Username:    sc.Email,
			Password:    sc.Password,
			TLSCAFile:   sc.TLSCAFile,
			TLSInsecure: sc.TLSInsecure,
		}), nil

	case config.AuthOAuth:
		return gmailprov.New(ctx, gmailprov.Config{
			CredentialsFile: sc.CredentialsFile,
			TokenFile:       sc.TokenFile,
			Authorize: func(authURL string) (string, error) {
				u.Info("Open this URL in your browser, sign in, and grant permission to send emails:")
				fmt.Fprintf(os.Stdout, "\n  %s\n\n", authURL)
				code, err := u.Prompt("Paste the authorization code", "")
				if err != nil {
					return "", err
				}
				if code == "" {
					return "", fmt.Errorf("no authorization code entered")
				}
				return code, nil
			},
		})

	case config.AuthAWS:
		return sesprov.New(ctx, sesprov.Config{
			Region:          sc.Region,
			AccessKeyID:     sc.AccessKeyID,
			SecretAccessKey: sc.SecretAccessKey,
			Sender:          sc.Email,
		})

	case config.AuthNone:
		return stdoutprov.New(), nil

	default:
		return nil, fmt.Errorf("unknown auth mode %q", sc.Auth)
	}
}
