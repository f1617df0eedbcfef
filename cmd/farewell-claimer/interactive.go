package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/farewell-protocol/farewell-claimer/internal/claimer"
	"github.com/farewell-protocol/farewell-claimer/internal/config"
	"github.com/farewell-protocol/farewell-claimer/internal/input"
	"github.com/farewell-protocol/farewell-claimer/internal/message"
	"github.com/farewell-protocol/farewell-claimer/internal/ui"
)

// chooseProvider shows the preset menu and returns the selected provider id.
func chooseProvider(u *ui.UI) (string, error) {
	u.Section("Email Provider")

	presets := config.Presets()
	options := make([]string, len(presets))
	for i, p := range presets {
		label := p.Label
		if p.Host != "" {
			label = fmt.Sprintf("%s (%s)", p.Label, p.Host)
		}
		options[i] = label
	}

	choice, err := u.Select("Select your email provider:", options)
	if err != nil {
		return "", err
	}
	selected := presets[choice]

	if selected.Note != "" {
		u.Warn("%s", selected.Note)
	}
	if selected.HelpURL != "" {
		u.Info("Help: %s", selected.HelpURL)
	}
	return selected.ID, nil
}

// resolveInteractive resolves the provider configuration, prompting for any
// required field that the config layers left empty. Outside interactive mode
// missing fields surface as configuration errors from Resolve.
func resolveInteractive(u *ui.UI, cfg *config.Config, id string, interactive bool) (*config.SendConfig, error) {
	preset, ok := config.PresetByID(id)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", id)
	}

	var err error
	if interactive {
		if id == "custom" && cfg.SMTP.Host == "" {
			u.Section("Custom SMTP Configuration")
			if cfg.SMTP.Host, err = u.Prompt("SMTP server hostname", ""); err != nil {
				return nil, err
			}
			portStr, err := u.Prompt("SMTP port", "587")
			if err != nil {
				return nil, err
			}
			if port, err := strconv.Atoi(portStr); err == nil {
				cfg.SMTP.Port = port
			}
			if cfg.SMTP.StartTLS, err = u.Confirm("Use STARTTLS?", true); err != nil {
				return nil, err
			}
			if !cfg.SMTP.StartTLS {
				if cfg.SMTP.SSL, err = u.Confirm("Use implicit SSL/TLS?", false); err != nil {
					return nil, err
				}
			}
		}
		if id == "ses" && cfg.SES.Region == "" {
			if cfg.SES.Region, err = u.Prompt("AWS region", "us-east-1"); err != nil {
				return nil, err
			}
		}

		needsIdentity := preset.Auth == config.AuthPassword || preset.Auth == config.AuthAWS || preset.Auth == config.AuthNone
		if needsIdentity && cfg.Sender.Email == "" {
			if cfg.Sender.Email, err = u.Prompt("Your email address", ""); err != nil {
				return nil, err
			}
		}
		if preset.Auth == config.AuthPassword && cfg.Sender.Password == "" {
			if cfg.Sender.Password, err = u.Password("Your password (or app password)"); err != nil {
				return nil, err
			}
		}
		if needsIdentity && cfg.Sender.DisplayName == "" {
			def := message.Sender{Email: cfg.Sender.Email}.Name()
			if cfg.Sender.DisplayName, err = u.Prompt("Display name (optional)", def); err != nil {
				return nil, err
			}
		}
	}

	return cfg.Resolve(id)
}

// collectRequest gathers the message fields interactively.
func collectRequest(u *ui.UI) (*input.Request, error) {
	u.Section("Message Information")
	u.Info("Enter the information from the decrypted Farewell message:")

	rcptLine, err := u.Prompt("Recipient email(s) (comma-separated for multiple)", "")
	if err != nil {
		return nil, err
	}
	recipients := input.SplitRecipients(rcptLine)
	hash, err := u.Prompt("Payload Content Hash (from contract, starts with 0x)", "")
	if err != nil {
		return nil, err
	}
	body := u.ReadMultiline("Enter the message content (end with an empty line):")

	req := &input.Request{
		Recipients:  recipients,
		ContentHash: hash,
		Message:     body,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// printRunSummary shows what is about to happen before the batch starts.
func printRunSummary(u *ui.UI, sender message.Sender, req *input.Request) {
	u.Section("Summary")
	u.Info("From: %s <%s>", sender.Name(), sender.Email)
	u.Info("Recipients: %s", strings.Join(req.Recipients, ", "))
	u.Info("Content Hash: %s", req.ContentHash)

	lines := strings.Split(req.Message, "\n")
	preview := lines
	if len(preview) > 3 {
		preview = preview[:3]
	}
	u.Info("Message Preview:")
	for _, line := range preview {
		if len(line) > 60 {
			line = line[:60] + "..."
		}
		u.Info("  %s", line)
	}
}

// printResults reports per-recipient outcomes and generated file paths.
func printResults(u *ui.UI, s *claimer.Summary) {
	u.Section("Results")

	succeeded := s.Succeeded()
	failed := s.Failed()

	if len(succeeded) > 0 {
		u.Success("%d email(s) sent successfully!", len(succeeded))
		if s.RunDir != "" {
			u.Info("Generated files in: %s/", s.RunDir)
		}
		for _, r := range succeeded {
			u.Success("%s", r.Recipient)
			u.Info("  .eml:   %s", r.EMLPath)
			u.Info("  proof:  %s", r.ProofPath)
		}
	}

	if len(failed) > 0 {
		u.Error("%d email(s) failed:", len(failed))
		for _, r := range failed {
			u.Error("  %s: %v", r.Recipient, r.Err)
		}
	}
}

// printNextSteps explains how to use the generated files on the claim page.
func printNextSteps(u *ui.UI) {
	u.Section("Next Steps")
	u.Info("To claim your reward on Farewell:")
	u.Info("  1. Go to the Farewell claim page")
	u.Info("  2. For each recipient, upload the corresponding .eml file")
	u.Info("  3. Click \"Prove Delivery\" for each recipient")
	u.Info("  4. Once all recipients are proven, click \"Claim Reward\"")
	u.Info("The proof files (.json) can also be used to submit proofs manually.")
}
