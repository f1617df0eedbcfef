// Package config provides provider presets and layered configuration loading
// (YAML file base, environment variable overrides) for the farewell claimer.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default file names for the Gmail OAuth flow, relative to the working directory.
const (
	DefaultCredentialsFile = "credentials.json"
	DefaultTokenFile       = "token.json"
)

// AuthMode describes how a provider authenticates the sender.
type AuthMode string

const (
	// AuthPassword authenticates an SMTP session with username/password
	// (usually an app password).
	AuthPassword AuthMode = "password"
	// AuthOAuth authenticates against the provider's HTTP API with OAuth 2.0.
	AuthOAuth AuthMode = "oauth"
	// AuthAWS authenticates with AWS credentials (static or default chain).
	AuthAWS AuthMode = "aws"
	// AuthNone performs no authentication. Used by the dry-run provider.
	AuthNone AuthMode = "none"
)

// Preset maps a provider identifier to its connection parameters plus operator
// guidance (note and help URL shown during interactive setup).
type Preset struct {
	ID       string
	Label    string
	Host     string
	Port     int
	StartTLS bool
	SSL      bool
	Auth     AuthMode
	Note     string
	HelpURL  string
}

// presets is the fixed provider table, in the order offered interactively.
var presets = []Preset{
	{
		ID:      "gmail-oauth",
		Label:   "Gmail (OAuth 2.0)",
		Auth:    AuthOAuth,
		Note:    "Uses OAuth 2.0 - no password required. Opens a browser consent page on first use.",
		HelpURL: "https://console.cloud.google.com/",
	},
	{
		ID:       "gmail",
		Label:    "Gmail (App Password)",
		Host:     "smtp.gmail.com",
		Port:     587,
		StartTLS: true,
		Auth:     AuthPassword,
		Note:     "Requires an App Password (enable 2FA first)",
		HelpURL:  "https://support.google.com/accounts/answer/185833",
	},
	{
		ID:       "outlook",
		Label:    "Outlook/Hotmail",
		Host:     "smtp-mail.outlook.com",
		Port:     587,
		StartTLS: true,
		Auth:     AuthPassword,
		Note:     "Use your regular Outlook/Hotmail credentials",
		HelpURL:  "https://support.microsoft.com/en-us/office/pop-imap-and-smtp-settings-for-outlook-com",
	},
	{
		ID:       "yahoo",
		Label:    "Yahoo",
		Host:     "smtp.mail.yahoo.com",
		Port:     587,
		StartTLS: true,
		Auth:     AuthPassword,
		Note:     "Generate an App Password in Yahoo Account settings",
		HelpURL:  "https://help.yahoo.com/kb/generate-third-party-passwords-sln15241.html",
	},
	{
		ID:       "icloud",
		Label:    "iCloud",
		Host:     "smtp.mail.me.com",
		Port:     587,
		StartTLS: true,
		Auth:     AuthPassword,
		Note:     "Generate an app-specific password at appleid.apple.com",
		HelpURL:  "https://support.apple.com/en-us/HT204397",
	},
	{
		ID:       "zoho",
		Label:    "Zoho",
		Host:     "smtp.zoho.com",
		Port:     587,
		StartTLS: true,
		Auth:     AuthPassword,
		Note:     "Use your Zoho Mail credentials",
		HelpURL:  "https://www.zoho.com/mail/help/zoho-smtp.html",
	},
	{
		ID:       "protonmail",
		Label:    "ProtonMail",
		Host:     "smtp.protonmail.ch",
		Port:     587,
		StartTLS: true,
		Auth:     AuthPassword,
		Note:     "Requires ProtonMail Bridge - not fully supported yet",
		HelpURL:  "https://protonmail.com/bridge/",
	},
	{
		ID:      "ses",
		Label:   "AWS SES",
		Auth:    AuthAWS,
		Note:    "Sender address must be verified in SES",
		HelpURL: "https://docs.aws.amazon.com/ses/latest/dg/verify-addresses-and-domains.html",
	},
	{
		ID:    "custom",
		Label: "Custom SMTP server",
		Auth:  AuthPassword,
		Note:  "Manual configuration of host, port and TLS mode",
	},
	{
		ID:    "dry-run",
		Label: "Dry run (print only)",
		Auth:  AuthNone,
		Note:  "Nothing is sent; composed messages are printed to stdout",
	},
}

// Presets returns the provider table in presentation order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// PresetByID looks up a preset by its identifier.
func PresetByID(id string) (Preset, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// Config holds the complete application configuration.
type Config struct {
	Provider string        `yaml:"provider"`
	Sender   SenderConfig  `yaml:"sender"`
	SMTP     SMTPConfig    `yaml:"smtp"`
	Gmail    GmailConfig   `yaml:"gmail"`
	SES      SESConfig     `yaml:"ses"`
	Output   OutputConfig  `yaml:"output"`
	Logging  LoggingConfig `yaml:"logging"`
}

// SenderConfig identifies the sending account.
type SenderConfig struct {
	Email       string `yaml:"email"`
	DisplayName string `yaml:"display_name"`
	Password    string `yaml:"password"`
}

// SMTPConfig holds connection settings for the custom SMTP provider.
// Ignored for presets that carry their own host and port.
type SMTPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	StartTLS    bool   `yaml:"starttls"`
	SSL         bool   `yaml:"ssl"`
	TLSCAFile   string `yaml:"tls_ca_file"`
	TLSInsecure bool   `yaml:"tls_insecure"`
}

// GmailConfig holds OAuth file locations for the Gmail API provider.
type GmailConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
}

// SESConfig holds AWS SES settings.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// OutputConfig controls where proof directories are created.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	return cfg, nil
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Gmail.CredentialsFile = DefaultCredentialsFile
	c.Gmail.TokenFile = DefaultTokenFile
	c.SMTP.Port = 587
	c.SMTP.StartTLS = true
	c.Output.Dir = "."
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("FAREWELL_PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("FAREWELL_SENDER_EMAIL"); v != "" {
		c.Sender.Email = v
	}
	if v := os.Getenv("FAREWELL_SENDER_NAME"); v != "" {
		c.Sender.DisplayName = v
	}
	if v := os.Getenv("FAREWELL_SENDER_PASSWORD"); v != "" {
		c.Sender.Password = v
	}

	if v := os.Getenv("FAREWELL_SMTP_HOST"); v != "" {
		c.SMTP.Host = v
	}
	if v := os.Getenv("FAREWELL_SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = port
		}
	}
	if v := os.Getenv("FAREWELL_SMTP_STARTTLS"); v != "" {
		c.SMTP.StartTLS = parseBool(v)
	}
	if v := os.Getenv("FAREWELL_SMTP_SSL"); v != "" {
		c.SMTP.SSL = parseBool(v)
	}
	if v := os.Getenv("FAREWELL_SMTP_TLS_CA_FILE"); v != "" {
		c.SMTP.TLSCAFile = v
	}
	if v := os.Getenv("FAREWELL_SMTP_TLS_INSECURE"); v != "" {
		c.SMTP.TLSInsecure = parseBool(v)
	}

	if v := os.Getenv("FAREWELL_GMAIL_CREDENTIALS_FILE"); v != "" {
		c.Gmail.CredentialsFile = v
	}
	if v := os.Getenv("FAREWELL_GMAIL_TOKEN_FILE"); v != "" {
		c.Gmail.TokenFile = v
	}

	if v := os.Getenv("FAREWELL_SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("FAREWELL_SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("FAREWELL_SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}

	if v := os.Getenv("FAREWELL_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("FAREWELL_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// parseBool treats "1", "true", "yes" and "on" (case-insensitive) as true.
func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// SendConfig is the fully resolved connection descriptor handed to the
// transport layer. Immutable once resolved.
type SendConfig struct {
	Provider string
	Auth     AuthMode

	// SMTP connection parameters (password auth only).
	Host        string
	Port        int
	StartTLS    bool
	SSL         bool
	TLSCAFile   string
	TLSInsecure bool

	// Sender identity. For OAuth the email is filled in from the
	// authenticated profile after the consent flow.
	Email       string
	DisplayName string
	Password    string

	// OAuth file locations.
	CredentialsFile string
	TokenFile       string

	// AWS SES settings.
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Resolve turns the selected provider into a fully populated SendConfig.
// It fails with a configuration error when required fields are missing:
// host and port for the custom provider, a credentials file path for OAuth,
// or a region for SES.
func (c *Config) Resolve(providerID string) (*SendConfig, error) {
	preset, ok := PresetByID(providerID)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", providerID)
	}

	sc := &SendConfig{
		Provider:    preset.ID,
		Auth:        preset.Auth,
		Host:        preset.Host,
		Port:        preset.Port,
		StartTLS:    preset.StartTLS,
		SSL:         preset.SSL,
		Email:       c.Sender.Email,
		DisplayName: c.Sender.DisplayName,
		Password:    c.Sender.Password,
	}

	switch preset.Auth {
	case AuthPassword:
		if preset.ID == "custom" {
			sc.Host = c.SMTP.Host
			sc.Port = c.SMTP.Port
			sc.StartTLS = c.SMTP.StartTLS
			sc.SSL = c.SMTP.SSL
			sc.TLSCAFile = c.SMTP.TLSCAFile
			sc.TLSInsecure = c.SMTP.TLSInsecure
			if sc.Host == "" {
				return nil, fmt.Errorf("custom provider requires an SMTP host")
			}
			if sc.Port <= 0 || sc.Port > 65535 {
				return nil, fmt.Errorf("custom provider requires a valid SMTP port, got %d", sc.Port)
			}
		}

	case AuthOAuth:
		sc.CredentialsFile = c.Gmail.CredentialsFile
		sc.TokenFile = c.Gmail.TokenFile
		if sc.CredentialsFile == "" {
			return nil, fmt.Errorf("gmail-oauth provider requires a credentials file path")
		}

	case AuthAWS:
		sc.Region = c.SES.Region
		sc.AccessKeyID = c.SES.AccessKeyID
		sc.SecretAccessKey = c.SES.SecretAccessKey
		if sc.Region == "" {
			return nil, fmt.Errorf("ses provider requires a region")
		}
	}

	return sc, nil
}
