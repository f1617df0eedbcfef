// Package ses implements a Provider that sends raw MIME messages via AWS
// SES v2. Raw submission keeps the exported .eml byte-identical to the
// transmitted message.
package ses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"

	"github.com/farewell-protocol/farewell-claimer/internal/message"
	"github.com/farewell-protocol/farewell-claimer/internal/provider"
)

// Config holds the configuration for creating a Provider.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Sender          string
}

// API is the subset of the SES v2 client the provider uses.
// Satisfied by *sesv2.Client; mocked in tests.
type API interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	GetAccount(ctx context.Context, params *sesv2.GetAccountInput, optFns ...func(*sesv2.Options)) (*sesv2.GetAccountOutput, error)
}

// Provider sends farewell messages through the AWS SES v2 API.
type Provider struct {
	sender string
	client API
}

// New creates a Provider with the given configuration. Static credentials
// are used when provided, otherwise the default AWS chain applies.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Provider{
		sender: cfg.Sender,
		client: sesv2.NewFromConfig(awsCfg),
	}, nil
}

// NewWithClient creates a Provider with a custom client, used for testing.
func NewWithClient(sender string, client API) *Provider {
	return &Provider{sender: sender, client: client}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "ses"
}

// Verify checks that the account is reachable with the configured
// credentials.
func (p *Provider) Verify(ctx context.Context) error {
	if _, err := p.client.GetAccount(ctx, &sesv2.GetAccountInput{}); err != nil {
		return p.wrap(err, "")
	}
	return nil
}

// Send submits the composed message bytes unchanged as a raw SES email.
func (p *Provider) Send(ctx context.Context, msg *message.Message) (*provider.Result, error) {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(p.sender),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: msg.Raw},
		},
	}

	out, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return nil, p.wrap(err, msg.To)
	}

	slog.Debug("ses message accepted",
		"recipient", msg.To,
		"ses_message_id", aws.ToString(out.MessageId),
	)

	return &provider.Result{
		Raw:       msg.Raw,
		MessageID: aws.ToString(out.MessageId),
	}, nil
}

// wrap maps an SES error onto the run-level taxonomy: credential and
// signature problems abort the run, everything else stays recipient-scoped.
func (p *Provider) wrap(err error, recipient string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "UnrecognizedClientException", "InvalidClientTokenId", "SignatureDoesNotMatch", "AccessDeniedException":
			return &provider.AuthError{Provider: p.Name(), Err: err}
		}
	}
	if recipient == "" {
		return fmt.Errorf("SES API error: %w", err)
	}
	return &provider.SendError{Provider: p.Name(), Recipient: recipient, Err: err}
}

// Close is a no-op; the SES client has no session to tear down.
func (p *Provider) Close() error {
	return nil
}
