package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	From            string
}

// SendEmailAPI is the SES v2 operation the forwarder needs.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESForwarder relays raw messages through AWS SES.
type SESForwarder struct {
	from   string
	client SendEmailAPI
}

func NewSESForwarder(ctx context.Context, cfg SESConfig) (*SESForwarder, error) {
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
	return NewSESForwarderWithClient(cfg.From, sesv2.NewFromConfig(awsCfg)), nil
}

func NewSESForwarderWithClient(from string, client SendEmailAPI) *SESForwarder {
	return &SESForwarder{from: from, client: client}
}

// Forward makes exactly one SendEmail call; SDK retries are disabled.
func (s *SESForwarder) Forward(ctx context.Context, raw []byte, to string) error {
	input := &sesv2.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	}
	if s.from != "" {
		input.FromEmailAddress = aws.String(s.from)
	}

	_, err := s.client.SendEmail(ctx, input, func(o *sesv2.Options) {
		o.RetryMaxAttempts = 1
	})
	if err != nil {
		return fmt.Errorf("mail: SES send to %s: %w", to, err)
	}
	return nil
}

func (s *SESForwarder) Name() string {
	return "ses"
}
