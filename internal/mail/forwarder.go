package mail

import (
	"context"
	"fmt"

	"github.com/znz-systems/mailgate/internal/config"
)

// Forwarder re-sends a raw message to one address.
type Forwarder interface {
	Forward(ctx context.Context, raw []byte, to string) error
	Name() string
}

// NewForwarder builds the forwarder selected by FORWARD_PROVIDER.
func NewForwarder(ctx context.Context, cfg *config.Config) (Forwarder, error) {
	switch cfg.ForwardProvider {
	case config.ProviderSMTP:
		return NewSMTPForwarder(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	case config.ProviderSES:
		return NewSESForwarder(ctx, SESConfig{
			Region:          cfg.SESRegion,
			AccessKeyID:     cfg.SESAccessKeyID,
			SecretAccessKey: cfg.SESSecretAccessKey,
			From:            cfg.SESFrom,
		})
	case config.ProviderLog:
		return LogForwarder{}, nil
	default:
		return nil, fmt.Errorf("mail: unknown forward provider %q", cfg.ForwardProvider)
	}
}
