package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/znz-systems/mailgate/internal/config"
)

type mockSESClient struct {
	calls     int
	lastInput *sesv2.SendEmailInput
	lastOpts  sesv2.Options
	err       error
}

func (m *mockSESClient) SendEmail(_ context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.calls++
	m.lastInput = params
	for _, fn := range optFns {
		fn(&m.lastOpts)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("test-message-id")}, nil
}

func TestSESForwarder_SendsRawContent(t *testing.T) {
	client := &mockSESClient{}
	fwd := NewSESForwarderWithClient("relay@example.com", client)
	raw := []byte("From: a@outside.com\r\n\r\nbody")

	if err := fwd.Forward(context.Background(), raw, "fallback@example.com"); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	in := client.lastInput
	if in == nil || in.Content == nil || in.Content.Raw == nil {
		t.Fatal("expected raw content input")
	}
	if string(in.Content.Raw.Data) != string(raw) {
		t.Fatalf("raw data changed: %q", in.Content.Raw.Data)
	}
	if len(in.Destination.ToAddresses) != 1 || in.Destination.ToAddresses[0] != "fallback@example.com" {
		t.Fatalf("unexpected destination: %v", in.Destination.ToAddresses)
	}
	if aws.ToString(in.FromEmailAddress) != "relay@example.com" {
		t.Fatalf("unexpected from: %q", aws.ToString(in.FromEmailAddress))
	}
	if client.lastOpts.RetryMaxAttempts != 1 {
		t.Fatalf("expected retries disabled, got %d attempts", client.lastOpts.RetryMaxAttempts)
	}
}

func TestSESForwarder_SingleAttemptOnError(t *testing.T) {
	apiErr := errors.New("throttled")
	client := &mockSESClient{err: apiErr}
	fwd := NewSESForwarderWithClient("", client)

	err := fwd.Forward(context.Background(), []byte("x"), "fallback@example.com")
	if !errors.Is(err, apiErr) {
		t.Fatalf("expected wrapped API error, got %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected one call, got %d", client.calls)
	}
	if client.lastInput.FromEmailAddress != nil {
		t.Fatal("expected no explicit from address")
	}
}

func TestNewForwarder(t *testing.T) {
	fwd, err := NewForwarder(context.Background(), &config.Config{ForwardProvider: config.ProviderLog})
	if err != nil || fwd.Name() != "log" {
		t.Fatalf("expected log forwarder, got %v (%v)", fwd, err)
	}

	fwd, err = NewForwarder(context.Background(), &config.Config{
		ForwardProvider: config.ProviderSMTP,
		SMTPHost:        "smtp.example.com",
		SMTPPort:        25,
		SMTPFrom:        "relay@example.com",
	})
	if err != nil || fwd.Name() != "smtp" {
		t.Fatalf("expected smtp forwarder, got %v (%v)", fwd, err)
	}

	if _, err := NewForwarder(context.Background(), &config.Config{ForwardProvider: "pigeon"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestLogForwarder(t *testing.T) {
	if err := (LogForwarder{}).Forward(context.Background(), []byte("x"), "fallback@example.com"); err != nil {
		t.Fatalf("log forwarder must succeed, got %v", err)
	}
}
