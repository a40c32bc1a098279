// Package mailer sends transactional email (password resets, invoice notifications)
// through a chain of providers.
package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"invoicing-backend/config"
	"invoicing-backend/logger"
)

// Message is one outgoing email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	Body     string // plain text
	BodyHTML string
	ReplyTo  string
}

// SendResult describes a delivered message.
type SendResult struct {
	ProviderName string
	ProviderID   string
}

// Provider is one way of delivering email.
type Provider interface {
	Send(ctx context.Context, message *Message) (*SendResult, error)
	GetName() string
}

// New builds the provider chain from configuration: Brevo first, SendGrid as fallback.
// Without any API key, mail is only logged.
func New(cfg config.EmailConfig) Provider {
	var providers []Provider
	if cfg.BrevoAPIKey != "" {
		providers = append(providers, NewBrevoProvider(cfg.BrevoAPIURL, cfg.BrevoAPIKey, cfg.FromEmail, cfg.FromName))
	}
	if cfg.SendGridAPIKey != "" {
		providers = append(providers, NewSendGridProvider(cfg.SendGridAPIKey, cfg.FromEmail, cfg.FromName))
	}
	if len(providers) == 0 {
		logger.Component("mailer").Warn("no email provider configured, emails are logged only")
		return NewLogProvider()
	}
	return NewFailoverProvider(providers, 0, 0)
}

// FailoverProvider tries each provider in order until one succeeds.
type FailoverProvider struct {
	providers  []Provider
	maxRetries int
	retryDelay time.Duration
}

// NewFailoverProvider drops nil providers; maxRetries is per provider.
func NewFailoverProvider(providers []Provider, maxRetries int, retryDelay time.Duration) *FailoverProvider {
	valid := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			valid = append(valid, p)
		}
	}
	return &FailoverProvider{providers: valid, maxRetries: maxRetries, retryDelay: retryDelay}
}

func (f *FailoverProvider) GetName() string {
	return "Failover"
}

func (f *FailoverProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	if len(f.providers) == 0 {
		return nil, fmt.Errorf("no email providers configured")
	}
	log := logger.Component("mailer")

	var allErrors []string
	for i, provider := range f.providers {
		name := provider.GetName()
		for attempt := 0; attempt <= f.maxRetries; attempt++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if attempt > 0 && f.retryDelay > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(f.retryDelay):
				}
			}

			result, err := provider.Send(ctx, message)
			if err == nil {
				if i > 0 {
					log.WithField("provider", name).Info("email sent via fallback provider")
				}
				return result, nil
			}
			allErrors = append(allErrors, fmt.Sprintf("%s: %v", name, err))
			log.WithError(err).WithField("provider", name).WithField("attempt", attempt+1).Warn("email provider failed")
		}
	}
	return nil, fmt.Errorf("all email providers failed: %s", strings.Join(allErrors, "; "))
}

// LogProvider writes the message to the log instead of sending it.
type LogProvider struct{}

func NewLogProvider() *LogProvider {
	return &LogProvider{}
}

func (p *LogProvider) GetName() string {
	return "Log"
}

func (p *LogProvider) Send(_ context.Context, message *Message) (*SendResult, error) {
	logger.Component("mailer").
		WithField("to", MaskEmail(message.To)).
		WithField("subject", message.Subject).
		Info("email not sent (no provider configured)")
	return &SendResult{ProviderName: p.GetName()}, nil
}

// MaskEmail keeps the first character of the local part: jane@x.io -> j***@x.io.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
