package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGridProvider struct {
	from     string
	fromName string
	client   *sendgrid.Client
}

func NewSendGridProvider(apiKey, from, fromName string) *SendGridProvider {
	return &SendGridProvider{
		from:     from,
		fromName: fromName,
		client:   sendgrid.NewSendClient(apiKey),
	}
}

func (p *SendGridProvider) GetName() string {
	return "SendGrid"
}

func (p *SendGridProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	from := mail.NewEmail(p.fromName, p.from)
	to := mail.NewEmail(message.ToName, message.To)
	m := mail.NewSingleEmail(from, message.Subject, to, message.Body, message.BodyHTML)
	if message.ReplyTo != "" {
		m.SetReplyTo(mail.NewEmail("", message.ReplyTo))
	}

	// transactional mail: links must not be rewritten
	tracking := mail.NewTrackingSettings()
	click := mail.NewClickTrackingSetting()
	click.SetEnable(false)
	click.SetEnableText(false)
	tracking.SetClickTracking(click)
	m.SetTrackingSettings(tracking)

	response, err := p.client.SendWithContext(ctx, m)
	if err != nil {
		return nil, err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("SendGrid API error: %d", response.StatusCode)
	}

	var messageID string
	if ids, ok := response.Headers["X-Message-Id"]; ok && len(ids) > 0 {
		messageID = ids[0]
	}
	return &SendResult{ProviderName: p.GetName(), ProviderID: messageID}, nil
}
