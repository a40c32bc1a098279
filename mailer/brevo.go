package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// BrevoProvider sends through the Brevo transactional email API
// (POST {apiURL}/smtp/email with an api-key header).
type BrevoProvider struct {
	apiURL   string
	apiKey   string
	from     string
	fromName string
	client   *http.Client
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoSendRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	ReplyTo     *brevoContact  `json:"replyTo,omitempty"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent,omitempty"`
	TextContent string         `json:"textContent,omitempty"`
}

type brevoSendResponse struct {
	MessageID string `json:"messageId"`
}

func NewBrevoProvider(apiURL, apiKey, from, fromName string) *BrevoProvider {
	return &BrevoProvider{
		apiURL:   strings.TrimSuffix(apiURL, "/"),
		apiKey:   apiKey,
		from:     from,
		fromName: fromName,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *BrevoProvider) GetName() string {
	return "Brevo"
}

func (p *BrevoProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	req := brevoSendRequest{
		Sender:      brevoContact{Email: p.from, Name: p.fromName},
		To:          []brevoContact{{Email: message.To, Name: message.ToName}},
		Subject:     message.Subject,
		HTMLContent: message.BodyHTML,
		TextContent: message.Body,
	}
	if message.ReplyTo != "" {
		req.ReplyTo = &brevoContact{Email: message.ReplyTo}
	}
	if req.HTMLContent == "" && req.TextContent == "" {
		return nil, fmt.Errorf("brevo: empty message body")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("brevo: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/smtp/email", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("brevo: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("brevo: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("brevo API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out brevoSendResponse
	_ = json.Unmarshal(body, &out)
	return &SendResult{ProviderName: p.GetName(), ProviderID: out.MessageID}, nil
}
