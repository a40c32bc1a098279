// Package billing wraps the Stripe subscription lifecycle: customers, SetupIntents,
// subscriptions and webhooks, against either the live or the test account.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"invoicing-backend/config"
)

type Mode string

const (
	ModeLive Mode = "live"
	ModeTest Mode = "test"
)

func (m Mode) Valid() bool {
	return m == ModeLive || m == ModeTest
}

var (
	ErrNotConfigured    = errors.New("billing not configured")
	ErrInvalidSignature = errors.New("signature verification failed")
)

// Subscription is the part of a Stripe subscription mirrored onto the user.
type Subscription struct {
	ID               string
	CustomerID       string
	Status           string
	CurrentPeriodEnd *time.Time
}

// Event is a verified webhook event reduced to what the service acts on.
type Event struct {
	ID           string
	Type         string
	CustomerID   string
	Subscription *Subscription // customer.subscription.* events
	// SubscriptionID is set for invoice.* events
	SubscriptionID string
}

// SubscriptionRef is the subscription the event is about, or "" when Stripe sent none.
func (e *Event) SubscriptionRef() string {
	if e.Subscription != nil && e.Subscription.ID != "" {
		return e.Subscription.ID
	}
	return e.SubscriptionID
}

// Gateway is what the HTTP layer needs from the payment provider.
type Gateway interface {
	CreateCustomer(ctx context.Context, mode Mode, email, name, uid string) (string, error)
	CreateSetupIntent(ctx context.Context, mode Mode, customerID string) (string, error)
	Subscribe(ctx context.Context, mode Mode, customerID, paymentMethodID string) (*Subscription, error)
	Cancel(ctx context.Context, mode Mode, subscriptionID string) (*Subscription, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// StripeGateway keeps one API client per mode.
type StripeGateway struct {
	clients        map[Mode]*client.API
	prices         map[Mode]string
	webhookSecrets []string
}

func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	g := &StripeGateway{
		clients: map[Mode]*client.API{},
		prices:  map[Mode]string{ModeLive: cfg.LivePriceID, ModeTest: cfg.TestPriceID},
	}
	if cfg.LiveSecretKey != "" {
		g.clients[ModeLive] = client.New(cfg.LiveSecretKey, nil)
	}
	if cfg.TestSecretKey != "" {
		g.clients[ModeTest] = client.New(cfg.TestSecretKey, nil)
	}
	for _, s := range []string{cfg.LiveWebhookSecret, cfg.TestWebhookSecret} {
		if s != "" {
			g.webhookSecrets = append(g.webhookSecrets, s)
		}
	}
	return g
}

func (g *StripeGateway) api(mode Mode) (*client.API, error) {
	sc, ok := g.clients[mode]
	if !ok {
		return nil, fmt.Errorf("%w: no %s secret key", ErrNotConfigured, mode)
	}
	return sc, nil
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, mode Mode, email, name, uid string) (string, error) {
	sc, err := g.api(mode)
	if err != nil {
		return "", err
	}
	params := &stripe.CustomerParams{
		Email:    stripe.String(email),
		Name:     stripe.String(name),
		Metadata: map[string]string{"uid": uid},
	}
	params.Context = ctx
	cust, err := sc.Customers.New(params)
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

func (g *StripeGateway) CreateSetupIntent(ctx context.Context, mode Mode, customerID string) (string, error) {
	sc, err := g.api(mode)
	if err != nil {
		return "", err
	}
	params := &stripe.SetupIntentParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Usage:              stripe.String(string(stripe.SetupIntentUsageOffSession)),
	}
	params.Context = ctx
	si, err := sc.SetupIntents.New(params)
	if err != nil {
		return "", err
	}
	return si.ClientSecret, nil
}

func (g *StripeGateway) Subscribe(ctx context.Context, mode Mode, customerID, paymentMethodID string) (*Subscription, error) {
	sc, err := g.api(mode)
	if err != nil {
		return nil, err
	}
	price := g.prices[mode]
	if price == "" {
		return nil, fmt.Errorf("%w: no %s price id", ErrNotConfigured, mode)
	}

	cp := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	cp.Context = ctx
	if _, err := sc.Customers.Update(customerID, cp); err != nil {
		return nil, err
	}

	params := &stripe.SubscriptionParams{
		Customer:             stripe.String(customerID),
		Items:                []*stripe.SubscriptionItemsParams{{Price: stripe.String(price)}},
		DefaultPaymentMethod: stripe.String(paymentMethodID),
	}
	params.Context = ctx
	sub, err := sc.Subscriptions.New(params)
	if err != nil {
		return nil, err
	}
	return fromStripe(sub), nil
}

func (g *StripeGateway) Cancel(ctx context.Context, mode Mode, subscriptionID string) (*Subscription, error) {
	sc, err := g.api(mode)
	if err != nil {
		return nil, err
	}
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	sub, err := sc.Subscriptions.Cancel(subscriptionID, params)
	if err != nil {
		return nil, err
	}
	return fromStripe(sub), nil
}

// ParseWebhook verifies the signature against every configured secret (live and test
// share one endpoint) and decodes the events the service mirrors.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if len(g.webhookSecrets) == 0 {
		return nil, fmt.Errorf("%w: no webhook secret", ErrNotConfigured)
	}

	var (
		event stripe.Event
		err   error
	)
	for _, secret := range g.webhookSecrets {
		event, err = webhook.ConstructEventWithOptions(payload, signature, secret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("invalid subscription payload: %w", err)
		}
		out.Subscription = fromStripe(&sub)
		out.CustomerID = out.Subscription.CustomerID
	case "invoice.payment_succeeded", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("invalid invoice payload: %w", err)
		}
		if inv.Customer != nil {
			out.CustomerID = inv.Customer.ID
		}
		if inv.Subscription != nil {
			out.SubscriptionID = inv.Subscription.ID
		}
	}
	return out, nil
}

func fromStripe(sub *stripe.Subscription) *Subscription {
	out := &Subscription{ID: sub.ID, Status: string(sub.Status)}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &t
	}
	return out
}
