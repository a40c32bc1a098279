package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"invoicing-backend/billing"
	"invoicing-backend/config"
	"invoicing-backend/controllers"
	"invoicing-backend/database"
	"invoicing-backend/geo"
	"invoicing-backend/mailer"
	"invoicing-backend/middlewares"
	"invoicing-backend/models"
	"invoicing-backend/routes"
	"invoicing-backend/storage"
	"invoicing-backend/testutil"
)

type recordedEvent struct {
	UID  string
	Type string
	Data any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, uid, eventType string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{UID: uid, Type: eventType, Data: data})
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []*mailer.Message
}

func (m *recordingMailer) Send(_ context.Context, msg *mailer.Message) (*mailer.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return &mailer.SendResult{ProviderName: "test", ProviderID: "msg-1"}, nil
}

func (m *recordingMailer) GetName() string { return "test" }

func (m *recordingMailer) messages() []*mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*mailer.Message(nil), m.sent...)
}

type fakeGateway struct {
	mu         sync.Mutex
	modes      []billing.Mode
	event      *billing.Event
	webhookErr error
}

func (g *fakeGateway) record(mode billing.Mode) {
	g.mu.Lock()
	g.modes = append(g.modes, mode)
	g.mu.Unlock()
}

func (g *fakeGateway) lastMode() billing.Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.modes) == 0 {
		return ""
	}
	return g.modes[len(g.modes)-1]
}

func (g *fakeGateway) CreateCustomer(_ context.Context, mode billing.Mode, _, _, _ string) (string, error) {
	g.record(mode)
	return "cus_test", nil
}

func (g *fakeGateway) CreateSetupIntent(_ context.Context, mode billing.Mode, _ string) (string, error) {
	g.record(mode)
	return "seti_secret", nil
}

func (g *fakeGateway) Subscribe(_ context.Context, mode billing.Mode, customerID, _ string) (*billing.Subscription, error) {
	g.record(mode)
	end := time.Now().UTC().AddDate(0, 1, 0).Truncate(time.Second)
	return &billing.Subscription{ID: "sub_test", CustomerID: customerID, Status: "active", CurrentPeriodEnd: &end}, nil
}

func (g *fakeGateway) Cancel(_ context.Context, mode billing.Mode, id string) (*billing.Subscription, error) {
	g.record(mode)
	return &billing.Subscription{ID: id, Status: "canceled"}, nil
}

func (g *fakeGateway) ParseWebhook([]byte, string) (*billing.Event, error) {
	return g.event, g.webhookErr
}

type testEnv struct {
	t       *testing.T
	app     *fiber.App
	db      *gorm.DB
	events  *recordingPublisher
	mail    *recordingMailer
	gateway *fakeGateway
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			AllowedOrigins:   "http://app.example.com",
			BodyLimitBytes:   4 << 20,
			FrontendURL:      "http://app.example.com",
			PaymentTermsDays: 30,
		},
		Session: config.SessionConfig{CookieName: "sid", SameSite: "Lax", Expiration: time.Hour},
		Auth:    config.AuthConfig{ResetSecret: "test-secret", ResetTTL: time.Hour, TrialDays: 14},
		Stripe:  config.StripeConfig{DefaultMode: "test"},
	}
}

func newEnv(t *testing.T, opts ...func(*config.Config)) *testEnv {
	t.Helper()
	db := testutil.OpenDB(t)
	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })

	cfg := testConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	env := &testEnv{
		t:       t,
		db:      db,
		events:  &recordingPublisher{},
		mail:    &recordingMailer{},
		gateway: &fakeGateway{},
	}
	h := &controllers.Handler{
		Config:   cfg,
		Sessions: middlewares.NewSessionStore(cfg.Session, database.NewSessionStorage(db)),
		Billing:  env.gateway,
		Mailer:   env.mail,
		Uploads:  storage.DisabledUploader{},
		Geo:      geo.NoopLocator{},
		Events:   env.events,
		Now:      time.Now,
	}
	env.app = routes.NewApp(cfg, h, nil)
	return env
}

// request sends a JSON request; body may be nil. cookie is a "name=value" pair.
func (e *testEnv) request(method, path, cookie string, body any, headers ...string) *http.Response {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func sessionCookie(t *testing.T, resp *http.Response) string {
	t.Helper()
	for _, ck := range resp.Cookies() {
		if ck.Name == "sid" && ck.Value != "" {
			return ck.Name + "=" + ck.Value
		}
	}
	t.Fatal("no session cookie in response")
	return ""
}

func (e *testEnv) login(email, password string) string {
	e.t.Helper()
	resp := e.request(http.MethodPost, "/api/login", "", fiber.Map{"email": email, "password": password})
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	return sessionCookie(e.t, resp)
}

// signIn creates an entitled user and returns it with a session cookie.
func (e *testEnv) signIn(email string) (*models.User, string) {
	e.t.Helper()
	u := testutil.CreateUser(e.t, e.db, email)
	return u, e.login(email, "secret123")
}

func (e *testEnv) signInAdmin(email string) (*models.User, string) {
	e.t.Helper()
	u := testutil.CreateUser(e.t, e.db, email)
	require.NoError(e.t, e.db.Model(u).Update("is_admin", true).Error)
	return u, e.login(email, "secret123")
}

func (e *testEnv) createCustomer(cookie, name, email string) models.Customer {
	e.t.Helper()
	resp := e.request(http.MethodPost, "/api/customers", cookie, fiber.Map{"name": name, "email": email})
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	var c models.Customer
	decode(e.t, resp, &c)
	return c
}

func (e *testEnv) createInvoice(cookie string, body fiber.Map) models.Invoice {
	e.t.Helper()
	resp := e.request(http.MethodPost, "/api/invoices", cookie, body)
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	var inv models.Invoice
	decode(e.t, resp, &inv)
	return inv
}

func sampleItems() []fiber.Map {
	return []fiber.Map{
		{"description": "Consulting", "quantity": 2, "unit_price": 100, "tax_rate": 19},
		{"description": "Hosting", "quantity": 1, "unit_price": 9.99, "tax_rate": 0},
	}
}
