package routes

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"invoicing-backend/config"
	"invoicing-backend/controllers"
	"invoicing-backend/middlewares"
)

// NewApp builds the fiber app with the global middleware stack and every route.
// limiterStorage may be nil for the in-memory limiter.
func NewApp(cfg *config.Config, h *controllers.Handler, limiterStorage fiber.Storage) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    cfg.Server.BodyLimitBytes,
		AppName:      "invoicing-backend",
		// c.IP() reads the first valid address of ProxyHeader, only from trusted peers when listed
		ProxyHeader:             cfg.Server.ProxyHeader,
		EnableIPValidation:      cfg.Server.ProxyHeader != "",
		EnableTrustedProxyCheck: len(cfg.Server.TrustedProxies) > 0,
		TrustedProxies:          cfg.Server.TrustedProxies,
	})

	app.Use(middlewares.Metrics())
	app.Use(middlewares.RequestLogger())
	app.Use(recover.New())

	origins := cfg.Server.AllowedOrigins
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		// session cookies; browsers refuse credentials with a wildcard origin
		AllowCredentials: strings.TrimSpace(origins) != "*",
		AllowHeaders:     "Origin, Content-Type, Accept, Idempotency-Key, Stripe-Signature",
	}))

	if cfg.Server.RateLimitMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.Server.RateLimitMax,
			Expiration: cfg.Server.RateLimitWindow,
			Storage:    limiterStorage,
			Next: func(c *fiber.Ctx) bool {
				switch c.Path() {
				case "/health", "/ready", "/metrics", "/api/stripe/webhook":
					return true
				}
				return false
			},
		}))
	}

	Register(app, h)
	return app
}

// Register wires all HTTP routes.
func Register(app *fiber.App, h *controllers.Handler) {
	app.Get("/health", controllers.Health)
	app.Get("/ready", controllers.Ready)
	app.Get("/metrics", middlewares.MetricsHandler())

	api := app.Group("/api")

	// Public endpoints
	api.Post("/register", h.Register)
	api.Post("/login", h.Login)
	api.Post("/logout", h.Logout)
	api.Post("/forgot-password", h.ForgotPassword)
	api.Post("/reset-password", h.ResetPassword)
	api.Post("/stripe/webhook", h.StripeWebhook)
	api.Post("/analytics/pageview", h.RecordPageView)

	session := middlewares.RequireSession(h.Sessions)

	// Idempotency runs before the request transaction so its records outlive a rollback.
	account := []fiber.Handler{session, middlewares.Idempotency(), middlewares.TenantTx()}
	gated := []fiber.Handler{session, middlewares.RequireAccess(), middlewares.Idempotency(), middlewares.TenantTx()}

	api.Get("/me", session, h.Me)

	// Profile
	users := api.Group("/users", account...)
	users.Get("/me", controllers.GetProfile)
	users.Put("/me", controllers.UpdateProfile)
	users.Put("/me/password", controllers.ChangePassword)
	users.Post("/me/logo", h.UploadLogo)

	// Subscription
	bill := api.Group("/billing", account...)
	bill.Post("/setup-intent", h.CreateSetupIntent)
	bill.Post("/subscribe", h.Subscribe)
	bill.Post("/cancel", h.CancelSubscription)
	bill.Get("/status", h.BillingStatus)

	// Customers
	customers := api.Group("/customers", gated...)
	customers.Get("/", controllers.GetCustomers)
	customers.Post("/", controllers.CreateCustomer)
	customers.Get("/:id", controllers.GetCustomer)
	customers.Put("/:id", controllers.UpdateCustomer)
	customers.Delete("/:id", controllers.DeleteCustomer)

	// Products
	products := api.Group("/products", gated...)
	products.Get("/", controllers.GetProducts)
	products.Post("/", controllers.CreateProduct)
	products.Get("/:id", controllers.GetProduct)
	products.Put("/:id", controllers.UpdateProduct)
	products.Delete("/:id", controllers.DeleteProduct)

	// Invoices
	invoices := api.Group("/invoices", gated...)
	invoices.Get("/", controllers.GetInvoices)
	invoices.Post("/", h.CreateInvoice)
	invoices.Get("/:id", controllers.GetInvoice)
	invoices.Put("/:id", h.UpdateInvoice)
	invoices.Delete("/:id", controllers.DeleteInvoice)
	invoices.Put("/:id/status", h.UpdateInvoiceStatus)
	invoices.Get("/:id/mailto", controllers.InvoiceMailto)
	invoices.Post("/:id/email", h.EmailInvoice)

	// Quotes
	quotes := api.Group("/quotes", gated...)
	quotes.Get("/", controllers.GetQuotes)
	quotes.Post("/", h.CreateQuote)
	quotes.Get("/:id", controllers.GetQuote)
	quotes.Put("/:id", h.UpdateQuote)
	quotes.Delete("/:id", controllers.DeleteQuote)
	quotes.Put("/:id/status", controllers.UpdateQuoteStatus)
	quotes.Post("/:id/convert", h.ConvertQuote)
	quotes.Get("/:id/mailto", controllers.QuoteMailto)

	// Statements
	statements := api.Group("/statements", gated...)
	statements.Get("/", controllers.GetStatements)
	statements.Post("/", h.CreateStatement)
	statements.Get("/:id", controllers.GetStatement)
	statements.Put("/:id", controllers.UpdateStatement)
	statements.Delete("/:id", controllers.DeleteStatement)

	// Recycle bin
	bin := api.Group("/recycle-bin", gated...)
	bin.Get("/", controllers.GetRecycleBin)
	bin.Post("/:id/restore", controllers.RestoreRecycleBinEntry)
	bin.Delete("/:id", controllers.PurgeRecycleBinEntry)
	bin.Delete("/", controllers.EmptyRecycleBin)

	api.Get("/analytics/summary", append(gated, h.AnalyticsSummary)...)

	// Admin back-office
	admin := api.Group("/admin", session, middlewares.RequireAdmin(), middlewares.Idempotency(), middlewares.TenantTx())
	admin.Get("/users", h.AdminListUsers)
	admin.Post("/users", h.AdminCreateUser)
	admin.Put("/users/:uid/subscription", controllers.AdminSetSubscription)
	admin.Put("/users/:uid/suspend", controllers.AdminSetSuspended)
	admin.Delete("/users/:uid", controllers.AdminDeleteUser)
	admin.Post("/users/:uid/import/:kind", controllers.AdminImport)
	admin.Get("/stripe-mode", h.AdminGetStripeMode)
	admin.Put("/stripe-mode", controllers.AdminSetStripeMode)
	admin.Get("/analytics", h.AdminAnalytics)
}
