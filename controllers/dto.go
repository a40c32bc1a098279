package controllers

type CustomerInput struct {
	Name      string `json:"name" validate:"required,max=255"`
	Email     string `json:"email" validate:"omitempty,email,max=255" normalize:"lower"`
	Phone     string `json:"phone" validate:"max=64"`
	Address   string `json:"address" validate:"max=255"`
	City      string `json:"city" validate:"max=128"`
	Zip       string `json:"zip" validate:"max=32"`
	Country   string `json:"country" validate:"max=128"`
	VatNumber string `json:"vat_number" validate:"max=64"`
	Notes     string `json:"notes" validate:"max=2000"`
}

// CustomerPatch: only non-nil fields are updated.
type CustomerPatch struct {
	Name      *string `json:"name" validate:"omitempty,min=1,max=255"`
	Email     *string `json:"email" validate:"omitempty,email,max=255" normalize:"lower"`
	Phone     *string `json:"phone" validate:"omitempty,max=64"`
	Address   *string `json:"address" validate:"omitempty,max=255"`
	City      *string `json:"city" validate:"omitempty,max=128"`
	Zip       *string `json:"zip" validate:"omitempty,max=32"`
	Country   *string `json:"country" validate:"omitempty,max=128"`
	VatNumber *string `json:"vat_number" validate:"omitempty,max=64"`
	Notes     *string `json:"notes" validate:"omitempty,max=2000"`
}

type ProductInput struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description string  `json:"description" validate:"max=2000"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	TaxRate     float64 `json:"tax_rate" validate:"gte=0,lte=100"`
	Unit        string  `json:"unit" validate:"max=32"`
}

type ProductPatch struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	UnitPrice   *float64 `json:"unit_price" validate:"omitempty,gte=0"`
	TaxRate     *float64 `json:"tax_rate" validate:"omitempty,gte=0,lte=100"`
	Unit        *string  `json:"unit" validate:"omitempty,max=32"`
}

type LineItemInput struct {
	ProductID   *uint   `json:"product_id"`
	Description string  `json:"description" validate:"required,max=1000"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	TaxRate     float64 `json:"tax_rate" validate:"gte=0,lte=100"`
}

type InvoiceInput struct {
	CustomerID uint            `json:"customer_id" validate:"required"`
	IssueDate  string          `json:"issue_date"`
	DueDate    string          `json:"due_date"`
	Notes      string          `json:"notes" validate:"max=4000"`
	Items      []LineItemInput `json:"items" validate:"required,min=1,dive"`
}

type QuoteInput struct {
	CustomerID uint            `json:"customer_id" validate:"required"`
	IssueDate  string          `json:"issue_date"`
	ExpiryDate string          `json:"expiry_date"`
	Notes      string          `json:"notes" validate:"max=4000"`
	Items      []LineItemInput `json:"items" validate:"required,min=1,dive"`
}

type StatementInput struct {
	CustomerID uint   `json:"customer_id" validate:"required"`
	StartDate  string `json:"start_date" validate:"required"`
	EndDate    string `json:"end_date" validate:"required"`
	Notes      string `json:"notes" validate:"max=4000"`
}

type StatementPatch struct {
	Notes *string `json:"notes" validate:"omitempty,max=4000"`
}

type StatusInput struct {
	Status string `json:"status" validate:"required"`
}

type RegisterInput struct {
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"max=100"`
	Email           string `json:"email" validate:"required,email,max=255" normalize:"lower"`
	Password        string `json:"password" validate:"required,min=8,max=72" normalize:"-"`
	PasswordConfirm string `json:"password_confirm" validate:"omitempty,eqfield=Password" normalize:"-"`
	CompanyName     string `json:"company_name" validate:"max=255"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email" normalize:"lower"`
	Password string `json:"password" validate:"required" normalize:"-"`
}

type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email" normalize:"lower"`
}

type ResetPasswordInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72" normalize:"-"`
}

type ProfilePatch struct {
	FirstName   *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName    *string `json:"last_name" validate:"omitempty,max=100"`
	CompanyName *string `json:"company_name" validate:"omitempty,max=255"`
	Address     *string `json:"address" validate:"omitempty,max=500"`
	Phone       *string `json:"phone" validate:"omitempty,max=64"`
	VatNumber   *string `json:"vat_number" validate:"omitempty,max=64"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required" normalize:"-"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72" normalize:"-"`
}

type SubscribeInput struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required"`
}

type AdminCreateUserInput struct {
	FirstName           string `json:"first_name" validate:"required,max=100"`
	LastName            string `json:"last_name" validate:"max=100"`
	Email               string `json:"email" validate:"required,email,max=255" normalize:"lower"`
	Password            string `json:"password" validate:"required,min=8,max=72" normalize:"-"`
	CompanyName         string `json:"company_name" validate:"max=255"`
	IsAdmin             bool   `json:"is_admin"`
	SubscriptionGranted bool   `json:"subscription_granted"`
}

type GrantInput struct {
	Granted bool `json:"granted"`
}

type SuspendInput struct {
	Suspended bool `json:"suspended"`
}

type StripeModeInput struct {
	Mode string `json:"mode" validate:"required,oneof=live test"`
}

type PageViewInput struct {
	Path     string `json:"path" validate:"required,max=512"`
	Referrer string `json:"referrer" validate:"max=512"`
}
