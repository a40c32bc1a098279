package models

// All lists every table owned by the service, in migration order.
func All() []any {
	return []any{
		&User{}, &Session{}, &AppSetting{},
		&Customer{}, &Product{},
		&Invoice{}, &Quote{}, &Statement{}, &StatementInvoice{},
		&RecycleBin{}, &DocumentSequence{}, &IdempotencyKey{}, &PageView{},
	}
}
