package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

var passwordResetHTML = htmltemplate.Must(htmltemplate.New("reset").Parse(`<p>Hello {{.Name}},</p>
<p>We received a request to reset your password. The link below is valid for {{.Validity}}.</p>
<p><a href="{{.Link}}">Reset your password</a></p>
<p>If you did not ask for this, you can ignore this email.</p>`))

var passwordResetText = texttemplate.Must(texttemplate.New("reset").Parse(`Hello {{.Name}},

We received a request to reset your password. The link below is valid for {{.Validity}}.

{{.Link}}

If you did not ask for this, you can ignore this email.
`))

var documentHTML = htmltemplate.Must(htmltemplate.New("document").Parse(`<p>Dear {{.CustomerName}},</p>
<p>Please find the details of {{.Kind}} {{.Number}} from {{.CompanyName}}.</p>
<table>
<tr><td>Amount</td><td>{{.Amount}}</td></tr>
<tr><td>{{.DateLabel}}</td><td>{{.Date}}</td></tr>
</table>
{{if .Notes}}<p>{{.Notes}}</p>{{end}}
<p>Kind regards,<br>{{.CompanyName}}</p>`))

var documentText = texttemplate.Must(texttemplate.New("document").Parse(`Dear {{.CustomerName}},

Please find the details of {{.Kind}} {{.Number}} from {{.CompanyName}}.

Amount: {{.Amount}}
{{.DateLabel}}: {{.Date}}
{{if .Notes}}
{{.Notes}}
{{end}}
Kind regards,
{{.CompanyName}}
`))

// DocumentData feeds the invoice and quote notification templates.
type DocumentData struct {
	Kind         string // "invoice" or "quote"
	Number       string
	CustomerName string
	CompanyName  string
	Amount       string
	DateLabel    string // "Due date" or "Valid until"
	Date         string
	Notes        string
}

// Subject is the mail subject shared by the email and the mailto handoff.
func (d DocumentData) Subject() string {
	kind := d.Kind
	if kind != "" {
		kind = strings.ToUpper(kind[:1]) + kind[1:]
	}
	return fmt.Sprintf("%s %s from %s", kind, d.Number, d.CompanyName)
}

// Text renders the plain-text body.
func (d DocumentData) Text() (string, error) {
	var buf bytes.Buffer
	if err := documentText.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DocumentMessage builds the notification email for an invoice or quote.
func DocumentMessage(to string, d DocumentData) (*Message, error) {
	text, err := d.Text()
	if err != nil {
		return nil, err
	}
	var html bytes.Buffer
	if err := documentHTML.Execute(&html, d); err != nil {
		return nil, err
	}
	return &Message{
		To:       to,
		ToName:   d.CustomerName,
		Subject:  d.Subject(),
		Body:     text,
		BodyHTML: html.String(),
	}, nil
}

// PasswordResetMessage builds the reset email carrying link.
func PasswordResetMessage(to, name, link string, validity time.Duration) (*Message, error) {
	data := struct {
		Name     string
		Link     string
		Validity string
	}{Name: name, Link: link, Validity: humanDuration(validity)}

	var text, html bytes.Buffer
	if err := passwordResetText.Execute(&text, data); err != nil {
		return nil, err
	}
	if err := passwordResetHTML.Execute(&html, data); err != nil {
		return nil, err
	}
	return &Message{
		To:       to,
		ToName:   name,
		Subject:  "Reset your password",
		Body:     text.String(),
		BodyHTML: html.String(),
	}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	}
	return d.String()
}
