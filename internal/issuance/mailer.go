package issuance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"

	"gopkg.in/gomail.v2"
)

// ErrMailerDisabled is returned by SendTicket when no SMTP host is set.
var ErrMailerDisabled = errors.New("mailer: smtp not configured")

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// TicketEmail is everything the confirmation email needs.
type TicketEmail struct {
	To         string
	Name       string
	EventTitle string
	EventDate  string
	InvoiceNo  string
	QRCode     []byte // PNG
}

const qrFilename = "ticket-qr.png"

var ticketTmpl = template.Must(template.New("ticket").Parse(`<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
<p>Your ticket for <strong>{{.EventTitle}}</strong>{{if .EventDate}} ({{.EventDate}}){{end}} is confirmed.</p>
<p>Invoice: <strong>{{.InvoiceNo}}</strong></p>
<p>Show this code at the door:</p>
<p><img src="cid:` + qrFilename + `" alt="Ticket QR code"></p>
`))

// SMTPMailer sends confirmation emails over SMTP.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(m *gomail.Message) error
}

// NewSMTPMailer returns a mailer for cfg.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	m := &SMTPMailer{cfg: cfg}
	m.send = func(msg *gomail.Message) error {
		return gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password).DialAndSend(msg)
	}
	return m
}

// SendTicket delivers the confirmation email.  gomail has no context
// support, so the send runs in a goroutine and ctx only bounds how long
// the caller waits for it.
func (m *SMTPMailer) SendTicket(ctx context.Context, e TicketEmail) error {
	if m.cfg.Host == "" {
		return ErrMailerDisabled
	}
	msg, err := m.message(e)
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- m.send(msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

func (m *SMTPMailer) message(e TicketEmail) (*gomail.Message, error) {
	var body bytes.Buffer
	if err := ticketTmpl.Execute(&body, e); err != nil {
		return nil, fmt.Errorf("render email: %w", err)
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetAddressHeader("To", e.To, e.Name)
	msg.SetHeader("Subject", fmt.Sprintf("Your ticket for %s", e.EventTitle))
	msg.SetBody("text/html", body.String())
	if len(e.QRCode) > 0 {
		png := e.QRCode
		msg.Embed(qrFilename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(png)
			return err
		}))
	}
	return msg, nil
}
