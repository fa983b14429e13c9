package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	texttemplate "text/template"

	"github.com/resend/resend-go/v2"

	"github.com/HammerMeetNail/roots/internal/config"
	"github.com/HammerMeetNail/roots/internal/logging"
)

// Email represents an email to be sent
type Email struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailProvider is the interface for sending emails
type EmailProvider interface {
	Send(ctx context.Context, email *Email) error
}

// EmailService renders and sends notification emails.
type EmailService struct {
	provider EmailProvider
	from     string
	baseURL  string
}

// NewEmailService creates a new email service based on configuration
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	var provider EmailProvider

	switch cfg.Provider {
	case "resend":
		provider = NewResendProvider(cfg.ResendAPIKey)
	case "smtp":
		provider = NewSMTPProvider(cfg.SMTPHost, cfg.SMTPPort)
	default:
		provider = NewConsoleProvider()
	}

	return newEmailService(provider, cfg)
}

func newEmailService(provider EmailProvider, cfg *config.EmailConfig) *EmailService {
	return &EmailService{
		provider: provider,
		from:     fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress),
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
	}
}

var friendRequestHTML = template.Must(template.New("friend_request").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1 style="color: #2f5d3a; font-size: 24px;">{{.Sender}} wants to grow together</h1>

  <p>{{.Sender}} sent you a friend request on Roots. Friends can visit each other's gardens and cheer on their streaks.</p>

  <a href="{{.URL}}"
     style="display: inline-block; background: #3f7d4e; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; margin: 20px 0;">
    View Request
  </a>

  <p style="color: #666; font-size: 14px;">
    Or copy this link: {{.URL}}
  </p>

  <hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
  <p style="color: #999; font-size: 12px;">Roots</p>
</body>
</html>`))

var friendRequestText = texttemplate.Must(texttemplate.New("friend_request").Parse(`{{.Sender}} sent you a friend request on Roots.

Friends can visit each other's gardens and cheer on their streaks.

Respond here:
{{.URL}}

--
Roots`))

// SendFriendRequestEmail tells to that sender wants to be friends.
func (s *EmailService) SendFriendRequestEmail(ctx context.Context, to, sender string) error {
	data := struct {
		Sender string
		URL    string
	}{Sender: sender, URL: s.baseURL + "/#friends"}

	var html, text bytes.Buffer
	if err := friendRequestHTML.Execute(&html, data); err != nil {
		return fmt.Errorf("rendering friend request email: %w", err)
	}
	if err := friendRequestText.Execute(&text, data); err != nil {
		return fmt.Errorf("rendering friend request email: %w", err)
	}

	return s.provider.Send(ctx, &Email{
		From:    s.from,
		To:      to,
		Subject: fmt.Sprintf("%s sent you a friend request on Roots", sender),
		HTML:    html.String(),
		Text:    text.String(),
	})
}

// ResendProvider sends emails using the Resend API
type ResendProvider struct {
	client *resend.Client
}

func NewResendProvider(apiKey string) *ResendProvider {
	return &ResendProvider{client: resend.NewClient(apiKey)}
}

func (p *ResendProvider) Send(ctx context.Context, email *Email) error {
	params := &resend.SendEmailRequest{
		From:    email.From,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
	}

	if _, err := p.client.Emails.Send(params); err != nil {
		return fmt.Errorf("sending email via Resend: %w", err)
	}

	logging.Info("Email sent via Resend", map[string]interface{}{"to": email.To, "subject": email.Subject})
	return nil
}

// SMTPProvider sends emails via SMTP (Mailpit in local dev)
type SMTPProvider struct {
	host     string
	port     int
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPProvider(host string, port int) *SMTPProvider {
	return &SMTPProvider{host: host, port: port, sendMail: smtp.SendMail}
}

func (p *SMTPProvider) Send(ctx context.Context, email *Email) error {
	addr := fmt.Sprintf("%s:%d", p.host, p.port)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", email.From)
	fmt.Fprintf(&buf, "To: %s\r\n", email.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", email.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.HTML)

	if err := p.sendMail(addr, nil, envelopeAddress(email.From), []string{email.To}, buf.Bytes()); err != nil {
		return fmt.Errorf("sending email via SMTP: %w", err)
	}

	logging.Info("Email sent via SMTP", map[string]interface{}{"to": email.To, "subject": email.Subject})
	return nil
}

// envelopeAddress extracts addr from "Name <addr>".
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		return strings.TrimSuffix(from[i+1:], ">")
	}
	return from
}

// ConsoleProvider logs emails instead of sending them (development)
type ConsoleProvider struct{}

func NewConsoleProvider() *ConsoleProvider {
	return &ConsoleProvider{}
}

func (p *ConsoleProvider) Send(ctx context.Context, email *Email) error {
	logging.Info("Email (console provider)", map[string]interface{}{
		"to":      email.To,
		"subject": email.Subject,
		"body":    email.Text,
	})
	return nil
}
