// Package notify holds the outbound transports the auth gateway awaits
// synchronously: SMTP email and an HTTP SMS provider. Delivery failures
// surface as errors the caller maps to a server-side fault; they never roll
// back credentials that were already minted.
package notify

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
)

// SMTPConfig carries the connection settings for the mail relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Login    string
	Password string
	From     string
}

// SMTPSender delivers account email over a plain-auth SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig
	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

// SendPasswordReset emails the clickable reset link.
func (s *SMTPSender) SendPasswordReset(ctx context.Context, recipient, link string) error {
	plain := "Click the link to reset your password: " + link
	html := fmt.Sprintf(`<p>We received a request to reset the password for your account.</p>
<p><a href=%q>Reset password</a></p>
<p>If you did not request this, ignore this email. The link expires shortly.</p>`, link)
	return s.deliver(ctx, recipient, "Vendoor: Password Reset Request", plain, html)
}

// SendEmailOTP emails a one-time verification code.
func (s *SMTPSender) SendEmailOTP(ctx context.Context, recipient, code string) error {
	plain := "Your Vendoor verification code is: " + code
	html := fmt.Sprintf("<p>Your Vendoor verification code is: <strong>%s</strong></p>", code)
	return s.deliver(ctx, recipient, "Vendoor: Verification Code", plain, html)
}

func (s *SMTPSender) deliver(ctx context.Context, recipient, subject, plain, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(recipient) == "" {
		return fmt.Errorf("notify: recipient is required")
	}

	const boundary = "vendoor-alt-1"
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, plain)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, html)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Login != "" {
		auth = smtp.PlainAuth("", s.cfg.Login, s.cfg.Password, s.cfg.Host)
	}
	if err := s.send(addr, auth, s.cfg.From, []string{recipient}, []byte(b.String())); err != nil {
		return fmt.Errorf("notify: send mail: %w", err)
	}
	return nil
}
