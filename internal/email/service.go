// Package email sends account mail over SMTP. The service is a no-op source
// of errors when SMTP is unconfigured; callers decide whether that matters.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

func NewService(config Config) *Service {
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   smtp.PlainAuth("", config.Username, config.Password, config.Host),
	}
}

// IsConfigured reports whether the service can actually send.
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) fromHeader() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	return s.config.From
}

// SendEmail sends a plain text message.
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}
	msg := []byte(fmt.Sprintf(
		"To: %s\r\nFrom: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		strings.Join(to, ", "), s.fromHeader(), subject, body))
	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends a multipart message with a plain-text fallback.
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	const boundary = "boundary-folio"
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromHeader())
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n\r\n")
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

type accountMailData struct {
	UserName  string
	ActionURL string
}

// SendVerificationEmail mails the email-verification link.
func (s *Service) SendVerificationEmail(to, userName, verificationURL string) error {
	html, err := renderTemplate(verificationEmailTemplate, accountMailData{
		UserName:  userName,
		ActionURL: verificationURL,
	})
	if err != nil {
		return fmt.Errorf("render verification template: %w", err)
	}
	return s.SendHTMLEmail([]string{to}, "Verify your Folio account", html)
}

// SendPasswordResetEmail mails the password-reset link.
func (s *Service) SendPasswordResetEmail(to, userName, resetURL string) error {
	html, err := renderTemplate(passwordResetEmailTemplate, accountMailData{
		UserName:  userName,
		ActionURL: resetURL,
	})
	if err != nil {
		return fmt.Errorf("render password reset template: %w", err)
	}
	return s.SendHTMLEmail([]string{to}, "Reset your Folio password", html)
}

func renderTemplate(tmpl string, data any) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const verificationEmailTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Verify your Folio account</title></head>
<body style="font-family:sans-serif;max-width:600px;margin:0 auto;padding:20px;color:#222">
  <h1 style="border-bottom:2px solid #5b4bdb;padding-bottom:8px">Folio</h1>
  <h2>Welcome, {{.UserName}}!</h2>
  <p>Thanks for signing up. Verify your email address to activate your account.</p>
  <p><a href="{{.ActionURL}}" style="display:inline-block;padding:12px 24px;background:#5b4bdb;color:#fff;text-decoration:none;border-radius:4px">Verify Email Address</a></p>
  <p>Or copy and paste this link into your browser:</p>
  <p style="word-break:break-all"><a href="{{.ActionURL}}">{{.ActionURL}}</a></p>
  <p>This link expires in 24 hours.</p>
  <p style="font-size:12px;color:#666">If you didn't create a Folio account, you can ignore this email.</p>
</body>
</html>`

const passwordResetEmailTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Reset your Folio password</title></head>
<body style="font-family:sans-serif;max-width:600px;margin:0 auto;padding:20px;color:#222">
  <h1 style="border-bottom:2px solid #5b4bdb;padding-bottom:8px">Folio</h1>
  <h2>Password reset</h2>
  <p>Hi {{.UserName}},</p>
  <p>We received a request to reset your password.</p>
  <p><a href="{{.ActionURL}}" style="display:inline-block;padding:12px 24px;background:#5b4bdb;color:#fff;text-decoration:none;border-radius:4px">Reset Password</a></p>
  <p>Or copy and paste this link into your browser:</p>
  <p style="word-break:break-all"><a href="{{.ActionURL}}">{{.ActionURL}}</a></p>
  <p>This link expires in 1 hour. If you didn't request a reset, ignore this email and your password stays unchanged.</p>
</body>
</html>`
