package email

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"net/url"
	"time"

	"github.com/redmonkez12/otp-auth-api/internal/logging"
)

// Config holds the SMTP account and the values rendered into messages.
type Config struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	From         string
	FrontendURL  string
	CodeTTL      time.Duration
	ResetTTL     time.Duration
}

// sendMailFunc matches smtp.SendMail.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	cfg      Config
	sendMail sendMailFunc
}

func NewService(cfg Config) *Service {
	if cfg.From == "" {
		cfg.From = cfg.SMTPUser
	}
	return &Service{cfg: cfg, sendMail: smtp.SendMail}
}

// SendVerificationCode mails the one-time passcode for a pending registration.
func (s *Service) SendVerificationCode(ctx context.Context, toEmail, firstname, code string) error {
	data := struct {
		Firstname string
		Code      string
		Minutes   int
	}{
		Firstname: firstname,
		Code:      code,
		Minutes:   int(s.cfg.CodeTTL.Minutes()),
	}
	return s.deliver(ctx, "verification", toEmail, "Verify your email address", data)
}

// SendPasswordResetLink mails a link carrying the reset token.
func (s *Service) SendPasswordResetLink(ctx context.Context, toEmail, firstname, token string) error {
	data := struct {
		Firstname string
		ResetLink string
		Hours     int
	}{
		Firstname: firstname,
		ResetLink: fmt.Sprintf("%s/reset-password?token=%s", s.cfg.FrontendURL, url.QueryEscape(token)),
		Hours:     int(s.cfg.ResetTTL.Hours()),
	}
	return s.deliver(ctx, "passwordReset", toEmail, "Reset your password", data)
}

// SendPasswordResetConfirmation tells the user their password was changed.
func (s *Service) SendPasswordResetConfirmation(ctx context.Context, toEmail, firstname string) error {
	data := struct {
		Firstname string
	}{
		Firstname: firstname,
	}
	return s.deliver(ctx, "passwordChanged", toEmail, "Your password has been changed", data)
}

func (s *Service) deliver(ctx context.Context, name, toEmail, subject string, data any) error {
	logger := logging.GetLoggerFromContext(ctx)

	body, err := render(name, data)
	if err != nil {
		logger.Error("failed to render email template", "template", name, "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(toEmail, subject, body); err != nil {
		logger.Error("failed to send email", "template", name, "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("email sent", "template", name, "email", toEmail)
	return nil
}

func (s *Service) sendEmail(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPassword, s.cfg.SMTPHost)

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.cfg.From, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	return s.sendMail(addr, auth, s.cfg.From, []string{to}, msg)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}
