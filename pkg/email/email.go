package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"eduadvise-backend/pkg/logger"
)

// EmailType represents the type of email to send
type EmailType string

const (
	EmailTypeNewMessage   EmailType = "new_message"
	EmailTypeIncomingCall EmailType = "incoming_call"
	EmailTypeWelcome      EmailType = "welcome"
)

// Email represents an email to be sent
type Email struct {
	To      string
	Subject string
	Text    string
	Type    EmailType
}

// Sender defines the interface for sending emails
type Sender interface {
	Send(ctx context.Context, email *Email) error
}

// MockSender logs emails instead of sending them. Used in development and tests.
type MockSender struct{}

// Send logs the email (mock implementation)
func (m *MockSender) Send(ctx context.Context, email *Email) error {
	logger.Info("Mock email sent",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("type", string(email.Type)))
	return nil
}

// SMTPConfig holds SMTP sender configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers email over plain SMTP with AUTH
type SMTPSender struct {
	cfg *SMTPConfig
}

// NewSMTPSender creates an SMTP-backed sender
func NewSMTPSender(cfg *SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send sends an email through the configured SMTP relay
func (s *SMTPSender) Send(ctx context.Context, email *Email) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", email.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", email.Subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(email.Text)

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{email.To}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

// Service composes and sends notification emails for users who were offline
// when a realtime event was addressed to them. Sending is best-effort: the
// caller logs failures and never propagates them.
type Service struct {
	sender Sender
}

// NewService creates a new email service
func NewService(sender Sender) *Service {
	return &Service{sender: sender}
}

// SendNewMessageNotification notifies an offline user about a new chat message
func (s *Service) SendNewMessageNotification(ctx context.Context, to, senderName, preview string) error {
	subject := fmt.Sprintf("New message from %s - EduAdvise", senderName)
	text := fmt.Sprintf(`Hello,

You have a new message from %s:

"%s"

Log in to EduAdvise to read and reply.

Best regards,
EduAdvise Team
`, senderName, preview)

	return s.sender.Send(ctx, &Email{To: to, Subject: subject, Text: text, Type: EmailTypeNewMessage})
}

// SendIncomingCallNotification notifies an offline user about a call they missed
func (s *Service) SendIncomingCallNotification(ctx context.Context, to, callerName, callType string) error {
	subject := fmt.Sprintf("Missed %s call from %s - EduAdvise", callType, callerName)
	text := fmt.Sprintf(`Hello,

You missed a %s call from %s.

Log in to EduAdvise to call back or send a message.

Best regards,
EduAdvise Team
`, callType, callerName)

	return s.sender.Send(ctx, &Email{To: to, Subject: subject, Text: text, Type: EmailTypeIncomingCall})
}

// SendWelcomeEmail greets a newly registered user
func (s *Service) SendWelcomeEmail(ctx context.Context, to, fullName string) error {
	subject := "Welcome to EduAdvise"
	text := fmt.Sprintf(`Hi %s,

Welcome to EduAdvise, the international student counseling platform.

Best regards,
EduAdvise Team
`, fullName)

	return s.sender.Send(ctx, &Email{To: to, Subject: subject, Text: text, Type: EmailTypeWelcome})
}
