package alerts

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// MailSender is the subset of the SendGrid client used for alerts
type MailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailConfig holds SendGrid alert configuration
type EmailConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	ToEmail   string
	Subject   string
}

// EmailNotifier sends admin alerts as e-mails through SendGrid
type EmailNotifier struct {
	client MailSender
	config EmailConfig
	logger *zap.Logger
}

// NewEmailNotifier creates a SendGrid admin notifier
func NewEmailNotifier(config EmailConfig, logger *zap.Logger) (*EmailNotifier, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	return newEmailNotifier(sendgrid.NewSendClient(config.APIKey), config, logger)
}

func newEmailNotifier(client MailSender, config EmailConfig, logger *zap.Logger) (*EmailNotifier, error) {
	if strings.TrimSpace(config.FromEmail) == "" {
		return nil, fmt.Errorf("email from address is required")
	}
	if strings.TrimSpace(config.ToEmail) == "" {
		return nil, fmt.Errorf("admin email address is required")
	}
	if config.Subject == "" {
		config.Subject = "New deposit detected"
	}
	return &EmailNotifier{client: client, config: config, logger: logger}, nil
}

// Send e-mails message to the admin address
func (e *EmailNotifier) Send(ctx context.Context, message string) error {
	from := mail.NewEmail(e.config.FromName, e.config.FromEmail)
	to := mail.NewEmail("", e.config.ToEmail)
	htmlContent := "<pre>" + html.EscapeString(message) + "</pre>"
	msg := mail.NewSingleEmail(from, e.config.Subject, to, message, htmlContent)

	response, err := e.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		e.logger.Error("Email service returned error",
			zap.String("provider", "sendgrid"),
			zap.Int("status_code", response.StatusCode),
			zap.String("response_body", response.Body))
		return fmt.Errorf("email service error: status %d", response.StatusCode)
	}
	return nil
}
