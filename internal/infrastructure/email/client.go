// Package email provides the email client for sending transactional emails.
package email

import (
	"errors"
	"fmt"

	"github.com/resendlabs/resend-go"

	"github.com/lingoreader/landing-go/internal/infrastructure/email/templates"
)

// ErrNotConfigured is returned by NewService when no API key is available.
var ErrNotConfigured = errors.New("email delivery is not configured")

// WelcomeEmail carries what the newsletter welcome needs.
type WelcomeEmail struct {
	To        string
	SiteName  string
	SiteURL   string
	SignupURL string
}

// Service defines the interface for sending emails, allowing for mock implementations in tests.
type Service interface {
	SendNewsletterWelcome(msg WelcomeEmail) error
}

// ResendClient is the concrete implementation of the email Service using the Resend API.
type ResendClient struct {
	client    *resend.Client
	fromEmail string
	fromName  string
}

// NewService creates a new email service client, returning the Service interface.
func NewService(apiKey, fromEmail, fromName string) (Service, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if fromEmail == "" {
		fromEmail = "hello@lingoreader.app"
	}
	if fromName == "" {
		fromName = "Lingo Reader"
	}

	return &ResendClient{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// SendNewsletterWelcome composes and sends the newsletter welcome email.
func (c *ResendClient) SendNewsletterWelcome(msg WelcomeEmail) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail),
		To:      []string{msg.To},
		Subject: fmt.Sprintf("Welcome to %s", msg.SiteName),
		Html:    RenderWelcome(msg),
	}

	if _, err := c.client.Emails.Send(params); err != nil {
		return fmt.Errorf("failed to send welcome email via Resend: %w", err)
	}
	return nil
}

// RenderWelcome renders the full welcome HTML.
func RenderWelcome(msg WelcomeEmail) string {
	content := templates.GetWelcomeEmailContent(templates.WelcomeEmailProps{
		SiteName:  msg.SiteName,
		SignupURL: msg.SignupURL,
	})
	return templates.GetEmailLayout(templates.EmailLayoutProps{
		Content:  content,
		SiteName: msg.SiteName,
		SiteURL:  msg.SiteURL,
	})
}
