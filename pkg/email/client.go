// Package email provides an SMTP client for delivering email
// notifications.
package email

import (
	"context"
	"fmt"
	"net/mail"

	gomail "gopkg.in/mail.v2"

	"github.com/aliskhannn/notify-scheduler/pkg/delivery"
)

// Client represents an SMTP email client.
type Client struct {
	smtpHost string
	smtpPort int
	username string
	password string
	from     string
}

// NewClient creates an email Client for the given SMTP server.
func NewClient(smtpHost string, smtpPort int, username, password, from string) *Client {
	return &Client{
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		username: username,
		password: password,
		from:     from,
	}
}

// Deliver sends a notification email to the given address. A malformed
// recipient address is a permanent failure; SMTP transport errors are
// transient and left retryable.
func (c *Client) Deliver(ctx context.Context, to, content string) error {
	if _, err := mail.ParseAddress(to); err != nil {
		return delivery.Permanent(fmt.Errorf("invalid recipient address %q: %w", to, err))
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	message := gomail.NewMessage()

	message.SetHeader("From", c.from)
	message.SetHeader("To", to)
	message.SetHeader("Subject", "Notification")

	message.SetBody("text/plain", content)

	dialer := gomail.NewDialer(c.smtpHost, c.smtpPort, c.username, c.password)

	if err := dialer.DialAndSend(message); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}
