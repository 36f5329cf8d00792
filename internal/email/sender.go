package email

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/resend/resend-go/v2"
)

// Sender delivers platform emails. Implementations must be safe for
// concurrent use.
type Sender interface {
	SendInvitation(ctx context.Context, to, orgName, inviterName, acceptURL string) error
}

// Config holds delivery settings for the Resend-backed sender.
type Config struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// ResendSender implements Sender using Resend.
type ResendSender struct {
	client *resend.Client
	config Config
}

// NewResendSender returns a ResendSender, or an error when the config is incomplete.
func NewResendSender(config Config) (*ResendSender, error) {
	if config.APIKey == "" {
		return nil, errors.New("resend API key is required")
	}
	if config.FromEmail == "" {
		return nil, errors.New("from email is required")
	}
	return &ResendSender{client: resend.NewClient(config.APIKey), config: config}, nil
}

// SendInvitation sends an organization invitation with the accept link.
func (s *ResendSender) SendInvitation(ctx context.Context, to, orgName, inviterName, acceptURL string) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail),
		To:      []string{to},
		Subject: fmt.Sprintf("You've been invited to join %s", orgName),
		Html:    InvitationEmailTemplate(orgName, inviterName, acceptURL),
	}
	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		log.Printf("Failed to send invitation email to %s: %v", to, err)
		return fmt.Errorf("failed to send invitation email: %w", err)
	}
	log.Printf("Invitation email sent to %s (ID: %s)", to, sent.Id)
	return nil
}
