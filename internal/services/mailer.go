package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Mailer defines the interface for outbound notification email
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error
	SendInvitationEmail(ctx context.Context, email, code string, role string, expiresAt time.Time) error
}

// SESMailer sends email through AWS SES
type SESMailer struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewSESMailer creates an SES-backed mailer
func NewSESMailer(region, fromAddress, baseURL string, logger *slog.Logger) (*SESMailer, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESMailer{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

// SendVerificationEmail delivers the verification link for a pending
// registration. The plain token only ever travels in this email.
func (m *SESMailer) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	verificationLink := fmt.Sprintf("%s/verify?token=%s", m.baseURL, token)
	hoursLeft := int(time.Until(expiresAt).Round(time.Hour).Hours())

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>Verify your email address</h1>
        <p>Thanks for signing up. To activate your account, verify your email address:</p>
        <p><a href="%s" style="display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Verify Email Address</a></p>
        <p>Or copy this link into your browser:<br><code>%s</code></p>
        <p>This link expires in %d hours. If it expires, request a new one from the sign-up page.</p>
        <p>If you didn't sign up, you can ignore this email and no account will be created.</p>
    </div>
</body>
</html>
`, verificationLink, verificationLink, hoursLeft)

	textBody := fmt.Sprintf(`Verify your email address

Thanks for signing up. To activate your account, open this link:

%s

This link expires in %d hours. If it expires, request a new one from the sign-up page.

If you didn't sign up, you can ignore this email and no account will be created.
`, verificationLink, hoursLeft)

	return m.send(ctx, email, "Verify your email address", htmlBody, textBody)
}

// SendInvitationEmail delivers an invitation code to a future user
func (m *SESMailer) SendInvitationEmail(ctx context.Context, email, code string, role string, expiresAt time.Time) error {
	signupLink := fmt.Sprintf("%s/register?invite=%s", m.baseURL, code)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>You've been invited</h1>
        <p>You have been invited to create a %s account. Use the link below to sign up:</p>
        <p><a href="%s" style="display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Accept Invitation</a></p>
        <p>Your invitation code: <code>%s</code></p>
        <p>This invitation expires on %s.</p>
    </div>
</body>
</html>
`, role, signupLink, code, expiresAt.Format("January 2, 2006"))

	textBody := fmt.Sprintf(`You've been invited

You have been invited to create a %s account. Sign up here:

%s

Your invitation code: %s

This invitation expires on %s.
`, role, signupLink, code, expiresAt.Format("January 2, 2006"))

	return m.send(ctx, email, "You've been invited", htmlBody, textBody)
}

func (m *SESMailer) send(ctx context.Context, email, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(m.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := m.sesClient.SendEmail(ctx, input)
	if err != nil {
		m.logger.Error("failed to send email via SES",
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("email sent",
		slog.String("subject", subject),
		slog.String("message_id", *result.MessageId))
	return nil
}
