package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

type postmarkClient struct {
	client *postmark.Client
	config Config
}

// NewPostmarkClient creates a Postmark-backed sender. Both tokens and both
// addresses must be set.
func NewPostmarkClient(cfg Config) (EmailSender, error) {
	if err := cfg.validatePostmark(); err != nil {
		return nil, err
	}
	return &postmarkClient{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

func (c Config) validatePostmark() error {
	for _, f := range []struct{ name, value string }{
		{"PostmarkServerToken", c.PostmarkServerToken},
		{"PostmarkAccountToken", c.PostmarkAccountToken},
		{"SenderEmail", c.SenderEmail},
		{"SupportEmail", c.SupportEmail},
	} {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidConfig, f.name)
		}
	}
	for _, f := range []struct{ name, value string }{
		{"SenderEmail", c.SenderEmail},
		{"SupportEmail", c.SupportEmail},
	} {
		if !emailRegex.MatchString(f.value) {
			return fmt.Errorf("%w: %s must be a valid email address", ErrInvalidConfig, f.name)
		}
	}
	return nil
}

// SendEmail sends through Postmark's transactional API with Reply-To set to
// the support address. Billing alerts are internal, so tracking stays off.
func (c *postmarkClient) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:     c.config.SenderEmail,
		ReplyTo:  c.config.SupportEmail,
		To:       params.SendTo,
		Subject:  params.Subject,
		Tag:      params.Tag,
		HTMLBody: params.BodyHTML,
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}
