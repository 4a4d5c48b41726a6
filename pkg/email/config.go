package email

// Config holds email delivery settings.
// Without Postmark tokens, NewSender falls back to writing messages to DevDir.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"` // reply-to and billing alert recipient
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"tmp/emails"`
}

// NewSender returns a Postmark sender when a server token is configured and a
// DevSender otherwise.
func NewSender(cfg Config) (EmailSender, error) {
	if cfg.PostmarkServerToken == "" {
		return NewDevSender(cfg.DevDir), nil
	}
	return NewPostmarkClient(cfg)
}
