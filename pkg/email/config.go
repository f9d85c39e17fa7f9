package email

// Config holds email sender configuration.
// The Postmark tokens are optional so development environments can run
// with the DevSender; SenderEmail establishes the sender identity and
// SupportEmail the reply-to behavior for all outbound mail.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
}
