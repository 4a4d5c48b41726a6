// Package email sends transactional messages through Postmark, or writes them
// to disk in development.
//
// The billing service uses it to alert the support mailbox when a paid
// checkout could not be persisted.
//
//	sender, err := email.NewSender(cfg)
//	if err != nil {
//		return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   cfg.SupportEmail,
//		Subject:  "Paid checkout needs manual reconciliation",
//		BodyHTML: body,
//		Tag:      "billing-reconciliation",
//	})
//
// Failures wrap ErrFailedToSendEmail, ErrInvalidConfig or ErrInvalidParams.
package email
