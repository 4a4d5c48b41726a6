package subscription

import (
	"context"
	"errors"
	"fmt"
	"html"
	"maps"
	"slices"
	"strings"

	"github.com/dmitrymomot/billing/pkg/email"
)

// EmailNotifier sends pending reconciliations to a support mailbox.
type EmailNotifier struct {
	sender  email.EmailSender
	sendTo  string
	subject string
}

// NewEmailNotifier returns a SupportNotifier delivering to sendTo.
// Panics if sender is nil or sendTo is empty.
func NewEmailNotifier(sender email.EmailSender, sendTo string) *EmailNotifier {
	if sender == nil {
		panic("subscription: email sender is required")
	}
	if sendTo == "" {
		panic("subscription: support address is required")
	}
	return &EmailNotifier{
		sender:  sender,
		sendTo:  sendTo,
		subject: "Paid checkout needs manual reconciliation",
	}
}

func (n *EmailNotifier) NotifyPendingReconciliation(ctx context.Context, p *PendingReconciliation) error {
	if p == nil {
		return errors.New("pending reconciliation is nil")
	}
	return n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   n.sendTo,
		Subject:  n.subject,
		BodyHTML: renderPendingHTML(p),
		Tag:      "billing-reconciliation",
	})
}

func renderPendingHTML(p *PendingReconciliation) string {
	var b strings.Builder
	b.WriteString("<p>A payment was captured but the entitlement could not be saved.</p><ul>")
	row := func(k, v string) {
		fmt.Fprintf(&b, "<li><b>%s</b>: %s</li>", k, html.EscapeString(v))
	}
	row("Record", p.ID.String())
	row("User", p.UserID.String())
	row("Plan", p.PlanID)
	row("Checkout session", p.SessionID)
	row("Price", p.PriceID)
	for _, k := range slices.Sorted(maps.Keys(p.PriceMetadata)) {
		row("Price metadata "+k, p.PriceMetadata[k])
	}
	row("Error", p.LastError)
	b.WriteString("</ul>")
	return b.String()
}
