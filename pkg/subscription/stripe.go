package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeConfig holds configuration for the Stripe checkout provider.
type StripeConfig struct {
	SecretKey  string `env:"STRIPE_SECRET_KEY,required"`
	APIBaseURL string `env:"STRIPE_API_BASE_URL"` // override for stripe-mock, empty in production
}

// StripeProvider implements CheckoutProvider for Stripe Checkout.
type StripeProvider struct {
	client *client.API
}

// NewStripeProvider creates a Stripe checkout provider.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if config.SecretKey == "" {
		return nil, ErrMissingAPIKey
	}

	// Retries belong to the caller, so the SDK's own network retries are off.
	backendCfg := &stripe.BackendConfig{MaxNetworkRetries: stripe.Int64(0)}
	if config.APIBaseURL != "" {
		backendCfg.URL = stripe.String(config.APIBaseURL)
	}

	sc := &client.API{}
	sc.Init(config.SecretKey, &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
	})
	return &StripeProvider{client: sc}, nil
}

// GetCheckoutSession retrieves the session with its line items and prices expanded.
func (p *StripeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items.data.price")

	sess, err := p.client.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve stripe checkout session: %w", err)
	}
	return checkoutFromStripe(sess)
}

func checkoutFromStripe(sess *stripe.CheckoutSession) (*CheckoutSession, error) {
	if sess == nil {
		return nil, errors.Join(ErrUnexpectedProviderResponse, errors.New("empty stripe checkout session"))
	}

	out := &CheckoutSession{
		ID:                sess.ID,
		PaymentStatus:     CheckoutPaymentStatus(sess.PaymentStatus),
		ClientReferenceID: sess.ClientReferenceID,
		Metadata:          sess.Metadata,
	}

	// Checkout sessions created by this application carry exactly one line item.
	if sess.LineItems != nil && len(sess.LineItems.Data) > 0 {
		if price := sess.LineItems.Data[0].Price; price != nil {
			out.PriceID = price.ID
			out.PriceMetadata = price.Metadata
		}
	}
	return out, nil
}
