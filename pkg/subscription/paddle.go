package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle checkout provider.
type PaddleConfig struct {
	APIKey      string `env:"PADDLE_API_KEY,required"`
	Environment string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements CheckoutProvider on top of Paddle transactions.
// The checkout must be created with custom_data.customer_id set to the user ID
// and custom_data.plan_id set to the catalog plan.
type PaddleProvider struct {
	client *paddle.SDK
}

// NewPaddleProvider creates a Paddle checkout provider.
func NewPaddleProvider(config PaddleConfig) (*PaddleProvider, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(config.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(config.APIKey)
	case "production", "":
		client, err = paddle.New(config.APIKey)
	default:
		return nil, errors.Join(ErrInvalidProviderEnvironment, fmt.Errorf("environment %q", config.Environment))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddleProvider{client: client}, nil
}

// GetCheckoutSession reads the Paddle transaction with the given ID.
func (p *PaddleProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	txn, err := p.client.TransactionsClient.GetTransaction(ctx, &paddle.GetTransactionRequest{
		TransactionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get paddle transaction: %w", err)
	}
	return checkoutFromPaddle(txn)
}

func checkoutFromPaddle(txn *paddle.Transaction) (*CheckoutSession, error) {
	if txn == nil {
		return nil, errors.Join(ErrUnexpectedProviderResponse, errors.New("empty paddle transaction"))
	}

	custom := stringifyCustomData(txn.CustomData)
	out := &CheckoutSession{
		ID:                txn.ID,
		PaymentStatus:     mapPaddleTransactionStatus(string(txn.Status)),
		ClientReferenceID: custom["customer_id"],
		Metadata:          custom,
	}

	if len(txn.Items) > 0 {
		price := txn.Items[0].Price
		out.PriceID = price.ID
		out.PriceMetadata = stringifyCustomData(price.CustomData)
	}
	return out, nil
}

// mapPaddleTransactionStatus maps a Paddle transaction status onto the
// checkout payment status. Only "paid" and "completed" transactions have
// captured funds.
func mapPaddleTransactionStatus(status string) CheckoutPaymentStatus {
	switch strings.ToLower(status) {
	case "paid", "completed":
		return CheckoutPaid
	case "draft", "ready", "billed", "past_due":
		return CheckoutUnpaid
	default:
		return CheckoutPaymentStatus(status)
	}
}

func stringifyCustomData(data paddle.CustomData) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		switch tv := v.(type) {
		case string:
			out[k] = tv
		case nil:
		default:
			out[k] = fmt.Sprint(tv)
		}
	}
	return out
}
