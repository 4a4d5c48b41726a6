package subscription

import (
	"encoding/json"
	"testing"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func TestCheckoutFromStripe(t *testing.T) {
	t.Parallel()

	t.Run("expanded line item price", func(t *testing.T) {
		t.Parallel()
		raw := `{
			"id": "cs_test_123",
			"object": "checkout.session",
			"payment_status": "paid",
			"client_reference_id": "6f1c2a52-4a36-4f0c-9a8e-2d7c1f0e9b11",
			"metadata": {"plan_id": "pro_monthly"},
			"line_items": {
				"object": "list",
				"data": [{
					"id": "li_1",
					"object": "item",
					"price": {
						"id": "price_1",
						"object": "price",
						"metadata": {"license_scope": "lifetime", "feature_set_version": "v2"}
					}
				}]
			}
		}`
		var sess stripe.CheckoutSession
		require.NoError(t, json.Unmarshal([]byte(raw), &sess))

		got, err := checkoutFromStripe(&sess)
		require.NoError(t, err)
		assert.Equal(t, "cs_test_123", got.ID)
		assert.True(t, got.IsPaid())
		assert.Equal(t, "6f1c2a52-4a36-4f0c-9a8e-2d7c1f0e9b11", got.ClientReferenceID)
		assert.Equal(t, "pro_monthly", got.PlanID())
		assert.Equal(t, "price_1", got.PriceID)
		assert.Equal(t, "lifetime", got.PriceMetadata[MetadataLicenseScope])
		assert.Equal(t, "v2", got.PriceMetadata[MetadataFeatureSetVersion])
	})

	t.Run("no line items", func(t *testing.T) {
		t.Parallel()
		raw := `{"id": "cs_test_456", "object": "checkout.session", "payment_status": "no_payment_required"}`
		var sess stripe.CheckoutSession
		require.NoError(t, json.Unmarshal([]byte(raw), &sess))

		got, err := checkoutFromStripe(&sess)
		require.NoError(t, err)
		assert.Equal(t, CheckoutNoPaymentRequired, got.PaymentStatus)
		assert.False(t, got.IsPaid())
		assert.Empty(t, got.PriceID)
		assert.Empty(t, got.PlanID())
	})

	t.Run("nil session", func(t *testing.T) {
		t.Parallel()
		_, err := checkoutFromStripe(nil)
		assert.ErrorIs(t, err, ErrUnexpectedProviderResponse)
	})
}

func TestCheckoutFromPaddle(t *testing.T) {
	t.Parallel()

	t.Run("completed transaction", func(t *testing.T) {
		t.Parallel()
		raw := `{
			"id": "txn_01",
			"status": "completed",
			"custom_data": {"customer_id": "6f1c2a52-4a36-4f0c-9a8e-2d7c1f0e9b11", "plan_id": "founder_lifetime", "seats": 3},
			"items": [{
				"price": {
					"id": "pri_01",
					"custom_data": {"feature_set_version": "v2"}
				},
				"quantity": 1
			}]
		}`
		var txn paddle.Transaction
		require.NoError(t, json.Unmarshal([]byte(raw), &txn))

		got, err := checkoutFromPaddle(&txn)
		require.NoError(t, err)
		assert.Equal(t, "txn_01", got.ID)
		assert.True(t, got.IsPaid())
		assert.Equal(t, "6f1c2a52-4a36-4f0c-9a8e-2d7c1f0e9b11", got.ClientReferenceID)
		assert.Equal(t, "founder_lifetime", got.PlanID())
		assert.Equal(t, "3", got.Metadata["seats"])
		assert.Equal(t, "pri_01", got.PriceID)
		assert.Equal(t, "v2", got.PriceMetadata[MetadataFeatureSetVersion])
	})

	t.Run("nil transaction", func(t *testing.T) {
		t.Parallel()
		_, err := checkoutFromPaddle(nil)
		assert.ErrorIs(t, err, ErrUnexpectedProviderResponse)
	})
}

func TestMapPaddleTransactionStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]CheckoutPaymentStatus{
		"paid":      CheckoutPaid,
		"completed": CheckoutPaid,
		"COMPLETED": CheckoutPaid,
		"draft":     CheckoutUnpaid,
		"ready":     CheckoutUnpaid,
		"billed":    CheckoutUnpaid,
		"past_due":  CheckoutUnpaid,
		"canceled":  CheckoutPaymentStatus("canceled"),
	}
	for in, want := range tests {
		assert.Equal(t, want, mapPaddleTransactionStatus(in), in)
	}
}

func TestStringifyCustomData(t *testing.T) {
	t.Parallel()

	assert.Nil(t, stringifyCustomData(nil))
	assert.Equal(t,
		map[string]string{"a": "x", "b": "true", "c": "1.5"},
		stringifyCustomData(paddle.CustomData{"a": "x", "b": true, "c": 1.5, "d": nil}),
	)
}

func TestNewProviders_RequireKeys(t *testing.T) {
	t.Parallel()

	_, err := NewStripeProvider(StripeConfig{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewPaddleProvider(PaddleConfig{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewPaddleProvider(PaddleConfig{APIKey: "pdl_test", Environment: "staging"})
	assert.ErrorIs(t, err, ErrInvalidProviderEnvironment)
}
