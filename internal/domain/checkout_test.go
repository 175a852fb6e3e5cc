package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStep(t *testing.T) {
	tests := []struct {
		token   string
		want    Step
		wantErr bool
	}{
		{"account", StepAccount, false},
		{"shipping", StepShipping, false},
		{"payment", StepPayment, false},
		{"review", 0, true},
		{"", 0, true},
		{"Account", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseStep(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.token, got.Token())
		})
	}
}

func TestStep_NextPrevClamped(t *testing.T) {
	assert.Equal(t, StepShipping, StepAccount.Next())
	assert.Equal(t, StepPayment, StepShipping.Next())
	assert.Equal(t, StepPayment, StepPayment.Next())

	assert.Equal(t, StepAccount, StepAccount.Prev())
	assert.Equal(t, StepAccount, StepShipping.Prev())
	assert.Equal(t, StepShipping, StepPayment.Prev())
}

func TestNewCheckoutState_Defaults(t *testing.T) {
	state := NewCheckoutState()

	assert.Equal(t, StepAccount, state.CurrentStep)
	assert.Equal(t, ShippingMethodFree, state.Shipping.ShippingMethod)
	assert.Empty(t, state.Account.Email)

	assert.Equal(t, "Sony wireless headphones", state.Summary.ProductName)
	assert.Equal(t, "/headphones.jpg", state.Summary.ProductImage)
	assert.Equal(t, 320.45, state.Summary.ProductPrice)
	assert.Equal(t, 1, state.Summary.Quantity)
	assert.Equal(t, 316.55, state.Summary.Subtotal)
	assert.Equal(t, 3.45, state.Summary.Tax)
	assert.Equal(t, 0.0, state.Summary.Shipping)
	assert.Equal(t, 320.45, state.Summary.Total)
}

func TestOrderSummary_ChangeQuantity(t *testing.T) {
	state := NewCheckoutState()

	state.Summary.ChangeQuantity(1)
	assert.Equal(t, 2, state.Summary.Quantity)
	assert.InDelta(t, 637.45, state.Summary.Subtotal, 1e-9)
	assert.InDelta(t, 640.90, state.Summary.Total, 1e-9)

	// Tax and shipping never scale.
	assert.Equal(t, 3.45, state.Summary.Tax)
	assert.Equal(t, 0.0, state.Summary.Shipping)
}

func TestOrderSummary_ChangeQuantityFloorsAtOne(t *testing.T) {
	state := NewCheckoutState()

	state.Summary.ChangeQuantity(-5)
	assert.Equal(t, 1, state.Summary.Quantity)
	assert.InDelta(t, 317.00, state.Summary.Subtotal, 1e-9)
	assert.InDelta(t, 320.45, state.Summary.Total, 1e-9)
}

func TestAccountData_ApplyPartial(t *testing.T) {
	a := AccountData{Email: "old@example.com", Password: "hunter22"}
	email := "new@example.com"
	a.Apply(AccountPatch{Email: &email})

	assert.Equal(t, "new@example.com", a.Email)
	assert.Equal(t, "hunter22", a.Password)
}

func TestShippingData_ApplyPartial(t *testing.T) {
	s := ShippingData{FirstLine: "1 Main St", ShippingMethod: ShippingMethodFree}
	method := ShippingMethodExpress
	postcode := "SW1A 1AA"
	s.Apply(ShippingPatch{ShippingMethod: &method, Postcode: &postcode})

	assert.Equal(t, "1 Main St", s.FirstLine)
	assert.Equal(t, ShippingMethodExpress, s.ShippingMethod)
	assert.Equal(t, "SW1A 1AA", s.Postcode)
}

func TestPaymentData_ApplyPartial(t *testing.T) {
	p := PaymentData{NameOnCard: "J Doe", CVC: "123"}
	card := "4111111111111111"
	p.Apply(PaymentPatch{CardNumber: &card})

	assert.Equal(t, "J Doe", p.NameOnCard)
	assert.Equal(t, "4111111111111111", p.CardNumber)
	assert.Equal(t, "123", p.CVC)
}
