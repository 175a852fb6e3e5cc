package domain

import "fmt"

// Step identifies one of the three linear stages of the checkout wizard.
type Step int

const (
	StepAccount  Step = 1
	StepShipping Step = 2
	StepPayment  Step = 3
)

// Shipping method constants.
const (
	ShippingMethodFree    = "free"
	ShippingMethodExpress = "express"
)

// Canonical demo order values.
const (
	DefaultProductName  = "Sony wireless headphones"
	DefaultProductImage = "/headphones.jpg"
	DefaultProductPrice = 320.45
	DefaultQuantity     = 1
	DefaultSubtotal     = 316.55
	DefaultTax          = 3.45
	DefaultShipping     = 0.0
	DefaultTotal        = 320.45
)

// Token returns the URL query token for the step.
func (s Step) Token() string {
	switch s {
	case StepAccount:
		return "account"
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	default:
		return ""
	}
}

func (s Step) String() string {
	return s.Token()
}

// IsValid reports whether the step is one of the three wizard stages.
func (s Step) IsValid() bool {
	return s >= StepAccount && s <= StepPayment
}

// ParseStep maps a URL token back to a Step.
func ParseStep(token string) (Step, error) {
	switch token {
	case "account":
		return StepAccount, nil
	case "shipping":
		return StepShipping, nil
	case "payment":
		return StepPayment, nil
	default:
		return 0, fmt.Errorf("unknown step token %q", token)
	}
}

// Next returns the following step, clamped to StepPayment.
func (s Step) Next() Step {
	if s >= StepPayment {
		return StepPayment
	}
	return s + 1
}

// Prev returns the preceding step, clamped to StepAccount.
func (s Step) Prev() Step {
	if s <= StepAccount {
		return StepAccount
	}
	return s - 1
}

// AccountData holds the account step's committed field values.
type AccountData struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ShippingData holds the shipping step's committed field values.
type ShippingData struct {
	SavedAddress   string `json:"saved_address"`
	FirstLine      string `json:"first_line"`
	StreetName     string `json:"street_name"`
	Postcode       string `json:"postcode"`
	ShippingMethod string `json:"shipping_method"`
}

// PaymentData holds the payment step's committed field values.
type PaymentData struct {
	SavedCard       string `json:"saved_card"`
	NameOnCard      string `json:"name_on_card"`
	CardNumber      string `json:"card_number"`
	ExpirationMonth string `json:"expiration_month"`
	ExpirationYear  string `json:"expiration_year"`
	CVC             string `json:"cvc"`
}

// OrderSummary holds the order totals shown beside the wizard.
type OrderSummary struct {
	ProductName  string  `json:"product_name"`
	ProductImage string  `json:"product_image"`
	ProductPrice float64 `json:"product_price"`
	Quantity     int     `json:"quantity"`
	Subtotal     float64 `json:"subtotal"`
	Tax          float64 `json:"tax"`
	Shipping     float64 `json:"shipping"`
	Total        float64 `json:"total"`
}

// ChangeQuantity applies a quantity delta and recomputes the totals.
// Quantity never drops below 1. Tax and shipping carry over unchanged;
// only the subtotal and total scale with quantity.
func (o *OrderSummary) ChangeQuantity(delta int) {
	qty := o.Quantity + delta
	if qty < 1 {
		qty = 1
	}
	o.Quantity = qty
	o.Subtotal = o.ProductPrice*float64(qty) - o.Tax
	o.Total = o.Subtotal + o.Tax + o.Shipping
}

// CheckoutState is the full wizard state for one session. All fields are
// value types, so an assignment is a deep copy.
type CheckoutState struct {
	CurrentStep Step         `json:"current_step"`
	Account     AccountData  `json:"account"`
	Shipping    ShippingData `json:"shipping"`
	Payment     PaymentData  `json:"payment"`
	Summary     OrderSummary `json:"summary"`
}

// NewCheckoutState returns the fixed initial wizard state.
func NewCheckoutState() CheckoutState {
	return CheckoutState{
		CurrentStep: StepAccount,
		Shipping: ShippingData{
			ShippingMethod: ShippingMethodFree,
		},
		Summary: OrderSummary{
			ProductName:  DefaultProductName,
			ProductImage: DefaultProductImage,
			ProductPrice: DefaultProductPrice,
			Quantity:     DefaultQuantity,
			Subtotal:     DefaultSubtotal,
			Tax:          DefaultTax,
			Shipping:     DefaultShipping,
			Total:        DefaultTotal,
		},
	}
}

// AccountPatch carries a partial update of AccountData. Nil fields are left untouched.
type AccountPatch struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// Apply shallow-merges the patch into the bucket.
func (a *AccountData) Apply(p AccountPatch) {
	if p.Email != nil {
		a.Email = *p.Email
	}
	if p.Password != nil {
		a.Password = *p.Password
	}
}

// ShippingPatch carries a partial update of ShippingData.
type ShippingPatch struct {
	SavedAddress   *string `json:"saved_address,omitempty"`
	FirstLine      *string `json:"first_line,omitempty"`
	StreetName     *string `json:"street_name,omitempty"`
	Postcode       *string `json:"postcode,omitempty"`
	ShippingMethod *string `json:"shipping_method,omitempty"`
}

// Apply shallow-merges the patch into the bucket.
func (s *ShippingData) Apply(p ShippingPatch) {
	if p.SavedAddress != nil {
		s.SavedAddress = *p.SavedAddress
	}
	if p.FirstLine != nil {
		s.FirstLine = *p.FirstLine
	}
	if p.StreetName != nil {
		s.StreetName = *p.StreetName
	}
	if p.Postcode != nil {
		s.Postcode = *p.Postcode
	}
	if p.ShippingMethod != nil {
		s.ShippingMethod = *p.ShippingMethod
	}
}

// PaymentPatch carries a partial update of PaymentData.
type PaymentPatch struct {
	SavedCard       *string `json:"saved_card,omitempty"`
	NameOnCard      *string `json:"name_on_card,omitempty"`
	CardNumber      *string `json:"card_number,omitempty"`
	ExpirationMonth *string `json:"expiration_month,omitempty"`
	ExpirationYear  *string `json:"expiration_year,omitempty"`
	CVC             *string `json:"cvc,omitempty"`
}

// Apply shallow-merges the patch into the bucket.
func (d *PaymentData) Apply(p PaymentPatch) {
	if p.SavedCard != nil {
		d.SavedCard = *p.SavedCard
	}
	if p.NameOnCard != nil {
		d.NameOnCard = *p.NameOnCard
	}
	if p.CardNumber != nil {
		d.CardNumber = *p.CardNumber
	}
	if p.ExpirationMonth != nil {
		d.ExpirationMonth = *p.ExpirationMonth
	}
	if p.ExpirationYear != nil {
		d.ExpirationYear = *p.ExpirationYear
	}
	if p.CVC != nil {
		d.CVC = *p.CVC
	}
}

// SummaryPatch carries a partial update of OrderSummary.
type SummaryPatch struct {
	ProductName  *string  `json:"product_name,omitempty"`
	ProductImage *string  `json:"product_image,omitempty"`
	ProductPrice *float64 `json:"product_price,omitempty"`
	Quantity     *int     `json:"quantity,omitempty"`
	Subtotal     *float64 `json:"subtotal,omitempty"`
	Tax          *float64 `json:"tax,omitempty"`
	Shipping     *float64 `json:"shipping,omitempty"`
	Total        *float64 `json:"total,omitempty"`
}

// Apply shallow-merges the patch into the bucket.
func (o *OrderSummary) Apply(p SummaryPatch) {
	if p.ProductName != nil {
		o.ProductName = *p.ProductName
	}
	if p.ProductImage != nil {
		o.ProductImage = *p.ProductImage
	}
	if p.ProductPrice != nil {
		o.ProductPrice = *p.ProductPrice
	}
	if p.Quantity != nil {
		o.Quantity = *p.Quantity
	}
	if p.Subtotal != nil {
		o.Subtotal = *p.Subtotal
	}
	if p.Tax != nil {
		o.Tax = *p.Tax
	}
	if p.Shipping != nil {
		o.Shipping = *p.Shipping
	}
	if p.Total != nil {
		o.Total = *p.Total
	}
}
