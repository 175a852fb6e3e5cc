package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/utafrali/checkout-wizard/pkg/errors"
	"github.com/utafrali/checkout-wizard/pkg/httpclient"

	"github.com/utafrali/checkout-wizard/internal/domain"
	"github.com/utafrali/checkout-wizard/internal/store"
	"github.com/utafrali/checkout-wizard/internal/validation"
)

// CircuitOpenFallback is a fallback for the order-completion circuit breaker.
// When the circuit is open, it returns a structured error with a retry hint
// instead of letting the raw ErrCircuitOpen propagate.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("checkout backend is temporarily unavailable, please retry after 30 seconds")
}

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// EventPublisher publishes wizard lifecycle events.
type EventPublisher interface {
	PublishWizardStarted(ctx context.Context, sessionID string, state domain.CheckoutState) error
	PublishWizardAdvanced(ctx context.Context, sessionID string, from, to domain.Step) error
	PublishOrderCompleted(ctx context.Context, sessionID, orderID string, state domain.CheckoutState) error
	PublishOrderFailed(ctx context.Context, sessionID, reason string) error
}

// FieldValidationError carries per-field validator messages for a rejected
// step submission. It maps to a 400 response with the field map attached.
type FieldValidationError struct {
	Fields map[string]string
}

func (e *FieldValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}

func (e *FieldValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// WizardService implements the checkout wizard's step transition policy on
// top of the session store and the checkout backend.
type WizardService struct {
	store           *store.SessionStore
	producer        EventPublisher
	logger          *slog.Logger
	httpClient      HTTPDoer
	backendURL      string
	completeTimeout time.Duration
	now             func() time.Time // injectable clock for expiry validation
}

// NewWizardService creates a new wizard service. completeTimeout bounds each
// backend call during order completion; zero means no per-call timeout.
func NewWizardService(
	sessions *store.SessionStore,
	producer EventPublisher,
	logger *slog.Logger,
	httpClient HTTPDoer,
	backendURL string,
	completeTimeout time.Duration,
) *WizardService {
	return &WizardService{
		store:           sessions,
		producer:        producer,
		logger:          logger,
		httpClient:      httpClient,
		backendURL:      backendURL,
		completeTimeout: completeTimeout,
		now:             time.Now,
	}
}

// StartSession creates a new wizard session with the fixed initial state.
func (s *WizardService) StartSession(ctx context.Context) (string, domain.CheckoutState, error) {
	id, state := s.store.Create()

	// Publish event; log but do not fail on error.
	if err := s.producer.PublishWizardStarted(ctx, id, state); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish wizard.started event",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "wizard session started",
		slog.String("session_id", id),
	)

	return id, state, nil
}

// GetState retrieves the current wizard state for a session.
func (s *WizardService) GetState(_ context.Context, sessionID string) (domain.CheckoutState, error) {
	state, err := s.store.Get(sessionID)
	if err != nil {
		return domain.CheckoutState{}, fmt.Errorf("get wizard session: %w", err)
	}
	return state, nil
}

// AccountInput holds the account step's submitted field values.
type AccountInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// requireStep rejects a submission when the session is not currently on the
// given step. Forward transitions are only reachable through the preceding
// step's submit, so calling a later-step endpoint out of order is a conflict.
func (s *WizardService) requireStep(sessionID string, step domain.Step) error {
	state, err := s.store.Get(sessionID)
	if err != nil {
		return fmt.Errorf("get wizard session: %w", err)
	}
	if state.CurrentStep != step {
		return apperrors.Conflict(fmt.Sprintf(
			"session is on the %s step; submit that step first", state.CurrentStep.Token(),
		))
	}
	return nil
}

// SubmitAccount validates the account step, commits it, and advances the
// wizard to the shipping step.
func (s *WizardService) SubmitAccount(ctx context.Context, sessionID string, input AccountInput) (domain.CheckoutState, error) {
	if err := s.requireStep(sessionID, domain.StepAccount); err != nil {
		return domain.CheckoutState{}, err
	}

	fields := make(map[string]string)
	if r := validation.Email(input.Email); !r.Valid {
		fields["email"] = r.Message
	}
	if r := validation.Password(input.Password); !r.Valid {
		fields["password"] = r.Message
	}
	if len(fields) > 0 {
		return domain.CheckoutState{}, &FieldValidationError{Fields: fields}
	}

	if _, err := s.store.UpdateAccount(sessionID, domain.AccountPatch{
		Email:    &input.Email,
		Password: &input.Password,
	}); err != nil {
		return domain.CheckoutState{}, fmt.Errorf("commit account data: %w", err)
	}

	state, err := s.store.Advance(sessionID)
	if err != nil {
		return domain.CheckoutState{}, fmt.Errorf("advance wizard step: %w", err)
	}

	s.publishAdvanced(ctx, sessionID, domain.StepAccount, state.CurrentStep)

	s.logger.InfoContext(ctx, "account step committed",
		slog.String("session_id", sessionID),
		slog.String("step", state.CurrentStep.Token()),
	)

	return state, nil
}

// ShippingInput holds the shipping step's submitted field values.
type ShippingInput struct {
	SavedAddress   string `json:"saved_address"`
	FirstLine      string `json:"first_line"`
	StreetName     string `json:"street_name"`
	Postcode       string `json:"postcode"`
	ShippingMethod string `json:"shipping_method"`
}

// SubmitShipping validates the shipping step, commits it, and advances the
// wizard to the payment step.
func (s *WizardService) SubmitShipping(ctx context.Context, sessionID string, input ShippingInput) (domain.CheckoutState, error) {
	if err := s.requireStep(sessionID, domain.StepShipping); err != nil {
		return domain.CheckoutState{}, err
	}

	fields := make(map[string]string)
	if r := validation.Required(input.FirstLine, "First line"); !r.Valid {
		fields["firstLine"] = r.Message
	}
	if r := validation.Required(input.StreetName, "Street name"); !r.Valid {
		fields["streetName"] = r.Message
	}
	if r := validation.Postcode(input.Postcode); !r.Valid {
		fields["postcode"] = r.Message
	}
	if len(fields) > 0 {
		return domain.CheckoutState{}, &FieldValidationError{Fields: fields}
	}

	method := input.ShippingMethod
	if method == "" {
		method = domain.ShippingMethodFree
	}
	if method != domain.ShippingMethodFree && method != domain.ShippingMethodExpress {
		return domain.CheckoutState{}, apperrors.InvalidInput("shipping method must be free or express")
	}

	if _, err := s.store.UpdateShipping(sessionID, domain.ShippingPatch{
		SavedAddress:   &input.SavedAddress,
		FirstLine:      &input.FirstLine,
		StreetName:     &input.StreetName,
		Postcode:       &input.Postcode,
		ShippingMethod: &method,
	}); err != nil {
		return domain.CheckoutState{}, fmt.Errorf("commit shipping data: %w", err)
	}

	state, err := s.store.Advance(sessionID)
	if err != nil {
		return domain.CheckoutState{}, fmt.Errorf("advance wizard step: %w", err)
	}

	s.publishAdvanced(ctx, sessionID, domain.StepShipping, state.CurrentStep)

	s.logger.InfoContext(ctx, "shipping step committed",
		slog.String("session_id", sessionID),
		slog.String("step", state.CurrentStep.Token()),
	)

	return state, nil
}

// PaymentInput holds the payment step's submitted field values.
type PaymentInput struct {
	SavedCard       string `json:"saved_card"`
	NameOnCard      string `json:"name_on_card"`
	CardNumber      string `json:"card_number"`
	ExpirationMonth string `json:"expiration_month"`
	ExpirationYear  string `json:"expiration_year"`
	CVC             string `json:"cvc"`
}

// CompletionResult is the outcome of a successful order completion.
type CompletionResult struct {
	OrderID           string               `json:"order_id"`
	Status            string               `json:"status"`
	EstimatedDelivery string               `json:"estimated_delivery"`
	Last4             string               `json:"last4"`
	State             domain.CheckoutState `json:"state"`
}

// CompleteOrder validates the payment step, commits it, and runs the order
// completion flow against the checkout backend: payment authorization first,
// then order confirmation. On failure the session stays on the payment step
// with the committed payment data intact; a retry is simply another call.
func (s *WizardService) CompleteOrder(ctx context.Context, sessionID string, input PaymentInput) (*CompletionResult, error) {
	if err := s.requireStep(sessionID, domain.StepPayment); err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	if r := validation.Required(input.NameOnCard, "Name on card"); !r.Valid {
		fields["nameOnCard"] = r.Message
	}
	if r := validation.CardNumber(input.CardNumber); !r.Valid {
		fields["cardNumber"] = r.Message
	}
	if r := validation.ExpirationMonth(input.ExpirationMonth); !r.Valid {
		fields["expirationMonth"] = r.Message
	}
	if r := validation.ExpirationYear(input.ExpirationYear, s.now); !r.Valid {
		fields["expirationYear"] = r.Message
	}
	if r := validation.CVC(input.CVC); !r.Valid {
		fields["cvc"] = r.Message
	}
	if len(fields) > 0 {
		return nil, &FieldValidationError{Fields: fields}
	}

	state, err := s.store.UpdatePayment(sessionID, domain.PaymentPatch{
		SavedCard:       &input.SavedCard,
		NameOnCard:      &input.NameOnCard,
		CardNumber:      &input.CardNumber,
		ExpirationMonth: &input.ExpirationMonth,
		ExpirationYear:  &input.ExpirationYear,
		CVC:             &input.CVC,
	})
	if err != nil {
		return nil, fmt.Errorf("commit payment data: %w", err)
	}

	last4, err := s.authorizePayment(ctx, sessionID, state.Payment)
	if err != nil {
		s.publishFailed(ctx, sessionID, err.Error())
		return nil, fmt.Errorf("authorize payment: %w", err)
	}

	order, err := s.confirmOrder(ctx, sessionID, state.Payment)
	if err != nil {
		s.publishFailed(ctx, sessionID, err.Error())
		return nil, fmt.Errorf("confirm order: %w", err)
	}

	// Publish completed event; log but do not fail on error.
	if err := s.producer.PublishOrderCompleted(ctx, sessionID, order.OrderID, state); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish wizard.order_completed event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order completed",
		slog.String("session_id", sessionID),
		slog.String("order_id", order.OrderID),
		slog.Float64("total", state.Summary.Total),
	)

	return &CompletionResult{
		OrderID:           order.OrderID,
		Status:            order.Status,
		EstimatedDelivery: order.EstimatedDelivery,
		Last4:             last4,
		State:             state,
	}, nil
}

// Back retreats the wizard one step, clamped at the account step.
func (s *WizardService) Back(ctx context.Context, sessionID string) (domain.CheckoutState, error) {
	state, err := s.store.Retreat(sessionID)
	if err != nil {
		return domain.CheckoutState{}, fmt.Errorf("retreat wizard step: %w", err)
	}

	s.logger.InfoContext(ctx, "wizard step retreated",
		slog.String("session_id", sessionID),
		slog.String("step", state.CurrentStep.Token()),
	)

	return state, nil
}

// Navigate applies a URL-driven step token with the route guard: a token
// beyond the account step is rejected unless the account email is already
// populated, and an unknown token is rejected outright. A rejected navigation
// forces the session back to the account step and reports redirected=true.
func (s *WizardService) Navigate(ctx context.Context, sessionID, token string) (domain.CheckoutState, bool, error) {
	step, err := domain.ParseStep(token)
	if err != nil {
		state, serr := s.store.SetCurrentStep(sessionID, domain.StepAccount)
		if serr != nil {
			return domain.CheckoutState{}, false, fmt.Errorf("reset wizard step: %w", serr)
		}
		return state, true, nil
	}

	if step > domain.StepAccount {
		current, err := s.store.Get(sessionID)
		if err != nil {
			return domain.CheckoutState{}, false, fmt.Errorf("get wizard session: %w", err)
		}
		if current.Account.Email == "" {
			state, serr := s.store.SetCurrentStep(sessionID, domain.StepAccount)
			if serr != nil {
				return domain.CheckoutState{}, false, fmt.Errorf("reset wizard step: %w", serr)
			}
			s.logger.WarnContext(ctx, "step navigation rejected by route guard",
				slog.String("session_id", sessionID),
				slog.String("requested_step", token),
			)
			return state, true, nil
		}
	}

	state, err := s.store.SetCurrentStep(sessionID, step)
	if err != nil {
		return domain.CheckoutState{}, false, fmt.Errorf("set wizard step: %w", err)
	}
	return state, false, nil
}

// ChangeQuantity applies a quantity delta and recomputes the order totals.
func (s *WizardService) ChangeQuantity(_ context.Context, sessionID string, delta int) (domain.CheckoutState, error) {
	state, err := s.store.ChangeQuantity(sessionID, delta)
	if err != nil {
		return domain.CheckoutState{}, fmt.Errorf("change quantity: %w", err)
	}
	return state, nil
}

// ApplyDiscount accepts a discount code. The code has no computed effect on
// the totals; it is an intentional stub in the storefront demo.
func (s *WizardService) ApplyDiscount(ctx context.Context, sessionID, code string) (domain.CheckoutState, error) {
	if strings.TrimSpace(code) == "" {
		return domain.CheckoutState{}, apperrors.InvalidInput("discount code is required")
	}

	state, err := s.store.Get(sessionID)
	if err != nil {
		return domain.CheckoutState{}, fmt.Errorf("get wizard session: %w", err)
	}

	s.logger.InfoContext(ctx, "discount code accepted",
		slog.String("session_id", sessionID),
		slog.String("code", code),
	)

	return state, nil
}

// Reset restores the session to the fixed initial state.
func (s *WizardService) Reset(ctx context.Context, sessionID string) (domain.CheckoutState, error) {
	state, err := s.store.Reset(sessionID)
	if err != nil {
		return domain.CheckoutState{}, fmt.Errorf("reset wizard session: %w", err)
	}

	s.logger.InfoContext(ctx, "wizard session reset",
		slog.String("session_id", sessionID),
	)

	return state, nil
}

// backendEnvelope mirrors the checkout backend's response envelope.
type backendEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// paymentRequest is the body for the backend payment and complete calls.
type paymentRequest struct {
	NameOnCard      string `json:"nameOnCard"`
	CardNumber      string `json:"cardNumber"`
	ExpirationMonth string `json:"expirationMonth"`
	ExpirationYear  string `json:"expirationYear"`
	CVC             string `json:"cvc"`
}

// orderConfirmation is the data payload of a successful complete call.
type orderConfirmation struct {
	OrderID           string `json:"orderId"`
	Status            string `json:"status"`
	EstimatedDelivery string `json:"estimatedDelivery"`
}

// authorizePayment posts the payment details to the backend and returns the
// card's last four digits from the response.
func (s *WizardService) authorizePayment(ctx context.Context, sessionID string, payment domain.PaymentData) (string, error) {
	var data struct {
		Last4 string `json:"last4"`
	}
	if err := s.postBackend(ctx, "/api/checkout/payment", payment, &data); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "payment authorized",
		slog.String("session_id", sessionID),
		slog.String("last4", data.Last4),
	)

	return data.Last4, nil
}

// confirmOrder posts the order confirmation to the backend.
func (s *WizardService) confirmOrder(ctx context.Context, sessionID string, payment domain.PaymentData) (*orderConfirmation, error) {
	var data orderConfirmation
	if err := s.postBackend(ctx, "/api/checkout/complete", payment, &data); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order confirmed by backend",
		slog.String("session_id", sessionID),
		slog.String("order_id", data.OrderID),
	)

	return &data, nil
}

// postBackend sends the payment fields to a backend endpoint and decodes the
// envelope's data payload into out.
func (s *WizardService) postBackend(ctx context.Context, path string, payment domain.PaymentData, out any) error {
	if s.completeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.completeTimeout)
		defer cancel()
	}

	req := paymentRequest{
		NameOnCard:      payment.NameOnCard,
		CardNumber:      payment.CardNumber,
		ExpirationMonth: payment.ExpirationMonth,
		ExpirationYear:  payment.ExpirationYear,
		CVC:             payment.CVC,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal backend request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.backendURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create backend request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(ctx, httpReq)
	if err != nil {
		return fmt.Errorf("call checkout backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpclient.ParseResponseError(resp, "checkout backend")
	}

	var envelope backendEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode backend response: %w", err)
	}
	if !envelope.Success {
		return apperrors.OrderFailed(envelope.Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode backend data payload: %w", err)
		}
	}

	return nil
}

// publishAdvanced publishes a wizard.advanced event; errors are logged only.
func (s *WizardService) publishAdvanced(ctx context.Context, sessionID string, from, to domain.Step) {
	if err := s.producer.PublishWizardAdvanced(ctx, sessionID, from, to); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish wizard.advanced event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

// publishFailed publishes a wizard.order_failed event; errors are logged only.
func (s *WizardService) publishFailed(ctx context.Context, sessionID, reason string) {
	if err := s.producer.PublishOrderFailed(ctx, sessionID, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish wizard.order_failed event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}
