package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/checkout-wizard/pkg/httputil"
	"github.com/utafrali/checkout-wizard/pkg/validator"

	"github.com/utafrali/checkout-wizard/internal/service"
)

// WizardHandler handles HTTP requests for the checkout wizard endpoints.
type WizardHandler struct {
	service *service.WizardService
	logger  *slog.Logger
}

// NewWizardHandler creates a new wizard HTTP handler.
func NewWizardHandler(svc *service.WizardService, logger *slog.Logger) *WizardHandler {
	return &WizardHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AccountRequest is the JSON request body for the account step.
type AccountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ShippingRequest is the JSON request body for the shipping step.
type ShippingRequest struct {
	SavedAddress   string `json:"saved_address"`
	FirstLine      string `json:"first_line"`
	StreetName     string `json:"street_name"`
	Postcode       string `json:"postcode"`
	ShippingMethod string `json:"shipping_method" validate:"omitempty,oneof=free express"`
}

// PaymentRequest is the JSON request body for the payment/complete step.
type PaymentRequest struct {
	SavedCard       string `json:"saved_card"`
	NameOnCard      string `json:"name_on_card"`
	CardNumber      string `json:"card_number"`
	ExpirationMonth string `json:"expiration_month"`
	ExpirationYear  string `json:"expiration_year"`
	CVC             string `json:"cvc"`
}

// QuantityRequest is the JSON request body for a quantity change.
type QuantityRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// DiscountRequest is the JSON request body for applying a discount code.
type DiscountRequest struct {
	Code string `json:"code" validate:"required"`
}

// --- Handlers ---

// CreateSession handles POST /api/v1/wizard.
func (h *WizardHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, state, err := h.service.StartSession(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: map[string]any{
		"session_id": id,
		"state":      state,
	}})
}

// GetSession handles GET /api/v1/wizard/{id}.
func (h *WizardHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	state, err := h.service.GetState(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: state})
}

// SubmitAccount handles POST /api/v1/wizard/{id}/account.
func (h *WizardHandler) SubmitAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	state, err := h.service.SubmitAccount(r.Context(), id, service.AccountInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: state})
}

// SubmitShipping handles POST /api/v1/wizard/{id}/shipping.
func (h *WizardHandler) SubmitShipping(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ShippingRequest
	if !h.decode(w, r, &req) {
		return
	}

	state, err := h.service.SubmitShipping(r.Context(), id, service.ShippingInput{
		SavedAddress:   req.SavedAddress,
		FirstLine:      req.FirstLine,
		StreetName:     req.StreetName,
		Postcode:       req.Postcode,
		ShippingMethod: req.ShippingMethod,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: state})
}

// CompleteOrder handles POST /api/v1/wizard/{id}/complete.
func (h *WizardHandler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.CompleteOrder(r.Context(), id, service.PaymentInput{
		SavedCard:       req.SavedCard,
		NameOnCard:      req.NameOnCard,
		CardNumber:      req.CardNumber,
		ExpirationMonth: req.ExpirationMonth,
		ExpirationYear:  req.ExpirationYear,
		CVC:             req.CVC,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Back handles POST /api/v1/wizard/{id}/back.
func (h *WizardHandler) Back(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	state, err := h.service.Back(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: state})
}

// ChangeQuantity handles POST /api/v1/wizard/{id}/quantity.
func (h *WizardHandler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req QuantityRequest
	if !h.decode(w, r, &req) {
		return
	}

	state, err := h.service.ChangeQuantity(r.Context(), id, req.Delta)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: state})
}

// ApplyDiscount handles POST /api/v1/wizard/{id}/discount.
func (h *WizardHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req DiscountRequest
	if !h.decode(w, r, &req) {
		return
	}

	state, err := h.service.ApplyDiscount(r.Context(), id, req.Code)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: state})
}

// Reset handles POST /api/v1/wizard/{id}/reset.
func (h *WizardHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	state, err := h.service.Reset(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: state})
}

// CheckoutPage handles GET /checkout?step=...&session=... and keeps the URL
// in sync with the wizard step. A step the route guard rejects 303-redirects
// back to ?step=account for the same session.
func (h *WizardHandler) CheckoutPage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "session query parameter is required"},
		})
		return
	}

	token := r.URL.Query().Get("step")
	if token == "" {
		token = "account"
	}

	state, redirected, err := h.service.Navigate(r.Context(), sessionID, token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if redirected {
		target := "/checkout?step=account&session=" + url.QueryEscape(sessionID)
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: state})
}

// --- Helpers ---

// decode reads and validates the JSON request body. Returns false if it
// already wrote an error response.
func (h *WizardHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}

	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}

	return true
}

// writeServiceError maps service errors to responses, attaching the per-field
// messages when a step submission fails validation.
func (h *WizardHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErr *service.FieldValidationError
	if errors.As(err, &fieldErr) {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "one or more fields are invalid",
				Fields:  fieldErr.Fields,
			},
		})
		return
	}

	httputil.WriteError(w, r, err, h.logger)
}
