package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// MockAPIHandler serves the simulated checkout backend. Each endpoint is a
// stateless echo of its validated input behind a configurable latency delay.
type MockAPIHandler struct {
	latency time.Duration
	logger  *slog.Logger
}

// NewMockAPIHandler creates the mock backend handler with the given simulated
// latency per request.
func NewMockAPIHandler(latency time.Duration, logger *slog.Logger) *MockAPIHandler {
	return &MockAPIHandler{
		latency: latency,
		logger:  logger,
	}
}

// envelope is the mock backend's fixed response shape.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (h *MockAPIHandler) writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.logger.Error("failed to encode mock response", slog.String("error", err.Error()))
	}
}

// sleep blocks for the configured latency, or until the request context is
// cancelled so shutdown is not held up by pending delays.
func (h *MockAPIHandler) sleep(r *http.Request) {
	if h.latency <= 0 {
		return
	}
	select {
	case <-time.After(h.latency):
	case <-r.Context().Done():
	}
}

// Account handles POST /api/checkout/account.
func (h *MockAPIHandler) Account(w http.ResponseWriter, r *http.Request) {
	h.sleep(r)

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeEnvelope(w, http.StatusBadRequest, envelope{Success: false, Message: "Invalid request"})
		return
	}

	if body.Email == "" || body.Password == "" {
		h.writeEnvelope(w, http.StatusBadRequest, envelope{Success: false, Message: "Email and password are required"})
		return
	}

	h.writeEnvelope(w, http.StatusOK, envelope{
		Success: true,
		Message: "Account validated successfully",
		Data:    map[string]string{"email": body.Email},
	})
}

// Shipping handles POST /api/checkout/shipping.
func (h *MockAPIHandler) Shipping(w http.ResponseWriter, r *http.Request) {
	h.sleep(r)

	var body struct {
		FirstLine      string `json:"firstLine"`
		StreetName     string `json:"streetName"`
		Postcode       string `json:"postcode"`
		ShippingMethod string `json:"shippingMethod"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeEnvelope(w, http.StatusBadRequest, envelope{Success: false, Message: "Invalid request"})
		return
	}

	if body.FirstLine == "" || body.StreetName == "" || body.Postcode == "" {
		h.writeEnvelope(w, http.StatusBadRequest, envelope{Success: false, Message: "All address fields are required"})
		return
	}

	h.writeEnvelope(w, http.StatusOK, envelope{
		Success: true,
		Message: "Shipping details saved successfully",
		Data: map[string]string{
			"firstLine":      body.FirstLine,
			"streetName":     body.StreetName,
			"postcode":       body.Postcode,
			"shippingMethod": body.ShippingMethod,
		},
	})
}

// paymentBody is the shared request shape of the payment and complete endpoints.
type paymentBody struct {
	NameOnCard      string `json:"nameOnCard"`
	CardNumber      string `json:"cardNumber"`
	ExpirationMonth string `json:"expirationMonth"`
	ExpirationYear  string `json:"expirationYear"`
	CVC             string `json:"cvc"`
}

func (b paymentBody) missingField() bool {
	return b.NameOnCard == "" || b.CardNumber == "" || b.ExpirationMonth == "" ||
		b.ExpirationYear == "" || b.CVC == ""
}

// Payment handles POST /api/checkout/payment.
func (h *MockAPIHandler) Payment(w http.ResponseWriter, r *http.Request) {
	h.sleep(r)

	var body paymentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeEnvelope(w, http.StatusBadRequest, envelope{Success: false, Message: "Invalid request"})
		return
	}

	if body.missingField() {
		h.writeEnvelope(w, http.StatusBadRequest, envelope{Success: false, Message: "All payment fields are required"})
		return
	}

	last4 := body.CardNumber
	if len(last4) > 4 {
		last4 = last4[len(last4)-4:]
	}

	h.writeEnvelope(w, http.StatusOK, envelope{
		Success: true,
		Message: "Payment details validated successfully",
		Data:    map[string]string{"last4": last4},
	})
}

// Complete handles POST /api/checkout/complete.
func (h *MockAPIHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.sleep(r)

	var body paymentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeEnvelope(w, http.StatusInternalServerError, envelope{Success: false, Message: "Failed to complete order"})
		return
	}

	if body.missingField() {
		h.writeEnvelope(w, http.StatusBadRequest, envelope{Success: false, Message: "All payment fields are required"})
		return
	}

	orderID := fmt.Sprintf("ORD-%d", time.Now().UnixMilli())

	h.writeEnvelope(w, http.StatusOK, envelope{
		Success: true,
		Message: "Order completed successfully",
		Data: map[string]string{
			"orderId":           orderID,
			"status":            "confirmed",
			"estimatedDelivery": "3-5 business days",
		},
	})
}

// Summary handles GET /api/checkout/summary. It always succeeds with the
// fixed demo order.
func (h *MockAPIHandler) Summary(w http.ResponseWriter, r *http.Request) {
	h.sleep(r)

	h.writeEnvelope(w, http.StatusOK, envelope{
		Success: true,
		Data: map[string]any{
			"productName":  "Sony wireless headphones",
			"productImage": "/headphones.jpg",
			"productPrice": 320.45,
			"quantity":     1,
			"subtotal":     316.55,
			"tax":          3.45,
			"shipping":     0,
			"total":        320.45,
		},
	})
}
