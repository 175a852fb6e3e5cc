package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/checkout-wizard/pkg/health"
	"github.com/utafrali/checkout-wizard/pkg/httpclient"
	"github.com/utafrali/checkout-wizard/pkg/httputil"

	"github.com/utafrali/checkout-wizard/internal/domain"
	"github.com/utafrali/checkout-wizard/internal/service"
	"github.com/utafrali/checkout-wizard/internal/store"
)

// noopPublisher satisfies service.EventPublisher without a broker.
type noopPublisher struct{}

func (noopPublisher) PublishWizardStarted(context.Context, string, domain.CheckoutState) error {
	return nil
}

func (noopPublisher) PublishWizardAdvanced(context.Context, string, domain.Step, domain.Step) error {
	return nil
}

func (noopPublisher) PublishOrderCompleted(context.Context, string, string, domain.CheckoutState) error {
	return nil
}

func (noopPublisher) PublishOrderFailed(context.Context, string, string) error {
	return nil
}

// newTestRouter wires the full router with the mock backend serving as the
// wizard's own completion target, zero latency.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	mockHandler := NewMockAPIHandler(0, logger)

	backend := httptest.NewServer(NewRouter(
		service.NewWizardService(store.New(time.Minute, logger), noopPublisher{}, logger, nil, "", 0),
		mockHandler,
		health.NewHandler(),
		logger,
		RouterConfig{ServiceName: "wizard-test", Environment: "development"},
	))
	t.Cleanup(backend.Close)

	client := httpclient.New(httpclient.Config{
		Timeout:         2 * time.Second,
		MaxRetries:      0,
		RetryWaitMin:    time.Millisecond,
		RetryWaitMax:    time.Millisecond,
		MaxConnsPerHost: 10,
	})

	svc := service.NewWizardService(store.New(time.Minute, logger), noopPublisher{}, logger, client, backend.URL, time.Second)

	return NewRouter(svc, mockHandler, health.NewHandler(), logger, RouterConfig{
		ServiceName: "wizard-test",
		Environment: "development",
	})
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Data)
	return resp.Data.(map[string]any)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *httputil.ErrorResponse {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func createSession(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/wizard", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	data := decodeData(t, rec)
	id := data["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestCreateAndGetSession(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/wizard/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	state := decodeData(t, rec)
	assert.Equal(t, float64(domain.StepAccount), state["current_step"])
	summary := state["summary"].(map[string]any)
	assert.Equal(t, "Sony wireless headphones", summary["product_name"])
	assert.Equal(t, 320.45, summary["total"])
}

func TestGetSession_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/wizard/00000000-0000-0000-0000-000000000000", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

func TestSubmitAccount_FieldErrors(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/account",
		`{"email":"not-an-email","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	errResp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", errResp.Code)
	assert.Equal(t, "Please enter a valid email address", errResp.Fields["email"])
	assert.Equal(t, "Password must be at least 8 characters", errResp.Fields["password"])
}

func TestSubmitAccount_Advances(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/account",
		`{"email":"shopper@example.com","password":"longenough"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	state := decodeData(t, rec)
	assert.Equal(t, float64(domain.StepShipping), state["current_step"])
	account := state["account"].(map[string]any)
	assert.Equal(t, "shopper@example.com", account["email"])
}

func TestSubmitShipping_RejectsBadMethodShape(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/shipping",
		`{"first_line":"1 Main St","street_name":"Main St","postcode":"SW1A 1AA","shipping_method":"overnight"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
}

func TestLaterSteps_RejectedOutOfOrder(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/shipping",
		`{"first_line":"1 Main St","street_name":"Main St","postcode":"SW1A 1AA"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decodeError(t, rec).Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/complete",
		`{"name_on_card":"Jamie Shopper","card_number":"4111 1111 1111 1111","expiration_month":"12","expiration_year":"99","cvc":"123"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The session is untouched: still on account with nothing committed.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/wizard/"+id, "")
	state := decodeData(t, rec)
	assert.Equal(t, float64(domain.StepAccount), state["current_step"])
	shipping := state["shipping"].(map[string]any)
	assert.Empty(t, shipping["first_line"])
}

func TestFullWizardFlow(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/account",
		`{"email":"shopper@example.com","password":"longenough"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/shipping",
		`{"first_line":"1 Main St","street_name":"Main St","postcode":"SW1A 1AA","shipping_method":"express"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeData(t, rec)
	require.Equal(t, float64(domain.StepPayment), state["current_step"])

	rec = doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/complete",
		`{"name_on_card":"Jamie Shopper","card_number":"4111 1111 1111 1111","expiration_month":"12","expiration_year":"99","cvc":"123"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	result := decodeData(t, rec)
	assert.True(t, strings.HasPrefix(result["order_id"].(string), "ORD-"))
	assert.Equal(t, "confirmed", result["status"])
	assert.Equal(t, "3-5 business days", result["estimated_delivery"])
	assert.Equal(t, "1111", result["last4"])
}

func TestBackEndpoint(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/account",
		`{"email":"shopper@example.com","password":"longenough"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/back", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	state := decodeData(t, rec)
	assert.Equal(t, float64(domain.StepAccount), state["current_step"])
}

func TestQuantityEndpoint(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/quantity", `{"delta":1}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	state := decodeData(t, rec)
	summary := state["summary"].(map[string]any)
	assert.Equal(t, float64(2), summary["quantity"])
	assert.InDelta(t, 637.45, summary["subtotal"].(float64), 1e-9)
	assert.InDelta(t, 640.90, summary["total"].(float64), 1e-9)

	// A zero delta fails the request shape check.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/quantity", `{"delta":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiscountEndpoint_Stub(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/discount", `{"code":"SAVE10"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	state := decodeData(t, rec)
	summary := state["summary"].(map[string]any)
	assert.Equal(t, 320.45, summary["total"])

	rec = doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/discount", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetEndpoint(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/quantity", `{"delta":3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/reset", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	state := decodeData(t, rec)
	summary := state["summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["quantity"])
	assert.Equal(t, 320.45, summary["total"])
}

func TestCheckoutPage_RouteGuardRedirects(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	rec := doJSON(t, router, http.MethodGet, "/checkout?step=payment&session="+id, "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/checkout?step=account&session="+id, rec.Header().Get("Location"))

	// The session has been forced back to the account step.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/wizard/"+id, "")
	state := decodeData(t, rec)
	assert.Equal(t, float64(domain.StepAccount), state["current_step"])
}

func TestCheckoutPage_AcceptsAuthorizedStep(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/wizard/"+id+"/account",
		`{"email":"shopper@example.com","password":"longenough"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/checkout?step=payment&session="+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	state := decodeData(t, rec)
	assert.Equal(t, float64(domain.StepPayment), state["current_step"])
}

func TestCheckoutPage_UnknownTokenRedirects(t *testing.T) {
	router := newTestRouter(t)
	id := createSession(t, router)

	rec := doJSON(t, router, http.MethodGet, "/checkout?step=review&session="+id, "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestCheckoutPage_MissingSession(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/checkout?step=account", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
