package store

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/checkout-wizard/internal/domain"
	apperrors "github.com/utafrali/checkout-wizard/pkg/errors"
)

func newTestStore() *SessionStore {
	l := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(time.Minute, l)
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore()

	id, state := s.Create()
	assert.NotEmpty(t, id)
	assert.Equal(t, domain.StepAccount, state.CurrentStep)

	got, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, state, got)
}

func TestGet_UnknownSession(t *testing.T) {
	s := newTestStore()

	_, err := s.Get("nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := newTestStore()
	id, _ := s.Create()

	got, err := s.Get(id)
	require.NoError(t, err)
	got.Account.Email = "tampered@example.com"

	fresh, err := s.Get(id)
	require.NoError(t, err)
	assert.Empty(t, fresh.Account.Email)
}

func TestUpdateAccount_ShallowMerge(t *testing.T) {
	s := newTestStore()
	id, _ := s.Create()

	email := "shopper@example.com"
	password := "longenough"
	_, err := s.UpdateAccount(id, domain.AccountPatch{Email: &email, Password: &password})
	require.NoError(t, err)

	// A second patch touching only the email leaves the password intact.
	newEmail := "other@example.com"
	state, err := s.UpdateAccount(id, domain.AccountPatch{Email: &newEmail})
	require.NoError(t, err)
	assert.Equal(t, "other@example.com", state.Account.Email)
	assert.Equal(t, "longenough", state.Account.Password)
}

func TestAdvanceRetreat_Clamped(t *testing.T) {
	s := newTestStore()
	id, _ := s.Create()

	state, err := s.Retreat(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StepAccount, state.CurrentStep)

	for i := 0; i < 5; i++ {
		state, err = s.Advance(id)
		require.NoError(t, err)
	}
	assert.Equal(t, domain.StepPayment, state.CurrentStep)
}

func TestSetCurrentStep_Unconditional(t *testing.T) {
	s := newTestStore()
	id, _ := s.Create()

	state, err := s.SetCurrentStep(id, domain.StepPayment)
	require.NoError(t, err)
	assert.Equal(t, domain.StepPayment, state.CurrentStep)
}

func TestChangeQuantity_Recompute(t *testing.T) {
	s := newTestStore()
	id, _ := s.Create()

	state, err := s.ChangeQuantity(id, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, state.Summary.Quantity)
	assert.InDelta(t, 637.45, state.Summary.Subtotal, 1e-9)
	assert.InDelta(t, 640.90, state.Summary.Total, 1e-9)
}

func TestReset_Idempotent(t *testing.T) {
	s := newTestStore()
	id, _ := s.Create()

	email := "shopper@example.com"
	_, err := s.UpdateAccount(id, domain.AccountPatch{Email: &email})
	require.NoError(t, err)
	_, err = s.SetCurrentStep(id, domain.StepShipping)
	require.NoError(t, err)

	once, err := s.Reset(id)
	require.NoError(t, err)
	twice, err := s.Reset(id)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, domain.NewCheckoutState(), twice)
}

func TestDelete(t *testing.T) {
	s := newTestStore()
	id, _ := s.Create()

	require.NoError(t, s.Delete(id))
	assert.ErrorIs(t, s.Delete(id), apperrors.ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestEvictExpired(t *testing.T) {
	s := newTestStore()
	id, _ := s.Create()
	fresh, _ := s.Create()

	// Age only the first session past the TTL.
	s.mu.Lock()
	s.sessions[id].lastSeen = time.Now().Add(-2 * time.Minute)
	s.mu.Unlock()

	s.evictExpired()

	_, err := s.Get(id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = s.Get(fresh)
	assert.NoError(t, err)
}

func TestConcurrentMutations(t *testing.T) {
	s := newTestStore()
	id, _ := s.Create()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ChangeQuantity(id, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 51, state.Summary.Quantity)
	assert.InDelta(t, 320.45*51-3.45, state.Summary.Subtotal, 1e-6)
}
