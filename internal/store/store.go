// Package store holds active checkout sessions in memory. Each session owns
// one CheckoutState; all mutations run under the store lock so readers never
// observe a partially merged bucket.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/checkout-wizard/internal/domain"
	apperrors "github.com/utafrali/checkout-wizard/pkg/errors"
)

// DefaultTTL is how long an idle session survives before the janitor evicts it.
const DefaultTTL = 30 * time.Minute

type sessionEntry struct {
	state    domain.CheckoutState
	lastSeen time.Time
}

// SessionStore is an in-memory checkout session store with TTL-based eviction.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	logger   *slog.Logger
	nowFunc  func() time.Time // injectable clock for testing
}

// New creates a session store with the given idle TTL. A TTL of 0 falls back
// to DefaultTTL.
func New(ttl time.Duration, logger *slog.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// Create allocates a new session with the fixed initial state and returns its ID.
func (s *SessionStore) Create() (string, domain.CheckoutState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	state := domain.NewCheckoutState()
	s.sessions[id] = &sessionEntry{state: state, lastSeen: s.nowFunc()}
	return id, state
}

// Get returns a copy of the session state. Reading refreshes the idle timer.
func (s *SessionStore) Get(id string) (domain.CheckoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return domain.CheckoutState{}, apperrors.NotFound("session", id)
	}
	entry.lastSeen = s.nowFunc()
	return entry.state, nil
}

// mutate runs fn against the session state under the write lock and returns
// a copy of the updated state.
func (s *SessionStore) mutate(id string, fn func(*domain.CheckoutState)) (domain.CheckoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return domain.CheckoutState{}, apperrors.NotFound("session", id)
	}
	fn(&entry.state)
	entry.lastSeen = s.nowFunc()
	return entry.state, nil
}

// SetCurrentStep overwrites the current step unconditionally.
func (s *SessionStore) SetCurrentStep(id string, step domain.Step) (domain.CheckoutState, error) {
	return s.mutate(id, func(state *domain.CheckoutState) {
		state.CurrentStep = step
	})
}

// Advance moves the session one step forward, clamped at Payment.
func (s *SessionStore) Advance(id string) (domain.CheckoutState, error) {
	return s.mutate(id, func(state *domain.CheckoutState) {
		state.CurrentStep = state.CurrentStep.Next()
	})
}

// Retreat moves the session one step back, clamped at Account.
func (s *SessionStore) Retreat(id string) (domain.CheckoutState, error) {
	return s.mutate(id, func(state *domain.CheckoutState) {
		state.CurrentStep = state.CurrentStep.Prev()
	})
}

// UpdateAccount shallow-merges the patch into the account bucket.
func (s *SessionStore) UpdateAccount(id string, patch domain.AccountPatch) (domain.CheckoutState, error) {
	return s.mutate(id, func(state *domain.CheckoutState) {
		state.Account.Apply(patch)
	})
}

// UpdateShipping shallow-merges the patch into the shipping bucket.
func (s *SessionStore) UpdateShipping(id string, patch domain.ShippingPatch) (domain.CheckoutState, error) {
	return s.mutate(id, func(state *domain.CheckoutState) {
		state.Shipping.Apply(patch)
	})
}

// UpdatePayment shallow-merges the patch into the payment bucket.
func (s *SessionStore) UpdatePayment(id string, patch domain.PaymentPatch) (domain.CheckoutState, error) {
	return s.mutate(id, func(state *domain.CheckoutState) {
		state.Payment.Apply(patch)
	})
}

// UpdateSummary shallow-merges the patch into the order summary bucket.
func (s *SessionStore) UpdateSummary(id string, patch domain.SummaryPatch) (domain.CheckoutState, error) {
	return s.mutate(id, func(state *domain.CheckoutState) {
		state.Summary.Apply(patch)
	})
}

// ChangeQuantity applies a quantity delta and recomputes the totals.
func (s *SessionStore) ChangeQuantity(id string, delta int) (domain.CheckoutState, error) {
	return s.mutate(id, func(state *domain.CheckoutState) {
		state.Summary.ChangeQuantity(delta)
	})
}

// Reset restores the session to the fixed initial state. Resetting an
// already-reset session is a no-op.
func (s *SessionStore) Reset(id string) (domain.CheckoutState, error) {
	return s.mutate(id, func(state *domain.CheckoutState) {
		*state = domain.NewCheckoutState()
	})
}

// Delete removes the session. Deleting an unknown session returns ErrNotFound.
func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return apperrors.NotFound("session", id)
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of active sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Ping reports store availability. It always succeeds; it exists so the store
// can be registered as a readiness check like any other dependency.
func (s *SessionStore) Ping(_ context.Context) error {
	return nil
}

// StartJanitor runs a background loop that evicts sessions idle past the TTL.
// It stops when the context is cancelled.
func (s *SessionStore) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.evictExpired()
			}
		}
	}()
}

// evictExpired removes all sessions whose lastSeen is older than the TTL.
func (s *SessionStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	for id, entry := range s.sessions {
		if now.Sub(entry.lastSeen) > s.ttl {
			delete(s.sessions, id)
			s.logger.Info("session expired",
				slog.String("session_id", id),
				slog.Duration("ttl", s.ttl),
			)
		}
	}
}
