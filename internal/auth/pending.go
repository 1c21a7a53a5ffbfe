package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// PendingSignup is a signup waiting for OTP verification.
type PendingSignup struct {
	Name             string
	Email            string
	PasswordHash     string
	Age              int
	Gender           string
	GenderPreference string

	OTP       string
	ExpiresAt time.Time
}

// PendingStore holds signups between the signup request and OTP
// verification. Entries live pending → verified | expired; expiry is
// checked on read rather than with timers, so a stale entry simply
// stops resolving.
type PendingStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]PendingSignup
	now     func() time.Time
}

func NewPendingStore(ttl time.Duration) *PendingStore {
	return &PendingStore{
		ttl:     ttl,
		entries: make(map[string]PendingSignup),
		now:     time.Now,
	}
}

// Put parks a signup under its email and returns the generated OTP.
// A repeated signup for the same email replaces the previous entry and
// invalidates its code.
func (s *PendingStore) Put(p PendingSignup) (string, error) {
	otp, err := generateOTP()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p.OTP = otp
	p.ExpiresAt = s.now().Add(s.ttl)
	s.entries[p.Email] = p
	return otp, nil
}

// Verify resolves a pending signup by email and code. On success the
// entry is consumed. An expired entry is removed and reported the same
// as a wrong code.
func (s *PendingStore) Verify(email, otp string) (PendingSignup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.entries[email]
	if !ok {
		return PendingSignup{}, false
	}
	if s.now().After(p.ExpiresAt) {
		delete(s.entries, email)
		return PendingSignup{}, false
	}
	if p.OTP != otp {
		return PendingSignup{}, false
	}

	delete(s.entries, email)
	return p, true
}

// Sweep removes every expired entry. The server runs this periodically
// so abandoned signups do not accumulate.
func (s *PendingStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for email, p := range s.entries {
		if now.After(p.ExpiresAt) {
			delete(s.entries, email)
			removed++
		}
	}
	return removed
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
