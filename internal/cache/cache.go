package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

const (
	OTPTTL         = 10 * time.Minute
	SweepInterval  = 5 * time.Minute
	MaxOTPAttempts = 5
)

var (
	ErrOTPNotFound        = errors.New("OTP not found or expired")
	ErrOTPExpired         = errors.New("OTP has expired")
	ErrOTPTooManyAttempts = errors.New("Too many failed attempts. Please request a new OTP.")
	ErrOTPInvalid         = errors.New("Invalid OTP")
)

// OTPStore keeps one pending reset code per email.
type OTPStore interface {
	Save(ctx context.Context, email string, code string, ttl time.Duration) error
	// Verify checks the code without consuming it; callers Remove it once the
	// reset has been applied. A wrong code counts as an attempt and the entry
	// is dropped once it expires or runs out of attempts.
	Verify(ctx context.Context, email string, code string) error
	Remove(ctx context.Context, email string) error
}

func otpKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type otpEntry struct {
	code      string
	expiresAt time.Time
	attempts  int
}

type MemoryOTPStore struct {
	mu      sync.Mutex
	entries map[string]*otpEntry
	now     func() time.Time
}

func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{
		entries: make(map[string]*otpEntry),
		now:     time.Now,
	}
}

func (m *MemoryOTPStore) Save(_ context.Context, email string, code string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = OTPTTL
	}
	m.mu.Lock()
	m.entries[otpKey(email)] = &otpEntry{code: code, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryOTPStore) Verify(_ context.Context, email string, code string) error {
	key := otpKey(email)
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return ErrOTPNotFound
	}
	if m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		return ErrOTPExpired
	}
	if entry.attempts >= MaxOTPAttempts {
		delete(m.entries, key)
		return ErrOTPTooManyAttempts
	}
	if entry.code != strings.TrimSpace(code) {
		entry.attempts++
		return ErrOTPInvalid
	}
	return nil
}

func (m *MemoryOTPStore) Remove(_ context.Context, email string) error {
	m.mu.Lock()
	delete(m.entries, otpKey(email))
	m.mu.Unlock()
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *MemoryOTPStore) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (m *MemoryOTPStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = SweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
