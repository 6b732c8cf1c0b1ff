package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ericfisherdev/forumbridge/internal/domain/model"
	"github.com/ericfisherdev/forumbridge/internal/domain/port/driven"
)

const (
	// SafetyMargin is the minimum remaining lifetime of any credential handed
	// to a caller.
	SafetyMargin = 15 * time.Minute

	// renewalHeadroom moves the renewal ahead of the safety margin so the
	// exchange has time to complete while the old credential is still usable.
	renewalHeadroom = time.Minute
)

// CredentialSource hands out a live installation credential.
type CredentialSource interface {
	Credential() (model.InstallationCredential, error)
}

// Compile-time interface satisfaction check.
var _ CredentialSource = (*CredentialManager)(nil)

// CredentialStatus is a point-in-time view of the credential lifecycle.
type CredentialStatus struct {
	Initialized      bool
	ExpiresAt        time.Time
	RenewedAt        time.Time
	NextRenewalAt    time.Time
	LastRenewalError string
}

// CredentialManager owns the installation credential. It performs the initial
// exchange, keeps exactly one one-shot renewal timer armed, and swaps in each
// renewed credential atomically so readers never wait on a renewal.
type CredentialManager struct {
	exchanger driven.TokenExchanger
	clock     clock.Clock
	logger    *slog.Logger

	current atomic.Pointer[model.InstallationCredential]

	// mu guards the timer and the fields below it. A timer callback only acts
	// if its generation still matches, so a timer that fired while being
	// replaced is a no-op.
	mu            sync.Mutex
	timer         *clock.Timer
	generation    uint64
	nextRenewalAt time.Time
	renewedAt     time.Time
	lastErr       error
	closed        bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewCredentialManager creates a CredentialManager. Call Initialize before
// handing out credentials.
func NewCredentialManager(exchanger driven.TokenExchanger, clk clock.Clock, logger *slog.Logger) *CredentialManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &CredentialManager{
		exchanger: exchanger,
		clock:     clk,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Initialize performs the first exchange and arms the renewal timer. Any
// error wraps ErrAuthFailure and should abort startup.
func (m *CredentialManager) Initialize(ctx context.Context) error {
	cred, err := m.exchange(ctx)
	if err != nil {
		return err
	}

	m.install(cred)
	m.logger.Info("installation token issued", "expires_at", cred.ExpiresAt.UTC().Format(time.RFC3339))
	return nil
}

// Credential returns the current installation credential. It never returns a
// credential with less than SafetyMargin of lifetime left.
func (m *CredentialManager) Credential() (model.InstallationCredential, error) {
	cred := m.current.Load()
	if cred == nil {
		return model.InstallationCredential{}, ErrNotInitialized
	}

	if cred.Remaining(m.clock.Now()) < SafetyMargin {
		return model.InstallationCredential{}, fmt.Errorf("%w: expires at %s", ErrCredentialExpired, cred.ExpiresAt.UTC().Format(time.RFC3339))
	}

	return *cred, nil
}

// Status reports the lifecycle state for health checks.
func (m *CredentialManager) Status() CredentialStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := CredentialStatus{
		RenewedAt:     m.renewedAt,
		NextRenewalAt: m.nextRenewalAt,
	}
	if cred := m.current.Load(); cred != nil {
		status.Initialized = true
		status.ExpiresAt = cred.ExpiresAt
	}
	if m.lastErr != nil {
		status.LastRenewalError = m.lastErr.Error()
	}
	return status
}

// Close stops the renewal timer and aborts any in-flight renewal. The last
// credential stays readable.
func (m *CredentialManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.generation++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.cancel()
}

// exchange runs a full token exchange and rejects credentials that would be
// unusable the moment they are installed.
func (m *CredentialManager) exchange(ctx context.Context) (model.InstallationCredential, error) {
	cred, err := m.exchanger.Exchange(ctx)
	if err != nil {
		return model.InstallationCredential{}, fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}

	if cred.Token == "" {
		return model.InstallationCredential{}, fmt.Errorf("%w: exchange returned an empty token", ErrAuthFailure)
	}

	if cred.Remaining(m.clock.Now()) < SafetyMargin {
		return model.InstallationCredential{}, fmt.Errorf("%w: token expiring at %s is inside the %s safety margin",
			ErrAuthFailure, cred.ExpiresAt.UTC().Format(time.RFC3339), SafetyMargin)
	}

	return cred, nil
}

// install swaps in cred and replaces the renewal timer.
func (m *CredentialManager) install(cred model.InstallationCredential) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.current.Store(&cred)
	m.renewedAt = m.clock.Now()
	m.lastErr = nil
	m.scheduleLocked(cred)
}

// scheduleLocked arms a single renewal timer for cred. Must be called with
// m.mu held.
func (m *CredentialManager) scheduleLocked(cred model.InstallationCredential) {
	if m.timer != nil {
		m.timer.Stop()
	}

	m.generation++
	generation := m.generation

	renewIn := cred.Remaining(m.clock.Now()) - SafetyMargin - renewalHeadroom
	if renewIn < 0 {
		renewIn = 0
	}

	m.nextRenewalAt = m.clock.Now().Add(renewIn)
	m.timer = m.clock.AfterFunc(renewIn, func() { m.renew(generation) })

	m.logger.Debug("installation token renewal scheduled",
		"renew_in", renewIn.Round(time.Second),
		"expires_at", cred.ExpiresAt.UTC().Format(time.RFC3339),
	)
}

// renew is the timer callback. On failure the stale credential stays
// installed and no retry is scheduled.
func (m *CredentialManager) renew(generation uint64) {
	m.mu.Lock()
	if m.closed || generation != m.generation {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()

	m.logger.Info("renewing installation token")

	cred, err := m.exchange(m.ctx)
	if err != nil {
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()

		var expiresAt string
		if stale := m.current.Load(); stale != nil {
			expiresAt = stale.ExpiresAt.UTC().Format(time.RFC3339)
		}
		m.logger.Error("installation token renewal failed, keeping current token",
			"error", err,
			"expires_at", expiresAt,
		)
		return
	}

	m.install(cred)
	m.logger.Info("installation token renewed", "expires_at", cred.ExpiresAt.UTC().Format(time.RFC3339))
}
