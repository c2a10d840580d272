package push

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrSnakeDoc/storyshelf/internal/domain"
	"github.com/MrSnakeDoc/storyshelf/internal/logger"
)

// Result is the outcome of a transition that did not fail.
type Result int

const (
	ResultNone Result = iota
	ResultSubscribed
	ResultAlreadySubscribed
	ResultUnsubscribed
	ResultNothingToUnsubscribe
)

// ErrPermissionDismissed is returned when the prompt closed without a
// decision. It matches domain.ErrPermissionDenied.
var ErrPermissionDismissed = fmt.Errorf("%w: prompt dismissed", domain.ErrPermissionDenied)

// Manager subscribes and unsubscribes this device. Remote changes always
// happen before the local handle is kept or destroyed.
type Manager struct {
	permissions PermissionGate
	locator     RegistrationLocator
	remote      Remote
	serverKey   []byte
	logger      logger.Logger

	mu   sync.Mutex
	busy bool
}

// NewManager decodes serverKey and wires the capabilities together.
func NewManager(permissions PermissionGate, locator RegistrationLocator, remote Remote, serverKey string, log logger.Logger) (*Manager, error) {
	key, err := DecodeApplicationServerKey(serverKey)
	if err != nil {
		return nil, err
	}
	return &Manager{
		permissions: permissions,
		locator:     locator,
		remote:      remote,
		serverKey:   key,
		logger:      log,
	}, nil
}

// CheckStatus derives the state from the local registration. Lookup errors
// count as unsubscribed.
func (m *Manager) CheckStatus(ctx context.Context) domain.SubscriptionState {
	handle, err := m.currentHandle(ctx)
	if err != nil {
		m.logger.Debug("push status lookup failed", logger.Error(err))
		return domain.StateUnsubscribed
	}
	if handle == nil {
		return domain.StateUnsubscribed
	}
	return domain.StateSubscribed
}

// State is CheckStatus, or StatePending while a transition runs.
func (m *Manager) State(ctx context.Context) domain.SubscriptionState {
	m.mu.Lock()
	busy := m.busy
	m.mu.Unlock()

	if busy {
		return domain.StatePending
	}
	return m.CheckStatus(ctx)
}

// Subscribe creates a local handle and registers it remotely. When the
// remote call fails the local handle is rolled back.
func (m *Manager) Subscribe(ctx context.Context) (Result, error) {
	if err := m.begin(); err != nil {
		return ResultNone, err
	}
	defer m.end()

	if err := m.ensurePermission(ctx); err != nil {
		return ResultNone, err
	}

	if m.CheckStatus(ctx) == domain.StateSubscribed {
		m.logger.Info("push already subscribed")
		return ResultAlreadySubscribed, nil
	}

	reg, err := m.locator.Registration(ctx)
	if err != nil {
		return ResultNone, fmt.Errorf("subscribe: %w", asSentinel(err, domain.ErrRegistrationMissing))
	}

	handle, err := reg.Subscribe(ctx, SubscribeOptions{
		UserVisibleOnly:      true,
		ApplicationServerKey: m.serverKey,
	})
	if err != nil {
		return ResultNone, fmt.Errorf("subscribe: create local subscription: %w", err)
	}
	sub := handle.Subscription()

	if err := m.remote.Subscribe(ctx, sub); err != nil {
		remoteErr := fmt.Errorf("subscribe: %w", asSentinel(err, domain.ErrRemoteRejected))
		m.logger.Warn("remote subscribe failed, rolling back local subscription", logger.Error(err))

		// The rollback must run even if ctx was cancelled mid-request
		revoked, rbErr := handle.Unsubscribe(context.WithoutCancel(ctx))
		if rbErr != nil || !revoked {
			m.logger.Error("rollback of local subscription failed",
				logger.Bool("revoked", revoked),
				logger.Error(rbErr))
			return ResultNone, errors.Join(remoteErr, inconsistent("rollback local subscription", rbErr))
		}

		// A failed call may still have been stored remotely (timeout after commit)
		if err := m.remote.Unsubscribe(context.WithoutCancel(ctx), sub.Endpoint); err != nil {
			m.logger.Warn("remote cleanup after rollback failed", logger.Error(err))
		}
		return ResultNone, remoteErr
	}

	m.logger.Info("push subscribed")
	return ResultSubscribed, nil
}

// Unsubscribe unregisters remotely, then destroys the local handle. When
// the local handle survives, the remote registration is restored.
func (m *Manager) Unsubscribe(ctx context.Context) (Result, error) {
	if err := m.begin(); err != nil {
		return ResultNone, err
	}
	defer m.end()

	handle, err := m.currentHandle(ctx)
	if errors.Is(err, domain.ErrRegistrationMissing) || (err == nil && handle == nil) {
		return ResultNothingToUnsubscribe, nil
	}
	if err != nil {
		return ResultNone, fmt.Errorf("unsubscribe: lookup local subscription: %w", err)
	}
	sub := handle.Subscription()

	if err := m.remote.Unsubscribe(ctx, sub.Endpoint); err != nil {
		// Keep the local handle: it is the only record of the remote registration
		m.logger.Warn("remote unsubscribe failed", logger.Error(err))
		return ResultNone, fmt.Errorf("unsubscribe: %w", asSentinel(err, domain.ErrRemoteRejected))
	}

	revoked, err := handle.Unsubscribe(ctx)
	if err != nil || !revoked {
		revokeErr := fmt.Errorf("unsubscribe: %w", domain.ErrRevokeFailed)
		if err != nil {
			revokeErr = fmt.Errorf("unsubscribe: %w: %w", domain.ErrRevokeFailed, err)
		}
		m.logger.Warn("local unsubscribe failed, restoring remote subscription",
			logger.Bool("revoked", revoked),
			logger.Error(err))

		if cErr := m.remote.Subscribe(context.WithoutCancel(ctx), sub); cErr != nil {
			m.logger.Error("restoring remote subscription failed", logger.Error(cErr))
			return ResultNone, errors.Join(revokeErr, inconsistent("restore remote subscription", cErr))
		}
		return ResultNone, revokeErr
	}

	m.logger.Info("push unsubscribed")
	return ResultUnsubscribed, nil
}

func (m *Manager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy {
		return domain.ErrTransitionInProgress
	}
	m.busy = true
	return nil
}

func (m *Manager) end() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

func (m *Manager) ensurePermission(ctx context.Context) error {
	perm, err := m.permissions.Permission(ctx)
	if err != nil {
		return fmt.Errorf("read notification permission: %w", err)
	}
	if perm == domain.PermissionDefault {
		perm, err = m.permissions.Request(ctx)
		if err != nil {
			return fmt.Errorf("request notification permission: %w", err)
		}
	}

	switch perm {
	case domain.PermissionGranted:
		return nil
	case domain.PermissionDenied:
		return domain.ErrPermissionDenied
	default:
		return ErrPermissionDismissed
	}
}

// currentHandle returns the local handle, nil when subscribed nowhere.
func (m *Manager) currentHandle(ctx context.Context) (Handle, error) {
	reg, err := m.locator.Registration(ctx)
	if err != nil {
		return nil, asSentinel(err, domain.ErrRegistrationMissing)
	}
	return reg.Subscription(ctx)
}

// asSentinel makes sure err matches sentinel.
func asSentinel(err, sentinel error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

func inconsistent(action string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", action, domain.ErrInconsistentState)
	}
	return fmt.Errorf("%s: %w: %w", action, domain.ErrInconsistentState, err)
}
