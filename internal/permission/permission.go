// Package permission tracks camera and gallery grants for the comparison screen.
package permission

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/image-compare/internal/logging"
)

// Capability is a device capability that needs a user grant.
type Capability string

const (
	Camera  Capability = "camera"
	Gallery Capability = "gallery"
)

// GrantState is the tri-state outcome of a permission request.
type GrantState int

const (
	Unknown GrantState = iota
	Granted
	Denied
)

func (s GrantState) String() string {
	switch s {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Manager exposes the current grant state and an interactive request for it.
type Manager interface {
	Status(ctx context.Context, capability Capability) (GrantState, error)
	Request(ctx context.Context, capability Capability) (GrantState, error)
}

// Prompter asks the user whether a capability may be used.
type Prompter interface {
	PromptPermission(ctx context.Context, capability Capability) (bool, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, capability Capability) (bool, error)

func (f PrompterFunc) PromptPermission(ctx context.Context, capability Capability) (bool, error) {
	return f(ctx, capability)
}

// StoreManager is a Manager that keeps grant records in a Store and asks a Prompter
// when a capability has not been granted yet. After maxPrompts refusals the denial
// becomes permanent and the user is no longer asked.
type StoreManager struct {
	store      Store
	prompter   Prompter
	logger     *zap.Logger
	maxPrompts int
}

// Option customizes a StoreManager.
type Option func(*StoreManager)

// WithMaxPrompts sets how many refusals are tolerated before a denial is permanent.
func WithMaxPrompts(n int) Option {
	return func(m *StoreManager) {
		if n > 0 {
			m.maxPrompts = n
		}
	}
}

// WithLogger sets the logger used for grant transitions.
func WithLogger(logger *zap.Logger) Option {
	return func(m *StoreManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager constructs a store-backed permission manager.
func NewManager(store Store, prompter Prompter, opts ...Option) *StoreManager {
	m := &StoreManager{
		store:      store,
		prompter:   prompter,
		logger:     zap.NewNop(),
		maxPrompts: 2,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("permission_manager")
	return m
}

// Status returns the recorded grant state without prompting.
func (m *StoreManager) Status(ctx context.Context, capability Capability) (GrantState, error) {
	rec, err := m.store.Load(ctx, capability)
	if err != nil {
		return Unknown, logging.NewOperationError("permission.status", "", err)
	}
	return rec.State, nil
}

// Request returns Granted without prompting when already granted and Denied without
// prompting when the denial is permanent. Otherwise the prompter decides.
func (m *StoreManager) Request(ctx context.Context, capability Capability) (GrantState, error) {
	opLogger := logging.WithOperation(m.logger, "permission.request", "").With(zap.String("capability", string(capability)))

	rec, err := m.store.Load(ctx, capability)
	if err != nil {
		return Unknown, logging.NewOperationError("permission.request", "", err)
	}
	if rec.State == Granted {
		return Granted, nil
	}
	if rec.Permanent {
		opLogger.Debug("permission permanently denied, not prompting")
		return Denied, nil
	}

	allowed, err := m.prompter.PromptPermission(ctx, capability)
	if err != nil {
		return rec.State, logging.NewOperationError("permission.prompt", "", fmt.Errorf("prompt for %s: %w", capability, err))
	}

	if allowed {
		rec = Record{State: Granted}
	} else {
		rec.State = Denied
		rec.Refusals++
		rec.Permanent = rec.Refusals >= m.maxPrompts
	}

	if err := m.store.Save(ctx, capability, rec); err != nil {
		return rec.State, logging.NewOperationError("permission.save", "", err)
	}

	opLogger.Info("permission answered",
		zap.Stringer("state", rec.State),
		zap.Int("refusals", rec.Refusals),
		zap.Bool("permanent", rec.Permanent))
	return rec.State, nil
}
