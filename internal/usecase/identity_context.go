package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vitos/crypto_watch/internal/domain"
	"go.uber.org/zap"
)

// IdentityReader is the read side of IdentityContext used by dependents.
type IdentityReader interface {
	Current() *domain.Identity
}

// IdentityContext holds the process-wide authenticated user, persisted under
// the "token" and "user" keys of the local store.
type IdentityContext struct {
	auth   domain.Authenticator
	store  domain.KeyValueStore
	logger *zap.Logger

	mu        sync.RWMutex
	current   *domain.Identity
	listeners []func(context.Context, *domain.Identity)
}

func NewIdentityContext(ctx context.Context, auth domain.Authenticator, store domain.KeyValueStore, logger *zap.Logger) (*IdentityContext, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ic := &IdentityContext{
		auth:   auth,
		store:  store,
		logger: logger,
	}
	if err := ic.restore(ctx); err != nil {
		return nil, err
	}
	return ic, nil
}

func (ic *IdentityContext) restore(ctx context.Context) error {
	token, ok, err := ic.store.Get(ctx, domain.KeyToken)
	if err != nil {
		return fmt.Errorf("failed to read persisted token: %w", err)
	}
	rawUser, userOK, err := ic.store.Get(ctx, domain.KeyUser)
	if err != nil {
		return fmt.Errorf("failed to read persisted user: %w", err)
	}

	if !ok || domain.IsAbsentValue(token) || !userOK || domain.IsAbsentValue(rawUser) {
		return ic.clearPersisted(ctx)
	}

	var id domain.Identity
	if err := json.Unmarshal([]byte(rawUser), &id); err != nil || id.UserID == "" {
		ic.logger.Warn("Discarding unparsable persisted user", zap.Error(err))
		return ic.clearPersisted(ctx)
	}
	id.Token = token

	ic.current = &id
	ic.logger.Info("Restored persisted identity", zap.String("user_id", id.UserID))
	return nil
}

func (ic *IdentityContext) clearPersisted(ctx context.Context) error {
	if err := ic.store.Delete(ctx, domain.KeyToken, domain.KeyUser); err != nil {
		return fmt.Errorf("failed to clear persisted identity: %w", err)
	}
	return nil
}

// OnChange registers a listener invoked synchronously after login, register and logout.
func (ic *IdentityContext) OnChange(fn func(context.Context, *domain.Identity)) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.listeners = append(ic.listeners, fn)
}

// Current returns a copy of the signed-in identity, or nil when anonymous.
func (ic *IdentityContext) Current() *domain.Identity {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	if ic.current == nil {
		return nil
	}
	id := *ic.current
	return &id
}

func (ic *IdentityContext) Token() string {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	if ic.current == nil {
		return ""
	}
	return ic.current.Token
}

func (ic *IdentityContext) Login(ctx context.Context, email, password string) (*domain.Identity, error) {
	id, err := ic.auth.Login(ctx, email, password)
	if err != nil {
		ic.logger.Warn("Login failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	return ic.establish(ctx, id)
}

func (ic *IdentityContext) Register(ctx context.Context, email, password string) (*domain.Identity, error) {
	id, err := ic.auth.Register(ctx, email, password)
	if err != nil {
		ic.logger.Warn("Registration failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	return ic.establish(ctx, id)
}

func (ic *IdentityContext) establish(ctx context.Context, id *domain.Identity) (*domain.Identity, error) {
	if id == nil || domain.IsAbsentValue(id.Token) {
		return nil, fmt.Errorf("%w: identity without credential", domain.ErrMalformedResponse)
	}
	if id.UserID == "" {
		return nil, fmt.Errorf("%w: identity without user id", domain.ErrMalformedResponse)
	}

	user, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}
	if err := ic.store.Set(ctx, domain.KeyToken, id.Token); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}
	if err := ic.store.Set(ctx, domain.KeyUser, string(user)); err != nil {
		if delErr := ic.store.Delete(ctx, domain.KeyToken); delErr != nil {
			ic.logger.Error("Failed to roll back persisted token, identity is half written",
				zap.String("user_id", id.UserID),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("failed to persist user: %w", err)
	}

	stored := *id
	ic.mu.Lock()
	ic.current = &stored
	ic.mu.Unlock()

	ic.logger.Info("Identity established", zap.String("user_id", id.UserID))
	ic.notify(ctx)
	return ic.Current(), nil
}

// Logout drops the credential. Anonymous favorites stay in the local store.
func (ic *IdentityContext) Logout(ctx context.Context) error {
	if err := ic.clearPersisted(ctx); err != nil {
		return err
	}

	ic.mu.Lock()
	prev := ic.current
	ic.current = nil
	ic.mu.Unlock()

	if prev != nil {
		ic.logger.Info("Logged out", zap.String("user_id", prev.UserID))
	}
	ic.notify(ctx)
	return nil
}

func (ic *IdentityContext) notify(ctx context.Context) {
	ic.mu.RLock()
	listeners := make([]func(context.Context, *domain.Identity), len(ic.listeners))
	copy(listeners, ic.listeners)
	ic.mu.RUnlock()

	current := ic.Current()
	for _, fn := range listeners {
		fn(ctx, current)
	}
}
