package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/arbetsytan/knox/internal/store"
)

// KeyStore abstracts the DB lookup for testability.
type KeyStore interface {
	LookupServiceKeyByPrefix(ctx context.Context, prefix string) (*store.ServiceKey, error)
}

// PostgresAuthenticator validates API keys against the service_keys
// table. Uses KeyCache with stale-while-revalidate to avoid DB + bcrypt
// on the hot path. Auth failures always return an error — nothing runs
// without a valid key.
type PostgresAuthenticator struct {
	store  KeyStore
	cache  *KeyCache
	logger *zap.Logger
}

// PostgresAuthConfig configures the PostgresAuthenticator.
type PostgresAuthConfig struct {
	Store    KeyStore
	CacheTTL time.Duration // Default: 30s
	Logger   *zap.Logger
}

// NewPostgresAuthenticator creates a new authenticator backed by PostgreSQL.
func NewPostgresAuthenticator(cfg PostgresAuthConfig) *PostgresAuthenticator {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &PostgresAuthenticator{
		store:  cfg.Store,
		cache:  NewKeyCache(ttl),
		logger: cfg.Logger,
	}
}

// Authenticate validates the API key against the database.
//
// Flow:
//  1. Cache lookup (stale-while-revalidate):
//     - Fresh hit: return immediately
//     - Stale hit: return stale context, spawn background refresh
//     - Miss: do full DB + bcrypt lookup synchronously
//  2. DB unreachable on a miss: ErrAuthUnavailable, never fail open.
func (a *PostgresAuthenticator) Authenticate(ctx context.Context, apiKey string) (*KeyContext, error) {
	result := a.cache.Get(apiKey)
	if result.Hit {
		if result.NeedsRefresh {
			go a.backgroundRefresh(apiKey)
		}
		return result.Key, nil
	}

	key, err := a.lookupAndVerify(ctx, apiKey)
	if err != nil {
		return a.handleLookupError(err)
	}

	a.cache.Set(apiKey, key)
	return key, nil
}

// backgroundRefresh performs the DB + bcrypt lookup in a background
// goroutine. Errors are logged but don't affect the caller (they
// already got the stale value).
func (a *PostgresAuthenticator) backgroundRefresh(apiKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key, err := a.lookupAndVerify(ctx, apiKey)
	if err != nil {
		a.logger.Warn("background cache refresh failed", zap.Error(err))
		// Drop the stale entry; the next read retries synchronously.
		a.cache.Delete(apiKey)
		return
	}

	a.cache.Set(apiKey, key)
}

// lookupAndVerify does the full DB prefix lookup + bcrypt verification.
func (a *PostgresAuthenticator) lookupAndVerify(ctx context.Context, apiKey string) (*KeyContext, error) {
	// key_prefix is the first 8 chars (e.g. "wsk_abcd")
	if len(apiKey) < 8 {
		return nil, ErrInvalidAPIKey
	}

	row, err := a.store.LookupServiceKeyByPrefix(ctx, apiKey[:8])
	if err != nil {
		return nil, fmt.Errorf("lookupAndVerify: %w", err)
	}
	if row == nil {
		// No key with this prefix — reject, don't fail open.
		return nil, ErrInvalidAPIKey
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.KeyHash), []byte(apiKey)); err != nil {
		return nil, ErrInvalidAPIKey
	}

	return &KeyContext{KeyID: row.ID, Name: row.Name}, nil
}

// handleLookupError maps lookup failures — never a degraded success.
func (a *PostgresAuthenticator) handleLookupError(lookupErr error) (*KeyContext, error) {
	if errors.Is(lookupErr, ErrInvalidAPIKey) {
		return nil, ErrInvalidAPIKey
	}

	a.logger.Warn("auth DB unreachable", zap.Error(lookupErr))
	return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, lookupErr)
}
