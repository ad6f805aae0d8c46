package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/arbetsytan/knox/internal/store"
)

// testAPIKey is the raw API key used in tests. Must start with "wsk_" and be >= 8 chars.
const testAPIKey = "wsk_test_valid_key_1234567890abcdef"

// testHash returns a bcrypt hash of testAPIKey using MinCost (fast for tests).
func testHash(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to generate bcrypt hash: %v", err)
	}
	return string(hash)
}

// mockKeyStore implements KeyStore for testing.
type mockKeyStore struct {
	row       *store.ServiceKey
	err       error
	callCount atomic.Int32
}

func (m *mockKeyStore) LookupServiceKeyByPrefix(_ context.Context, _ string) (*store.ServiceKey, error) {
	m.callCount.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.row, nil
}

func newTestAuth(s KeyStore, ttl time.Duration) *PostgresAuthenticator {
	return NewPostgresAuthenticator(PostgresAuthConfig{
		Store:    s,
		CacheTTL: ttl,
		Logger:   zap.NewNop(),
	})
}

func TestPostgresAuth_CacheMiss_ValidKey(t *testing.T) {
	ks := &mockKeyStore{
		row: &store.ServiceKey{
			ID:      42,
			Name:    "ingest-worker",
			KeyHash: testHash(t),
		},
	}
	auth := newTestAuth(ks, time.Minute)

	key, err := auth.Authenticate(context.Background(), testAPIKey)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if key.KeyID != 42 {
		t.Errorf("expected key ID 42, got %d", key.KeyID)
	}
	if key.Name != "ingest-worker" {
		t.Errorf("expected name ingest-worker, got %s", key.Name)
	}
	if ks.callCount.Load() != 1 {
		t.Errorf("expected 1 DB call, got %d", ks.callCount.Load())
	}
}

func TestPostgresAuth_CacheHit_NoDBCall(t *testing.T) {
	ks := &mockKeyStore{
		row: &store.ServiceKey{ID: 1, Name: "cli", KeyHash: testHash(t)},
	}
	auth := newTestAuth(ks, time.Minute)

	// First call — cache miss, hits DB
	if _, err := auth.Authenticate(context.Background(), testAPIKey); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if ks.callCount.Load() != 1 {
		t.Fatalf("expected 1 DB call after first auth, got %d", ks.callCount.Load())
	}

	// Second call — cache hit, no DB call
	key, err := auth.Authenticate(context.Background(), testAPIKey)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if ks.callCount.Load() != 1 {
		t.Errorf("expected still 1 DB call (cache hit), got %d", ks.callCount.Load())
	}
	if key.Name != "cli" {
		t.Errorf("expected name cli from cache, got %s", key.Name)
	}
}

func TestPostgresAuth_WrongKey_Rejected(t *testing.T) {
	ks := &mockKeyStore{
		row: &store.ServiceKey{ID: 1, Name: "cli", KeyHash: testHash(t)},
	}
	auth := newTestAuth(ks, time.Minute)

	// Same prefix, different key — bcrypt mismatch.
	_, err := auth.Authenticate(context.Background(), "wsk_test_wrong_key_doesnt_match_hash")
	if err == nil {
		t.Fatal("expected error for invalid key, got nil")
	}
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("expected ErrInvalidAPIKey, got: %v", err)
	}
}

func TestPostgresAuth_UnknownPrefix_Rejected(t *testing.T) {
	// A nil row means no key exists with that prefix.
	ks := &mockKeyStore{}
	auth := newTestAuth(ks, time.Minute)

	_, err := auth.Authenticate(context.Background(), testAPIKey)
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("expected ErrInvalidAPIKey, got: %v", err)
	}
}

func TestPostgresAuth_ShortKey_RejectedWithoutLookup(t *testing.T) {
	ks := &mockKeyStore{}
	auth := newTestAuth(ks, time.Minute)

	_, err := auth.Authenticate(context.Background(), "wsk_a")
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("expected ErrInvalidAPIKey, got: %v", err)
	}
	if ks.callCount.Load() != 0 {
		t.Error("DB should not be called for a key shorter than the prefix")
	}
}

func TestPostgresAuth_DBDown_ReturnsUnavailable(t *testing.T) {
	ks := &mockKeyStore{
		err: errors.New("connection refused"),
	}
	auth := newTestAuth(ks, time.Minute)

	_, err := auth.Authenticate(context.Background(), testAPIKey)
	if err == nil {
		t.Fatal("expected error when DB is down, got nil")
	}
	if !errors.Is(err, ErrAuthUnavailable) {
		t.Errorf("expected ErrAuthUnavailable, got: %v", err)
	}
	if errors.Is(err, ErrInvalidAPIKey) {
		t.Error("a DB outage must not look like a bad key")
	}
}

func TestPostgresAuth_InvalidKeyNotCached(t *testing.T) {
	ks := &mockKeyStore{
		row: &store.ServiceKey{ID: 1, Name: "cli", KeyHash: testHash(t)},
	}
	auth := newTestAuth(ks, time.Minute)

	wrong := "wsk_test_wrong_key_doesnt_match_hash"
	for i := 0; i < 3; i++ {
		if _, err := auth.Authenticate(context.Background(), wrong); !errors.Is(err, ErrInvalidAPIKey) {
			t.Fatalf("attempt %d: expected ErrInvalidAPIKey, got %v", i, err)
		}
	}
	// Every rejected attempt goes back to the DB — failures never enter the cache.
	if ks.callCount.Load() != 3 {
		t.Errorf("expected 3 DB calls, got %d", ks.callCount.Load())
	}
}

func TestPostgresAuth_StaleHit_ServesStaleAndRefreshes(t *testing.T) {
	hash := testHash(t)
	ks := &mockKeyStore{
		row: &store.ServiceKey{ID: 7, Name: "before", KeyHash: hash},
	}
	auth := newTestAuth(ks, 1*time.Millisecond) // Very short TTL

	// First call — cache miss
	key, err := auth.Authenticate(context.Background(), testAPIKey)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if key.Name != "before" {
		t.Fatalf("expected name before, got %s", key.Name)
	}
	if ks.callCount.Load() != 1 {
		t.Fatalf("expected 1 DB call, got %d", ks.callCount.Load())
	}

	// Wait for cache to expire
	time.Sleep(5 * time.Millisecond)

	// Update what the store returns so we can verify refresh happened
	ks.row = &store.ServiceKey{ID: 7, Name: "after", KeyHash: hash}

	// Second call — stale hit, returns old value immediately
	key2, err := auth.Authenticate(context.Background(), testAPIKey)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if key2.Name != "before" {
		t.Errorf("stale hit should return old name=before, got %s", key2.Name)
	}

	// Wait for background refresh to complete
	time.Sleep(200 * time.Millisecond)

	// Third call — should now have refreshed value
	key3, err := auth.Authenticate(context.Background(), testAPIKey)
	if err != nil {
		t.Fatalf("third call failed: %v", err)
	}
	if key3.Name != "after" {
		t.Errorf("expected refreshed name=after, got %s", key3.Name)
	}
}

func TestPostgresAuth_FailedRefresh_DropsStaleEntry(t *testing.T) {
	hash := testHash(t)
	ks := &mockKeyStore{
		row: &store.ServiceKey{ID: 7, Name: "cli", KeyHash: hash},
	}
	auth := newTestAuth(ks, 1*time.Millisecond)

	if _, err := auth.Authenticate(context.Background(), testAPIKey); err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	ks.err = errors.New("connection refused")

	// Stale hit still serves the old value while the refresh fails in the background.
	if _, err := auth.Authenticate(context.Background(), testAPIKey); err != nil {
		t.Fatalf("stale hit should succeed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	// The failed refresh evicted the entry, so this call misses the cache
	// and surfaces the outage synchronously.
	_, err := auth.Authenticate(context.Background(), testAPIKey)
	if !errors.Is(err, ErrAuthUnavailable) {
		t.Errorf("expected ErrAuthUnavailable after eviction, got: %v", err)
	}
}

// Verify the interface is satisfied at compile time.
var _ Authenticator = (*PostgresAuthenticator)(nil)
var _ KeyStore = (*store.Store)(nil)
