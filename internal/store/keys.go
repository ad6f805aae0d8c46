package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ServiceKey represents a row in the service_keys table. Keys authorize
// access to the whole API; the plaintext is shown once at creation.
type ServiceKey struct {
	ID        int64
	Name      string
	KeyHash   string
	KeyPrefix string
	CreatedAt time.Time
}

// GenerateServiceKey creates a new wsk_ key with its bcrypt hash and
// prefix. Returns (fullKey, hash, prefix, error).
func GenerateServiceKey() (string, string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("GenerateServiceKey: %w", err)
	}
	fullKey := "wsk_" + hex.EncodeToString(raw) // 68 chars total

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullKey), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", fmt.Errorf("GenerateServiceKey: %w", err)
	}

	prefix := fullKey[:8] // "wsk_abcd"
	return fullKey, string(hashBytes), prefix, nil
}

// CreateServiceKey inserts a new key and returns it with the plaintext
// (shown once).
func (s *Store) CreateServiceKey(ctx context.Context, name string) (*ServiceKey, string, error) {
	fullKey, keyHash, keyPrefix, err := GenerateServiceKey()
	if err != nil {
		return nil, "", fmt.Errorf("CreateServiceKey: %w", err)
	}

	var k ServiceKey
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO service_keys (name, key_hash, key_prefix)
		VALUES ($1, $2, $3)
		RETURNING id, name, key_hash, key_prefix, created_at`,
		name, keyHash, keyPrefix,
	).Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("CreateServiceKey: %w", err)
	}
	return &k, fullKey, nil
}

// LookupServiceKeyByPrefix finds a key by its 8-char prefix, used by
// auth to narrow candidates before bcrypt verify. Returns nil when no
// key matches.
func (s *Store) LookupServiceKeyByPrefix(ctx context.Context, prefix string) (*ServiceKey, error) {
	var k ServiceKey
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, key_hash, key_prefix, created_at
		FROM service_keys WHERE key_prefix = $1`, prefix,
	).Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LookupServiceKeyByPrefix: %w", err)
	}
	return &k, nil
}

// RotateServiceKey generates a new key for an existing entry, replacing
// its hash and prefix. The old plaintext stops working immediately.
// Returns the key row and the new plaintext (shown once).
func (s *Store) RotateServiceKey(ctx context.Context, id int64) (*ServiceKey, string, error) {
	fullKey, keyHash, keyPrefix, err := GenerateServiceKey()
	if err != nil {
		return nil, "", fmt.Errorf("RotateServiceKey: %w", err)
	}

	var k ServiceKey
	err = s.db.QueryRowContext(ctx, `
		UPDATE service_keys SET key_hash = $2, key_prefix = $3
		WHERE id = $1
		RETURNING id, name, key_hash, key_prefix, created_at`,
		id, keyHash, keyPrefix,
	).Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, "", sql.ErrNoRows
	}
	if err != nil {
		return nil, "", fmt.Errorf("RotateServiceKey: %w", err)
	}
	return &k, fullKey, nil
}

// DeleteServiceKey revokes a key by ID.
func (s *Store) DeleteServiceKey(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM service_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("DeleteServiceKey: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
