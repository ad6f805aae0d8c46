package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

// FileVault stores original uploads on disk under one directory per
// project. Files are named by random UUID: the original filename is a
// source identifier and never touches the filesystem or the database.
type FileVault struct {
	root string
}

// NewFileVault creates the vault root if needed.
func NewFileVault(root string) (*FileVault, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("NewFileVault: %w", err)
	}
	return &FileVault{root: root}, nil
}

func (v *FileVault) projectDir(projectID int64) string {
	return filepath.Join(v.root, strconv.FormatInt(projectID, 10))
}

// Save writes an upload into the project's area and returns its handle.
func (v *FileVault) Save(projectID int64, r io.Reader) (string, error) {
	dir := v.projectDir(projectID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("FileVault.Save: %w", err)
	}

	handle := uuid.NewString()
	f, err := os.OpenFile(filepath.Join(dir, handle), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("FileVault.Save: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("FileVault.Save: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("FileVault.Save: %w", err)
	}
	return handle, nil
}

// List returns the handles stored for a project. A missing project dir
// is an empty list, not an error.
func (v *FileVault) List(projectID int64) ([]string, error) {
	entries, err := os.ReadDir(v.projectDir(projectID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FileVault.List: %w", err)
	}

	var handles []string
	for _, e := range entries {
		if !e.IsDir() {
			handles = append(handles, e.Name())
		}
	}
	return handles, nil
}

// Delete removes one stored file. Deleting an absent file is a no-op.
func (v *FileVault) Delete(projectID int64, handle string) error {
	// Handles are vault-issued UUIDs; anything path-like is rejected.
	if handle != filepath.Base(handle) {
		return fmt.Errorf("FileVault.Delete: invalid handle")
	}
	err := os.Remove(filepath.Join(v.projectDir(projectID), handle))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("FileVault.Delete: %w", err)
	}
	// Drop the project dir once empty; ignore failure, the orphan scan
	// only counts files.
	os.Remove(v.projectDir(projectID))
	return nil
}

// WipeProvider joins the vault and the database rows of one project
// into the shape the delete verifier drives.
type WipeProvider struct {
	vault *FileVault
	store *Store
}

func NewWipeProvider(vault *FileVault, store *Store) *WipeProvider {
	return &WipeProvider{vault: vault, store: store}
}

func (p *WipeProvider) ListFiles(ctx context.Context, targetID int64) ([]string, error) {
	return p.vault.List(targetID)
}

func (p *WipeProvider) DeleteFile(ctx context.Context, targetID int64, handle string) error {
	return p.vault.Delete(targetID, handle)
}

func (p *WipeProvider) DeleteRows(ctx context.Context, targetID int64) (int64, error) {
	return p.store.DeleteProjectData(ctx, targetID)
}
