package store

import (
	"context"
	"strings"
	"testing"
)

func TestFileVault_SaveListDelete(t *testing.T) {
	v, err := NewFileVault(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileVault: %v", err)
	}

	h1, err := v.Save(1, strings.NewReader("första uppladdningen"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	h2, err := v.Save(1, strings.NewReader("andra uppladdningen"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := v.Save(2, strings.NewReader("annat projekt")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	handles, err := v.List(1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("got %d handles, want 2", len(handles))
	}

	if err := v.Delete(1, h1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := v.Delete(1, h2); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	handles, err = v.List(1)
	if err != nil {
		t.Fatalf("List after delete: %v", err)
	}
	if len(handles) != 0 {
		t.Errorf("got %d handles after delete, want 0", len(handles))
	}

	// Other projects are untouched.
	other, err := v.List(2)
	if err != nil || len(other) != 1 {
		t.Errorf("project 2: handles=%v err=%v", other, err)
	}
}

func TestFileVault_MissingProjectIsEmpty(t *testing.T) {
	v, err := NewFileVault(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileVault: %v", err)
	}
	handles, err := v.List(42)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(handles) != 0 {
		t.Errorf("got %d handles, want 0", len(handles))
	}
}

func TestFileVault_DeleteIsIdempotentAndSafe(t *testing.T) {
	v, err := NewFileVault(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileVault: %v", err)
	}
	h, err := v.Save(1, strings.NewReader("innehåll"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := v.Delete(1, h); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := v.Delete(1, h); err != nil {
		t.Errorf("repeat Delete: %v", err)
	}

	if err := v.Delete(1, "../escape"); err == nil {
		t.Error("path-like handle accepted")
	}
}

func TestWipeProvider_UsesVault(t *testing.T) {
	v, err := NewFileVault(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileVault: %v", err)
	}
	if _, err := v.Save(9, strings.NewReader("data")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	p := NewWipeProvider(v, nil)
	files, err := p.ListFiles(context.Background(), 9)
	if err != nil || len(files) != 1 {
		t.Fatalf("ListFiles: files=%v err=%v", files, err)
	}
	if err := p.DeleteFile(context.Background(), 9, files[0]); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	files, err = p.ListFiles(context.Background(), 9)
	if err != nil || len(files) != 0 {
		t.Errorf("after delete: files=%v err=%v", files, err)
	}
}
