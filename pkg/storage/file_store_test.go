package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStoreSaveURLDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "/media/")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	key := "covers/abc.png"
	if err := fs.Save(ctx, key, strings.NewReader("png-bytes"), 9, "image/png"); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "covers", "abc.png"))
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("unexpected content %q", data)
	}

	url, err := fs.URL(ctx, key)
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if url != "/media/covers/abc.png" {
		t.Fatalf("unexpected url %q", url)
	}

	if err := fs.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "covers", "abc.png")); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
	if err := fs.Delete(ctx, key); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}

func TestFileStoreRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	for _, key := range []string{"", "../etc/passwd", "/abs/path", "covers/../../x", ".."} {
		if err := fs.Save(ctx, key, strings.NewReader("x"), 1, ""); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	if _, err := NewFileStore("  ", ""); err == nil {
		t.Fatalf("expected error for empty base path")
	}
}

func TestNewKey(t *testing.T) {
	key := NewKey("avatars", "Me.JPG")
	if !strings.HasPrefix(key, "avatars/") || !strings.HasSuffix(key, ".jpg") {
		t.Fatalf("unexpected key %q", key)
	}
	if NewKey("avatars", "me.jpg") == key {
		t.Fatalf("expected unique keys")
	}
}
