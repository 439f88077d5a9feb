package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStoreSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	url, err := fs.Save(context.Background(), "portrait.PNG", strings.NewReader("png-bytes"), 9, "image/png")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(url, URLPrefix+"/") {
		t.Fatalf("url = %q, want %s prefix", url, URLPrefix)
	}
	if !strings.HasSuffix(url, ".png") {
		t.Fatalf("url = %q, want lowercased extension", url)
	}

	name := strings.TrimPrefix(url, URLPrefix+"/")
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("stored content = %q", data)
	}

	if err := fs.Delete(context.Background(), url); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
		t.Fatalf("file should be gone, stat err = %v", err)
	}
	// A second delete is not an error.
	if err := fs.Delete(context.Background(), url); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
}

func TestFileStoreSanitizesFilenames(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	url, err := fs.Save(context.Background(), "../../etc/passwd", strings.NewReader("x"), 1, "text/plain")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	name := strings.TrimPrefix(url, URLPrefix+"/")
	if strings.Contains(name, "/") || strings.Contains(name, "..") {
		t.Fatalf("unsafe stored name %q", name)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one stored file, got %d", len(entries))
	}
}

func TestFileStoreRequiresBasePath(t *testing.T) {
	if _, err := NewFileStore("  "); err == nil {
		t.Fatal("expected error for empty base path")
	}
}
