package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")

	if err := WriteFileAtomic(path, []byte("first"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic overwrite failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file to remain, got %d entries", len(entries))
	}
}

func TestWriteFileAtomic_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "file")
	if err := WriteFileAtomic(path, []byte("x"), 0644); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
}

func TestExistsAndRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lock")

	exists, err := Exists(path)
	if err != nil || exists {
		t.Fatalf("Exists(missing) = %v, %v; want false, nil", exists, err)
	}

	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	exists, err = Exists(path)
	if err != nil || !exists {
		t.Fatalf("Exists(present) = %v, %v; want true, nil", exists, err)
	}

	if err := RemoveIfExists(path); err != nil {
		t.Fatalf("RemoveIfExists failed: %v", err)
	}
	if err := RemoveIfExists(path); err != nil {
		t.Fatalf("RemoveIfExists on missing file failed: %v", err)
	}
}

func TestLink(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "post-1.md")
	dst := filepath.Join(dir, "last_post")

	if err := os.WriteFile(src, []byte("body"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Link(src, dst); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if err := Link(src, dst); err == nil {
		t.Error("expected error when link target already exists")
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "body" {
		t.Errorf("linked content = %q, want %q", got, "body")
	}
}
