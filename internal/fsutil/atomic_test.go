package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.json")

	if err := WriteFileAtomic(path, []byte(`{"a":1}`), 0644); err != nil {
		t.Fatalf("WriteFileAtomic() failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte(`{"a":2}`), 0644); err != nil {
		t.Fatalf("WriteFileAtomic() overwrite failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if string(data) != `{"a":2}` {
		t.Errorf("content = %q, want %q", data, `{"a":2}`)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file to remain, got %d entries", len(entries))
	}
}

func TestWriteFileAtomic_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "results.json")
	if err := WriteFileAtomic(path, []byte("x"), 0644); err == nil {
		t.Error("expected error for missing parent directory")
	}
}

func TestIsDirIsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if !IsDir(dir) || IsDir(file) {
		t.Error("IsDir() misclassified paths")
	}
	if !IsFile(file) || IsFile(dir) {
		t.Error("IsFile() misclassified paths")
	}
	if IsDir(filepath.Join(dir, "nope")) || IsFile(filepath.Join(dir, "nope")) {
		t.Error("missing paths should be neither dir nor file")
	}
}

func TestResolvePath_NonExistentLeaf(t *testing.T) {
	dir := t.TempDir()
	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("EvalSymlinks() failed: %v", err)
	}

	got, err := ResolvePath(filepath.Join(dir, "out", "results.json"))
	if err != nil {
		t.Fatalf("ResolvePath() failed: %v", err)
	}
	want := filepath.Join(resolvedDir, "out", "results.json")
	if got != want {
		t.Errorf("ResolvePath() = %q, want %q", got, want)
	}
}

func TestResolvePath_Symlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "build")
	if err := os.Mkdir(target, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	got, err := ResolvePath(link)
	if err != nil {
		t.Fatalf("ResolvePath() failed: %v", err)
	}
	want, _ := filepath.EvalSymlinks(target)
	if got != want {
		t.Errorf("ResolvePath() = %q, want %q", got, want)
	}
}
