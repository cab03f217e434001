package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalFileSystem(t *testing.T) {
	fs := NewLocalFileSystem()
	tempDir := t.TempDir()

	testFile := filepath.Join(tempDir, "nested", "dir", "test.txt")

	exists, err := fs.FileExists(testFile)
	if err != nil {
		t.Errorf("FileExists failed: %v", err)
	}
	if exists {
		t.Error("File should not exist yet")
	}

	content := []byte("Hello, World!")
	if err := fs.WriteFile(testFile, content); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	readContent, err := fs.ReadFile(testFile)
	if err != nil {
		t.Errorf("ReadFile failed: %v", err)
	}
	if string(readContent) != string(content) {
		t.Errorf("Expected %s, got %s", content, readContent)
	}

	// Overwrite leaves no temporary siblings behind
	if err := fs.WriteFile(testFile, []byte("second")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(testFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 entry, got %d", len(entries))
	}

	info, err := fs.FileMetaData(testFile)
	if err != nil {
		t.Errorf("FileMetaData failed: %v", err)
	}
	if info.Size() != int64(len("second")) {
		t.Errorf("Expected size %d, got %d", len("second"), info.Size())
	}

	file, err := fs.Open(testFile)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer file.Close()

	exists, err = fs.FileExists(filepath.Dir(testFile))
	if err != nil {
		t.Error(err)
	}
	if exists {
		t.Error("Directory should not be reported as a file")
	}
}

func TestReadFileNotFound(t *testing.T) {
	fs := NewLocalFileSystem()

	_, err := fs.ReadFile(filepath.Join(t.TempDir(), "missing.html"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}

	_, err = fs.Open(filepath.Join(t.TempDir(), "missing.html"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}
}

func TestWithin(t *testing.T) {
	root := t.TempDir()

	path, err := Within(root, "css/styles.css")
	if err != nil {
		t.Errorf("Within failed: %v", err)
	}
	if path != filepath.Join(root, "css", "styles.css") {
		t.Errorf("Unexpected path %s", path)
	}

	if _, err := Within(root, "../etc/passwd"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Expected ErrOutsideRoot, got %v", err)
	}

	if _, err := Within(root, "a/../../b"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("Expected ErrOutsideRoot, got %v", err)
	}
}
