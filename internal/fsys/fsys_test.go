package fsys

import (
	"os"
	"path/filepath"
	"testing"
)

func testWriteReadExists(t *testing.T, fs Filesystem) {
	t.Helper()
	p := filepath.Join("dir", "file.txt")

	if err := fs.MkdirAll("dir", 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := fs.WriteFile(p, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	ok, err := fs.Exists(p)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !ok {
		t.Errorf("Exists(%q) = false, want true", p)
	}

	b, err := fs.ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(b) != "hello" {
		t.Errorf("ReadFile = %q, want %q", string(b), "hello")
	}

	ok, err = fs.Exists("missing.txt")
	if err != nil {
		t.Fatalf("Exists on missing path failed: %v", err)
	}
	if ok {
		t.Errorf("Exists(missing) = true, want false")
	}
}

func testCreateWriteStat(t *testing.T, fs Filesystem) {
	t.Helper()
	f, err := fs.Create("created.txt")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.Write([]byte("abc")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	info, err := fs.Stat("created.txt")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 3 {
		t.Errorf("Size = %d, want 3", info.Size())
	}
}

func testWalk(t *testing.T, fs Filesystem) {
	t.Helper()
	for _, p := range []string{"w/a.txt", "w/sub/b.txt"} {
		if err := fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		if err := fs.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	var files []string
	err := fs.Walk("w", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, filepath.Base(path))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Walk found %d files, want 2: %v", len(files), files)
	}
}

func TestInMemoryFS(t *testing.T) {
	fs := NewInMemoryFS()
	testWriteReadExists(t, fs)
	testCreateWriteStat(t, fs)
	testWalk(t, fs)
}

func TestOSFS(t *testing.T) {
	fs := NewOSFS(t.TempDir())
	testWriteReadExists(t, fs)
	testCreateWriteStat(t, fs)
	testWalk(t, fs)
}
