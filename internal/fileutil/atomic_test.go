package fileutil

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "umabot.hcl")

	if err := WriteFileAtomic(target, []byte("initial"), 0644); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := WriteFileAtomic(target, []byte("goal { fans = 30000 }\n"), 0600); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "goal { fans = 30000 }\n" {
		t.Errorf("content mismatch: got %q", data)
	}

	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions mismatch: got %o, want %o", info.Mode().Perm(), 0600)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, got %d entries", len(entries))
	}
}

func TestWriteAtomicFailureKeepsOriginal(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "report.json")
	if err := WriteFileAtomic(target, []byte("old"), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	boom := errors.New("encoder exploded")
	err := WriteAtomic(target, 0644, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fill error, got %v", err)
	}

	data, _ := os.ReadFile(target)
	if string(data) != "old" {
		t.Errorf("original clobbered: %q", data)
	}
	entries, _ := os.ReadDir(tmpDir)
	if len(entries) != 1 {
		t.Errorf("temp file left behind: %d entries", len(entries))
	}
}

func TestWriteJSONAtomic(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "reports", "batch.json")
	in := map[string]int{"careers": 10, "goal_met": 7}
	if err := WriteJSONAtomic(target, in); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var out map[string]int
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if out["goal_met"] != 7 {
		t.Errorf("got %v", out)
	}
}

func TestWriteFileAtomicInvalidDir(t *testing.T) {
	t.Parallel()

	if err := WriteFileAtomic("/nonexistent/dir/test.txt", []byte("data"), 0644); err == nil {
		t.Error("expected error when writing to non-existent directory")
	}
}
