package fs_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calvinalkan/fuzzycache/pkg/fs"
)

const testContentHello = "hello"

func Test_AtomicWriter_Write_Replaces_Content_When_File_Exists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")

	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	writer := fs.NewAtomicWriter(fs.NewReal())

	err := writer.Write(path, strings.NewReader(testContentHello), fs.DefaultAtomicWriteOptions())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != testContentHello {
		t.Fatalf("content=%q, want %q", string(got), testContentHello)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	if got, want := info.Mode().Perm(), os.FileMode(0o644); got != want {
		t.Fatalf("perm=%v, want=%v", got, want)
	}
}

func Test_AtomicWriter_Write_Leaves_No_Temp_Files_Behind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writer := fs.NewAtomicWriter(fs.NewReal())

	for range 3 {
		err := writer.Write(filepath.Join(dir, "store.db"), strings.NewReader(testContentHello), fs.DefaultAtomicWriteOptions())
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	if len(entries) != 1 || entries[0].Name() != "store.db" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}

		t.Fatalf("dir entries=%v, want [store.db]", names)
	}
}

func Test_AtomicWriter_Write_Returns_Error_When_Perm_Is_Zero(t *testing.T) {
	t.Parallel()

	writer := fs.NewAtomicWriter(fs.NewReal())
	path := filepath.Join(t.TempDir(), "store.db")

	err := writer.Write(path, strings.NewReader(testContentHello), fs.AtomicWriteOptions{})
	if err == nil {
		t.Fatal("Write with zero perm: want error, got nil")
	}
}

type failingRename struct {
	*fs.Real
}

var errRename = errors.New("rename failed")

func (failingRename) Rename(string, string) error { return errRename }

func Test_AtomicWriter_Write_Keeps_Old_Content_When_Rename_Fails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")

	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	writer := fs.NewAtomicWriter(failingRename{fs.NewReal()})

	err := writer.Write(path, strings.NewReader(testContentHello), fs.DefaultAtomicWriteOptions())
	if !errors.Is(err, errRename) {
		t.Fatalf("Write: err=%v, want %v", err, errRename)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != "old" {
		t.Fatalf("content=%q, want %q", string(got), "old")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("temp file left behind: %d entries", len(entries))
	}
}
