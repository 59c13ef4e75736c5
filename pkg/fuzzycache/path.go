package fuzzycache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"

	"github.com/calvinalkan/fuzzycache/pkg/fs"
)

const dirPerm = 0o750

// resolvePath turns a user-supplied path into the canonical path that
// identifies the store: "~" expanded, absolute, symlinks resolved. The parent
// directory is created on the way, because symlinks can only be resolved for
// paths that exist.
func resolvePath(fsys fs.FS, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path must be set: %w", ErrInvalidConfiguration)
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w: %w", path, ErrInvalidConfiguration, err)
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("absolute path of %q: %w: %w", path, ErrInvalidConfiguration, err)
	}

	dir, base := filepath.Split(abs)

	err = fsys.MkdirAll(dir, dirPerm)
	if err != nil {
		return "", fmt.Errorf("create directory %q: %w: %w", dir, ErrIO, err)
	}

	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", fmt.Errorf("resolve directory %q: %w: %w", dir, ErrIO, err)
	}

	full := filepath.Join(realDir, base)

	// The file itself may be a symlink to the real store.
	resolved, err := filepath.EvalSymlinks(full)
	switch {
	case err == nil:
		return resolved, nil
	case errors.Is(err, os.ErrNotExist):
		return full, nil
	default:
		return "", fmt.Errorf("resolve %q: %w: %w", full, ErrIO, err)
	}
}
