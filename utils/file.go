package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// SafeJoinDir performs a filepath.Join of 'parent' and 'subdir' but returns an error
// if the resulting path points outside of 'parent'.
// See also https://github.com/cyphar/filepath-securejoin.
func SafeJoinDir(parent, subdir string) (string, error) {
	res := filepath.Join(parent, subdir)
	rel, err := filepath.Rel(filepath.Clean(parent), res)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return res, errors.Errorf("unsafe path join: '%s' with '%s'", parent, subdir)
	}
	return res, nil
}

// TruncateFile creates the file at path, or empties it if it already exists.
func TruncateFile(path string) error {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot truncate %q", path)
	}
	return f.Close()
}

// OpenAppend opens the file at path for appending, creating it if needed.
func OpenAppend(path string) (*os.File, error) {
	//nolint:gosec
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %q for appending", path)
	}
	return f, nil
}
