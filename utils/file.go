package utils

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// RemoveFileNoError will remove the file at the given path if it exists. Any
// errors will be suppressed.
func RemoveFileNoError(path string) {
	if _, err := os.Stat(path); err == nil {
		//nolint:errcheck
		os.Remove(path)
	}
}

// SafeJoinDir performs a filepath.Join of 'parent' and 'subdir' but returns an error
// if the resulting path points outside of 'parent'.
// See also https://github.com/cyphar/filepath-securejoin.
func SafeJoinDir(parent, subdir string) (string, error) {
	res := filepath.Join(parent, subdir)
	if !strings.HasPrefix(filepath.Clean(res), filepath.Clean(parent)+string(os.PathSeparator)) {
		return res, errors.Errorf("unsafe path join: '%s' with '%s'", parent, subdir)
	}
	return res, nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames it into place, so
// readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := writeTemp(path, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		RemoveFileNoError(tmp)
		return errors.Wrapf(err, "cannot move %q into place", path)
	}
	return nil
}

// WriteFilesAtomic writes every file of files (name to contents) into dir, creating dir if
// needed. All contents are first written to temporary files; only when every temporary file is
// complete are they renamed into place.
func WriteFilesAtomic(dir string, files map[string][]byte) (err error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrapf(err, "cannot create directory %q", dir)
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	temps := make(map[string]string, len(names))
	defer func() {
		if err != nil {
			for _, tmp := range temps {
				RemoveFileNoError(tmp)
			}
		}
	}()
	for _, name := range names {
		path, joinErr := SafeJoinDir(dir, name)
		if joinErr != nil {
			return joinErr
		}
		tmp, writeErr := writeTemp(path, files[name])
		if writeErr != nil {
			return writeErr
		}
		temps[path] = tmp
	}

	var renameErr error
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.Rename(temps[path], path); err != nil {
			renameErr = multierr.Append(renameErr, errors.Wrapf(err, "cannot move %q into place", path))
			continue
		}
		delete(temps, path)
	}
	return renameErr
}

func writeTemp(path string, data []byte) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", errors.Wrapf(err, "cannot create temporary file for %q", path)
	}
	_, err = f.Write(data)
	err = multierr.Combine(err, f.Sync(), f.Close())
	if err != nil {
		RemoveFileNoError(f.Name())
		return "", errors.Wrapf(err, "cannot write temporary file for %q", path)
	}
	return f.Name(), nil
}
