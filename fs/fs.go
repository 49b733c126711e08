// Package fs defines the generic virtual filesystem interface which
// storage backends implement.  Callers work in terms of POSIX style
// paths and namespaced info records and stay unaware of what storage
// sits behind the interface.
package fs

import (
	"context"
	"io"
)

// Fs is the interface a storage backend provides.
//
// All paths are POSIX style, slash separated and rooted at "/".
// Implementations normalize paths before use.
type Fs interface {
	// GetInfo returns the info record for the resource at path.
	GetInfo(ctx context.Context, path string) (*Info, error)

	// SetInfo updates metadata on the resource at path.  Fields the
	// backend can't change are ignored.
	SetInfo(ctx context.Context, path string, update Update) error

	// ReadDir returns the entries of the directory at path in the
	// order the backend returns them.
	ReadDir(ctx context.Context, path string) ([]*Info, error)

	// MakeDir creates a directory at path.  The parent must already
	// exist.  If the directory exists it is an error unless recreate
	// is set.
	MakeDir(ctx context.Context, path string, recreate bool) error

	// Remove deletes the file at path.  It is an error if path is a
	// directory.
	Remove(ctx context.Context, path string) error

	// RemoveDir deletes the empty directory at path.
	RemoveDir(ctx context.Context, path string) error

	// Move renames or reparents the resource at src to dst.  If
	// overwrite is not set and dst exists it is an error.
	Move(ctx context.Context, src, dst string, overwrite bool) error

	// Copy copies the file at src to dst.  If overwrite is not set
	// and dst exists it is an error.
	Copy(ctx context.Context, src, dst string, overwrite bool) error

	// Open opens the file at path in the given mode ("r", "w", "a",
	// "r+", "x" etc - see ParseMode).
	Open(ctx context.Context, path, mode string) (File, error)

	// Close shuts down the filesystem and releases any resources.
	Close() error
}

// File is a handle to an open file.
//
// Handles opened for write buffer their content and send it to the
// backend when closed, so Close errors must be checked.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer

	// Truncate changes the size of the file.  Extending writes zero
	// bytes.
	Truncate(size int64) error
}

// Update maps namespace to field name to new value, mirroring the
// layout of Info.  Timestamps are time.Time values.  Namespaces or
// fields the backend doesn't support are ignored.
type Update map[string]map[string]interface{}

// Exists reports whether a resource exists at path.
func Exists(ctx context.Context, fsys Fs, path string) (bool, error) {
	_, err := fsys.GetInfo(ctx, path)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsDir reports whether the resource at path is a directory.  A
// missing path is reported as false with no error.
func IsDir(ctx context.Context, fsys Fs, path string) (bool, error) {
	info, err := fsys.GetInfo(ctx, path)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// CheckClose closes the Closer, assigning the error to err if err is
// unset.  Used to check errors on deferred Close calls.
func CheckClose(c io.Closer, err *error) {
	cerr := c.Close()
	if *err == nil {
		*err = cerr
	}
}
