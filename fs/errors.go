package fs

import (
	"errors"
	"fmt"
)

// Standard errors returned by backends.  Backends wrap these in a
// *PathError so the failing path travels with the error; compare with
// errors.Is.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrDirExists         = errors.New("directory already exists")
	ErrFileExists        = errors.New("file already exists")
	ErrDirNotEmpty       = errors.New("directory not empty")
	ErrDirExpected       = errors.New("not a directory")
	ErrFileExpected      = errors.New("is a directory not a file")
	ErrDestinationExists = errors.New("destination already exists")
	ErrInvalidPath       = errors.New("invalid characters in path")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrPermission        = errors.New("permission denied")
	ErrRemoteConnection  = errors.New("remote connection error")
	ErrUnsupported       = errors.New("operation not supported")
	ErrNotWritable       = errors.New("file not open for writing")
	ErrNotReadable       = errors.New("file not open for reading")
)

// PathError records an error, the operation and the path that caused
// it.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error { return e.Err }

// IsNotFound reports whether err indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
