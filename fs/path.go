package fs

import (
	gopath "path"
	"strings"
)

// Characters which may not appear in a path.
const invalidPathChars = ":\x00\\"

// Normalize cleans a path into canonical form: leading slash, no
// duplicate or trailing slashes ("/" stays "/"), dot segments
// resolved.
func Normalize(p string) string {
	return gopath.Clean("/" + p)
}

// Validate returns ErrInvalidPath if the path contains characters the
// virtual filesystem forbids.
func Validate(p string) error {
	if strings.ContainsAny(p, invalidPathChars) {
		return &PathError{Op: "validate", Path: p, Err: ErrInvalidPath}
	}
	return nil
}

// Split splits a normalized path into its directory and leaf name.
// The directory keeps its leading slash; the leaf of "/" is "".
func Split(p string) (dir, leaf string) {
	p = Normalize(p)
	if p == "/" {
		return "/", ""
	}
	return gopath.Dir(p), gopath.Base(p)
}

// Dir returns the parent directory of a normalized path.
func Dir(p string) string {
	dir, _ := Split(p)
	return dir
}

// Base returns the leaf name of a normalized path.
func Base(p string) string {
	_, leaf := Split(p)
	return leaf
}

// DescendsFrom reports whether child lies strictly inside parent.
// Both paths are normalized first.
func DescendsFrom(parent, child string) bool {
	parent, child = Normalize(parent), Normalize(child)
	if parent == "/" {
		return child != "/"
	}
	return strings.HasPrefix(child, parent+"/")
}

// SegmentJoin joins path segments under a normalized base path.
func SegmentJoin(base string, segments ...string) string {
	return Normalize(gopath.Join(append([]string{base}, segments...)...))
}
