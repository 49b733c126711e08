package fs

import (
	"context"
	"fmt"
)

// SubFs exposes a subdirectory of another filesystem as a filesystem
// in its own right.  All paths are rebased under the subdirectory
// before delegation.
type SubFs struct {
	parent Fs
	dir    string
}

// NewSubFs returns a filesystem rooted at dir inside parent.  The
// directory must already exist.
func NewSubFs(ctx context.Context, parent Fs, dir string) (*SubFs, error) {
	dir = Normalize(dir)
	info, err := parent.GetInfo(ctx, dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &PathError{Op: "opendir", Path: dir, Err: ErrDirExpected}
	}
	return &SubFs{parent: parent, dir: dir}, nil
}

// Parent returns the filesystem this one is a view into.
func (f *SubFs) Parent() Fs { return f.parent }

func (f *SubFs) rebase(p string) string {
	return SegmentJoin(f.dir, Normalize(p))
}

func (f *SubFs) String() string {
	return fmt.Sprintf("%v%s", f.parent, f.dir)
}

// GetInfo implements Fs.
func (f *SubFs) GetInfo(ctx context.Context, path string) (*Info, error) {
	return f.parent.GetInfo(ctx, f.rebase(path))
}

// SetInfo implements Fs.
func (f *SubFs) SetInfo(ctx context.Context, path string, update Update) error {
	return f.parent.SetInfo(ctx, f.rebase(path), update)
}

// ReadDir implements Fs.
func (f *SubFs) ReadDir(ctx context.Context, path string) ([]*Info, error) {
	return f.parent.ReadDir(ctx, f.rebase(path))
}

// MakeDir implements Fs.
func (f *SubFs) MakeDir(ctx context.Context, path string, recreate bool) error {
	return f.parent.MakeDir(ctx, f.rebase(path), recreate)
}

// Remove implements Fs.
func (f *SubFs) Remove(ctx context.Context, path string) error {
	return f.parent.Remove(ctx, f.rebase(path))
}

// RemoveDir implements Fs.
func (f *SubFs) RemoveDir(ctx context.Context, path string) error {
	return f.parent.RemoveDir(ctx, f.rebase(path))
}

// Move implements Fs.
func (f *SubFs) Move(ctx context.Context, src, dst string, overwrite bool) error {
	return f.parent.Move(ctx, f.rebase(src), f.rebase(dst), overwrite)
}

// Copy implements Fs.
func (f *SubFs) Copy(ctx context.Context, src, dst string, overwrite bool) error {
	return f.parent.Copy(ctx, f.rebase(src), f.rebase(dst), overwrite)
}

// Open implements Fs.
func (f *SubFs) Open(ctx context.Context, path, mode string) (File, error) {
	return f.parent.Open(ctx, f.rebase(path), mode)
}

// Close implements Fs.  Closing a SubFs does not close the parent.
func (f *SubFs) Close() error { return nil }

var _ Fs = (*SubFs)(nil)
