package onedrive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/rkhwaja/fs.onedrivefs/fs"
	"github.com/rkhwaja/fs.onedrivefs/onedrive/api"
	"github.com/rkhwaja/fs.onedrivefs/rest"
)

// Open implements fs.Fs.
//
// Read-only handles stream straight off the remote content endpoint.
// Writable handles buffer in memory and upload the content when
// closed, either in a single PUT or through an upload session for
// larger files.
func (f *Fs) Open(ctx context.Context, p, modeStr string) (fs.File, error) {
	p, err := checkPath(p)
	if err != nil {
		return nil, err
	}
	mode, err := fs.ParseMode(modeStr)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: p, Err: err}
	}
	item, resp, err := f.readItem(ctx, p)
	exists := err == nil
	if err != nil && statusCode(resp) != http.StatusNotFound {
		return nil, translateError("open", p, resp, err)
	}
	if exists && item.IsFolder() {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrFileExpected}
	}
	if mode.Exclusive && exists {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrFileExists}
	}
	if mode.Reading && !mode.Creating && !exists {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotFound}
	}
	if !mode.Writing {
		return f.newDownloadStream(ctx, p, item)
	}
	// make sure that the parent directory exists
	dir := fs.Dir(p)
	parent, resp, err := f.readItem(ctx, dir)
	if err != nil {
		return nil, translateError("open", dir, resp, err)
	}
	if !parent.IsFolder() {
		return nil, &fs.PathError{Op: "open", Path: dir, Err: fs.ErrDirExpected}
	}
	u := &uploadStream{
		f:        f,
		ctx:      ctx,
		path:     p,
		parentID: parent.ID,
		mode:     mode,
	}
	if exists {
		u.itemID = item.ID
	}
	if (mode.Appending || mode.Reading) && !mode.Truncate && exists {
		content, err := f.readContent(ctx, p)
		if err != nil {
			return nil, err
		}
		u.buf = content
		if mode.Appending {
			u.pos = int64(len(content))
		}
	}
	return u, nil
}

// readContent fetches the whole content of the file at path
func (f *Fs) readContent(ctx context.Context, p string) (content []byte, err error) {
	opts := rest.Opts{
		Method: "GET",
		Path:   f.pathURL(p, "/content"),
	}
	resp, err := f.srv.Call(ctx, &opts)
	if err != nil {
		return nil, translateError("read", p, resp, err)
	}
	return rest.ReadBody(resp)
}

// ------------------------------------------------------------

// downloadStream exposes the remote content endpoint as a sequential
// read stream.  Seeking re-opens the stream with a Range header.
type downloadStream struct {
	f      *Fs
	ctx    context.Context
	path   string
	size   int64
	offset int64
	body   io.ReadCloser
}

func (f *Fs) newDownloadStream(ctx context.Context, p string, item *api.Item) (*downloadStream, error) {
	s := &downloadStream{
		f:    f,
		ctx:  ctx,
		path: p,
		size: item.Size,
	}
	if err := s.open(0); err != nil {
		return nil, err
	}
	return s, nil
}

// open starts a ranged GET at the given offset
func (s *downloadStream) open(offset int64) error {
	if s.body != nil {
		_ = s.body.Close()
		s.body = nil
	}
	if offset >= s.size {
		s.body = io.NopCloser(bytes.NewReader(nil))
		s.offset = offset
		return nil
	}
	opts := rest.Opts{
		Method: "GET",
		Path:   s.f.pathURL(s.path, "/content"),
	}
	if offset > 0 {
		opts.ExtraHeaders = map[string]string{"Range": fmt.Sprintf("bytes=%d-", offset)}
	}
	resp, err := s.f.srv.Call(s.ctx, &opts)
	if err != nil {
		return translateError("read", s.path, resp, err)
	}
	s.body = resp.Body
	s.offset = offset
	return nil
}

func (s *downloadStream) Read(p []byte) (n int, err error) {
	n, err = s.body.Read(p)
	s.offset += int64(n)
	return n, err
}

func (s *downloadStream) Write(p []byte) (int, error) {
	return 0, &fs.PathError{Op: "write", Path: s.path, Err: fs.ErrNotWritable}
}

func (s *downloadStream) Truncate(size int64) error {
	return &fs.PathError{Op: "truncate", Path: s.path, Err: fs.ErrNotWritable}
}

func (s *downloadStream) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.offset + offset
	case io.SeekEnd:
		abs = s.size + offset
	default:
		return 0, errors.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("negative seek position")
	}
	if abs == s.offset {
		return abs, nil
	}
	if err := s.open(abs); err != nil {
		return 0, err
	}
	return abs, nil
}

func (s *downloadStream) Close() error {
	if s.body == nil {
		return nil
	}
	err := s.body.Close()
	s.body = nil
	return err
}

// ------------------------------------------------------------

// uploadStream buffers writes in memory and uploads the content when
// closed.
type uploadStream struct {
	f        *Fs
	ctx      context.Context
	path     string
	itemID   string // ID of the existing item, or "" when creating
	parentID string
	mode     fs.Mode
	buf      []byte
	pos      int64
	closed   bool
}

func (u *uploadStream) Read(p []byte) (int, error) {
	if !u.mode.Reading {
		return 0, &fs.PathError{Op: "read", Path: u.path, Err: fs.ErrNotReadable}
	}
	if u.pos >= int64(len(u.buf)) {
		return 0, io.EOF
	}
	n := copy(p, u.buf[u.pos:])
	u.pos += int64(n)
	return n, nil
}

func (u *uploadStream) Write(p []byte) (int, error) {
	if !u.mode.Writing {
		return 0, &fs.PathError{Op: "write", Path: u.path, Err: fs.ErrNotWritable}
	}
	end := u.pos + int64(len(p))
	if end > int64(len(u.buf)) {
		grown := make([]byte, end)
		copy(grown, u.buf)
		u.buf = grown
	}
	copy(u.buf[u.pos:end], p)
	u.pos = end
	return len(p), nil
}

func (u *uploadStream) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = u.pos + offset
	case io.SeekEnd:
		abs = int64(len(u.buf)) + offset
	default:
		return 0, errors.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("negative seek position")
	}
	u.pos = abs
	return abs, nil
}

// Truncate changes the size of the buffer.  Extending writes zero
// bytes, matching what native files do.
func (u *uploadStream) Truncate(size int64) error {
	if !u.mode.Writing {
		return &fs.PathError{Op: "truncate", Path: u.path, Err: fs.ErrNotWritable}
	}
	if size < 0 {
		return errors.New("negative truncate size")
	}
	current := int64(len(u.buf))
	switch {
	case size <= current:
		u.buf = u.buf[:size]
	default:
		grown := make([]byte, size)
		copy(grown, u.buf)
		u.buf = grown
	}
	return nil
}

// Close sends the buffered content to the remote.  Small files go up
// in a single PUT, larger ones through an upload session.
func (u *uploadStream) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	if !u.mode.Writing {
		return nil
	}
	if len(u.buf) < uploadCutoff {
		return u.singlePut()
	}
	return u.uploadSession()
}

// singlePut uploads the content in one request
func (u *uploadStream) singlePut() error {
	var path string
	if u.itemID != "" {
		// upload a new version
		path = u.f.itemURL(u.itemID, "/content")
	} else {
		// we have to create a new file
		path = u.f.itemURL(u.parentID, ":/"+url.PathEscape(fs.Base(u.path))+":/content")
	}
	length := int64(len(u.buf))
	opts := rest.Opts{
		Method:        "PUT",
		Path:          path,
		Body:          bytes.NewReader(u.buf),
		ContentType:   "application/octet-stream",
		ContentLength: &length,
	}
	var info *api.Item
	resp, err := u.f.srv.CallJSON(u.ctx, &opts, nil, &info)
	if err != nil && statusCode(resp) == http.StatusConflict {
		// workaround for possible OneDrive bug - try once more
		fs.Debugf(u.f, "retrying upload of %q after conflict", u.path)
		opts.Body = bytes.NewReader(u.buf)
		resp, err = u.f.srv.CallJSON(u.ctx, &opts, nil, &info)
	}
	return translateError("upload", u.path, resp, err)
}

// uploadSession uploads the content in fragments through a resumable
// upload session
func (u *uploadStream) uploadSession() (err error) {
	opts := rest.Opts{
		Method: "POST",
		Path:   u.f.itemURL(u.parentID, ":/"+url.PathEscape(fs.Base(u.path))+":/createUploadSession"),
	}
	var session api.CreateUploadResponse
	resp, err := u.f.srv.CallJSON(u.ctx, &opts, nil, &session)
	if err != nil {
		return translateError("upload", u.path, resp, err)
	}
	uploadURL := session.UploadURL

	// Cancel the session if something goes wrong
	defer func() {
		if err != nil {
			fs.Debugf(u.f, "cancelling upload session for %q", u.path)
			if cancelErr := u.cancelSession(uploadURL); cancelErr != nil {
				fs.Logf(u.f, "failed to cancel upload session: %v", cancelErr)
			}
		}
	}()

	size := int64(len(u.buf))
	for position := int64(0); position < size; {
		n := int64(fragmentSize)
		if remaining := size - position; remaining < n {
			n = remaining
		}
		fs.Debugf(u.f, "uploading fragment %d/%d size %d", position, size, n)
		if err = u.uploadFragment(uploadURL, position, n, size); err != nil {
			return err
		}
		position += n
	}
	return nil
}

// uploadFragment sends one fragment to the session URL
func (u *uploadStream) uploadFragment(uploadURL string, start, length, totalSize int64) error {
	fragment := u.buf[start : start+length]
	put := func() (*http.Response, error) {
		opts := rest.Opts{
			Method:        "PUT",
			RootURL:       uploadURL,
			ContentLength: &length,
			ContentRange:  fmt.Sprintf("bytes %d-%d/%d", start, start+length-1, totalSize),
			Body:          bytes.NewReader(fragment),
		}
		var response api.UploadFragmentResponse
		return u.f.srv.CallJSON(u.ctx, &opts, nil, &response)
	}
	resp, err := put()
	if err != nil && statusCode(resp) == http.StatusConflict {
		// workaround for possible OneDrive bug - try once more
		fs.Debugf(u.f, "retrying fragment of %q after conflict", u.path)
		resp, err = put()
	}
	return translateError("upload", u.path, resp, err)
}

// cancelSession cancels an upload session
func (u *uploadStream) cancelSession(uploadURL string) error {
	opts := rest.Opts{
		Method:     "DELETE",
		RootURL:    uploadURL,
		NoResponse: true,
	}
	_, err := u.f.srv.Call(u.ctx, &opts)
	return err
}

var (
	_ fs.File = (*downloadStream)(nil)
	_ fs.File = (*uploadStream)(nil)
)
