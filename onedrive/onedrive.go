// Package onedrive provides access to a Microsoft OneDrive through
// the generic virtual filesystem interface, talking to the Microsoft
// Graph API.
package onedrive

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/rkhwaja/fs.onedrivefs/fs"
	"github.com/rkhwaja/fs.onedrivefs/oauthutil"
	"github.com/rkhwaja/fs.onedrivefs/onedrive/api"
	"github.com/rkhwaja/fs.onedrivefs/rest"
)

const (
	graphURL = "https://graph.microsoft.com/v1.0"
	authURL  = "https://login.microsoftonline.com/common/oauth2/v2.0/authorize"
	tokenURL = "https://login.microsoftonline.com/consumers/oauth2/v2.0/token"

	// Files up to this size go up in a single PUT, larger ones
	// through an upload session.
	uploadCutoff = 4 << 20

	// Upload session fragment size - the Graph API requires a
	// multiple of 320 KiB.
	fragmentSize = 10 * 320 * 1024

	// How long to poll the monitor URL of an async copy before
	// giving up.
	copyTimeout = 5 * time.Minute
)

// Register with Fs
func init() {
	fs.Register(&fs.RegInfo{
		Name:        "onedrive",
		Description: "Microsoft OneDrive",
		NewFs:       NewFs,
	})
}

// OAuthConfig returns the oauth2 config for the Microsoft identity
// platform with the scopes this backend needs.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{"Files.ReadWrite.All", "offline_access"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}
}

// Options holds the configuration for a OneDrive filesystem.
type Options struct {
	ClientID     string
	ClientSecret string

	// Token is an already acquired OAuth2 token.  Acquiring one in
	// the first place is the application's business.
	Token *oauth2.Token

	// SaveToken is called whenever the session refreshes the token.
	SaveToken oauthutil.SaveTokenFn

	// DriveID addresses /drives/{id} instead of the default
	// /me/drive.
	DriveID string

	// Client overrides the OAuth session entirely.  Used by tests
	// and by callers that already hold an authenticated client.
	Client *http.Client

	// ServiceURL overrides the Graph API endpoint.  Used by tests.
	ServiceURL string
}

// Fs represents a remote OneDrive
type Fs struct {
	srv        *rest.Client // the connection to the OneDrive server
	serviceURL string
	driveRoot  string // "/me/drive" or "/drives/{id}"
	ts         *oauthutil.TokenSource
}

// New constructs an Fs from the options.
//
// No path to item ID cache is kept: every operation resolves against
// the live remote hierarchy so external changes are always seen.
func New(opt Options) (*Fs, error) {
	client := opt.Client
	var ts *oauthutil.TokenSource
	if client == nil {
		if opt.Token == nil {
			return nil, errors.New("no token supplied")
		}
		client, ts = oauthutil.NewClient(context.Background(), OAuthConfig(opt.ClientID, opt.ClientSecret), opt.Token, opt.SaveToken)
	}
	serviceURL := opt.ServiceURL
	if serviceURL == "" {
		serviceURL = graphURL
	}
	driveRoot := "/me/drive"
	if opt.DriveID != "" {
		driveRoot = "/drives/" + opt.DriveID
	}
	f := &Fs{
		srv:        rest.NewClient(client).SetRoot(serviceURL),
		serviceURL: serviceURL,
		driveRoot:  driveRoot,
		ts:         ts,
	}
	f.srv.SetErrorHandler(errorHandler)
	return f, nil
}

// NewFs constructs an Fs from a config map, as parsed from a
// connection string.
func NewFs(config fs.ConfigMap) (fs.Fs, error) {
	token := &oauth2.Token{
		TokenType:    "Bearer",
		AccessToken:  config.Get("access_token", ""),
		RefreshToken: config.Get("refresh_token", ""),
	}
	return New(Options{
		ClientID:     config.Get("client_id", ""),
		ClientSecret: config.Get("client_secret", ""),
		Token:        token,
		DriveID:      config.Get("drive_id", ""),
	})
}

// String converts this Fs to a string
func (f *Fs) String() string {
	return "OneDrive '" + f.driveRoot + "'"
}

// Close implements fs.Fs.  There is nothing to release.
func (f *Fs) Close() error { return nil }

// errorHandler parses a non 2xx error response into an error
func errorHandler(resp *http.Response) error {
	// Decode error response
	errResponse := new(api.Error)
	err := rest.DecodeJSON(resp, &errResponse)
	if err != nil {
		fs.Debugf(nil, "Couldn't decode error response: %v", err)
	}
	if errResponse.ErrorInfo.Code == "" {
		errResponse.ErrorInfo.Code = resp.Status
	}
	return errResponse
}

func statusCode(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// translateError shapes a remote failure into a PathError carrying
// one of the standard filesystem errors where the HTTP status allows,
// or the raw Graph error otherwise.
func translateError(op, path string, resp *http.Response, err error) error {
	if err == nil {
		return nil
	}
	cause := err
	switch statusCode(resp) {
	case http.StatusNotFound:
		cause = fs.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		cause = errors.WithMessage(fs.ErrPermission, err.Error())
	case http.StatusBadRequest:
		cause = errors.WithMessage(fs.ErrInvalidPath, err.Error())
	case http.StatusMethodNotAllowed:
		cause = errors.WithMessage(fs.ErrInvalidOperation, err.Error())
	}
	return &fs.PathError{Op: op, Path: path, Err: cause}
}

// escapePath escapes each segment of a filesystem path for use in a
// URL
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i := range segments {
		segments[i] = url.PathEscape(segments[i])
	}
	return strings.Join(segments, "/")
}

// pathURL addresses an item by filesystem path.  extra is appended
// after the path-colon, e.g. "/children" or "/content".
func (f *Fs) pathURL(p, extra string) string {
	p = fs.Normalize(p)
	if p == "/" {
		return f.driveRoot + "/root" + extra
	}
	if extra != "" {
		extra = ":" + extra
	}
	return f.driveRoot + "/root:" + escapePath(p) + extra
}

// itemURL addresses an item by its opaque ID
func (f *Fs) itemURL(id, extra string) string {
	return f.driveRoot + "/items/" + id + extra
}

// readItem reads the metadata for the item at path
func (f *Fs) readItem(ctx context.Context, p string) (info *api.Item, resp *http.Response, err error) {
	opts := rest.Opts{
		Method: "GET",
		Path:   f.pathURL(p, ""),
	}
	resp, err = f.srv.CallJSON(ctx, &opts, nil, &info)
	return info, resp, err
}

// listChildren fetches all children of the item with the given ID,
// following @odata.nextLink paging
func (f *Fs) listChildren(ctx context.Context, id string) (items []api.Item, err error) {
	opts := rest.Opts{
		Method:     "GET",
		Path:       f.itemURL(id, "/children"),
		Parameters: url.Values{"$top": {"1000"}},
	}
	for {
		var result api.ListChildrenResponse
		_, err := f.srv.CallJSON(ctx, &opts, nil, &result)
		if err != nil {
			return nil, errors.Wrap(err, "couldn't list children")
		}
		for i := range result.Value {
			item := &result.Value[i]
			if item.Deleted != nil {
				continue
			}
			items = append(items, *item)
		}
		if result.NextLink == "" {
			break
		}
		opts = rest.Opts{
			Method:  "GET",
			RootURL: result.NextLink,
		}
	}
	return items, nil
}

// deleteItem removes an item by ID
func (f *Fs) deleteItem(ctx context.Context, id string) error {
	opts := rest.Opts{
		Method:     "DELETE",
		Path:       f.itemURL(id, ""),
		NoResponse: true,
	}
	_, err := f.srv.Call(ctx, &opts)
	return err
}

// checkPath normalizes and validates a path
func checkPath(p string) (string, error) {
	if err := fs.Validate(p); err != nil {
		return "", err
	}
	return fs.Normalize(p), nil
}

// GetInfo implements fs.Fs
func (f *Fs) GetInfo(ctx context.Context, p string) (*fs.Info, error) {
	p, err := checkPath(p)
	if err != nil {
		return nil, err
	}
	item, resp, err := f.readItem(ctx, p)
	if err != nil {
		return nil, translateError("getinfo", p, resp, err)
	}
	return itemInfo(item), nil
}

// SetInfo implements fs.Fs.  Only the created and modified timestamps
// in the "details" namespace can be changed; everything else is
// ignored.
func (f *Fs) SetInfo(ctx context.Context, p string, update fs.Update) error {
	p, err := checkPath(p)
	if err != nil {
		return err
	}
	item, resp, err := f.readItem(ctx, p)
	if err != nil {
		return translateError("setinfo", p, resp, err)
	}
	var fsInfo api.FileSystemInfoFacet
	if details, ok := update["details"]; ok {
		if created, ok := details["created"].(time.Time); ok {
			ts := api.Timestamp(created)
			fsInfo.CreatedDateTime = &ts
		}
		if modified, ok := details["modified"].(time.Time); ok {
			ts := api.Timestamp(modified)
			fsInfo.LastModifiedDateTime = &ts
		}
	}
	if fsInfo.CreatedDateTime == nil && fsInfo.LastModifiedDateTime == nil {
		return nil
	}
	opts := rest.Opts{
		Method:     "PATCH",
		Path:       f.itemURL(item.ID, ""),
		NoResponse: true,
	}
	patch := api.SetFileSystemInfo{FileSystemInfo: fsInfo}
	resp, err = f.srv.CallJSON(ctx, &opts, &patch, nil)
	return translateError("setinfo", p, resp, err)
}

// ReadDir implements fs.Fs
func (f *Fs) ReadDir(ctx context.Context, p string) ([]*fs.Info, error) {
	p, err := checkPath(p)
	if err != nil {
		return nil, err
	}
	item, resp, err := f.readItem(ctx, p)
	if err != nil {
		return nil, translateError("readdir", p, resp, err)
	}
	if !item.IsFolder() {
		return nil, &fs.PathError{Op: "readdir", Path: p, Err: fs.ErrDirExpected}
	}
	children, err := f.listChildren(ctx, item.ID)
	if err != nil {
		return nil, translateError("readdir", p, nil, err)
	}
	infos := make([]*fs.Info, 0, len(children))
	for i := range children {
		infos = append(infos, itemInfo(&children[i]))
	}
	return infos, nil
}

// MakeDir implements fs.Fs
func (f *Fs) MakeDir(ctx context.Context, p string, recreate bool) error {
	p, err := checkPath(p)
	if err != nil {
		return err
	}
	if p == "/" {
		if recreate {
			return nil
		}
		return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrDirExists}
	}
	dir, leaf := fs.Split(p)
	parent, resp, err := f.readItem(ctx, dir)
	if err != nil {
		return translateError("mkdir", dir, resp, err)
	}
	if !parent.IsFolder() {
		return &fs.PathError{Op: "mkdir", Path: dir, Err: fs.ErrDirExpected}
	}
	if existing, resp, err := f.readItem(ctx, p); err == nil {
		if existing.IsFolder() {
			if recreate {
				return nil
			}
			return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrDirExists}
		}
		return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrFileExists}
	} else if statusCode(resp) != http.StatusNotFound {
		return translateError("mkdir", p, resp, err)
	}
	opts := rest.Opts{
		Method: "POST",
		Path:   f.itemURL(parent.ID, "/children"),
	}
	mkdir := api.CreateItemRequest{
		Name:             leaf,
		ConflictBehavior: "fail",
	}
	var info *api.Item
	resp, err = f.srv.CallJSON(ctx, &opts, &mkdir, &info)
	if err != nil {
		if statusCode(resp) == http.StatusConflict {
			return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrDirExists}
		}
		return translateError("mkdir", p, resp, err)
	}
	return nil
}

// Remove implements fs.Fs.  It only removes files; directories go
// through RemoveDir.
func (f *Fs) Remove(ctx context.Context, p string) error {
	p, err := checkPath(p)
	if err != nil {
		return err
	}
	item, resp, err := f.readItem(ctx, p)
	if err != nil {
		return translateError("remove", p, resp, err)
	}
	if item.IsFolder() {
		return &fs.PathError{Op: "remove", Path: p, Err: fs.ErrFileExpected}
	}
	if err := f.deleteItem(ctx, item.ID); err != nil {
		return translateError("remove", p, nil, err)
	}
	return nil
}

// RemoveDir implements fs.Fs.  The directory must be empty.
func (f *Fs) RemoveDir(ctx context.Context, p string) error {
	p, err := checkPath(p)
	if err != nil {
		return err
	}
	if p == "/" {
		return &fs.PathError{Op: "rmdir", Path: p, Err: fs.ErrInvalidOperation}
	}
	item, resp, err := f.readItem(ctx, p)
	if err != nil {
		return translateError("rmdir", p, resp, err)
	}
	if !item.IsFolder() {
		return &fs.PathError{Op: "rmdir", Path: p, Err: fs.ErrDirExpected}
	}
	children, err := f.listChildren(ctx, item.ID)
	if err != nil {
		return translateError("rmdir", p, nil, err)
	}
	if len(children) > 0 {
		return &fs.PathError{Op: "rmdir", Path: p, Err: fs.ErrDirNotEmpty}
	}
	if err := f.deleteItem(ctx, item.ID); err != nil {
		return translateError("rmdir", p, nil, err)
	}
	return nil
}

// Move implements fs.Fs.  Files and directories can both be moved; a
// directory may not be moved into one of its own descendants.
func (f *Fs) Move(ctx context.Context, src, dst string, overwrite bool) error {
	src, err := checkPath(src)
	if err != nil {
		return err
	}
	dst, err = checkPath(dst)
	if err != nil {
		return err
	}
	if src == dst {
		return nil
	}
	if fs.DescendsFrom(src, dst) {
		return &fs.PathError{Op: "move", Path: dst, Err: fs.ErrInvalidOperation}
	}
	dstExists, err := fs.Exists(ctx, f, dst)
	if err != nil {
		return err
	}
	if dstExists && !overwrite {
		return &fs.PathError{Op: "move", Path: dst, Err: fs.ErrDestinationExists}
	}
	item, resp, err := f.readItem(ctx, src)
	if err != nil {
		return translateError("move", src, resp, err)
	}
	move := api.MoveItemRequest{}
	if fs.Base(dst) != fs.Base(src) {
		move.Name = fs.Base(dst)
	}
	srcDir, dstDir := fs.Dir(src), fs.Dir(dst)
	if srcDir != dstDir {
		parent, resp, err := f.readItem(ctx, dstDir)
		if err != nil {
			return translateError("move", dstDir, resp, err)
		}
		move.ParentReference = &api.ItemReference{ID: parent.ID}
	}
	patch := func() (*http.Response, error) {
		opts := rest.Opts{
			Method:     "PATCH",
			Path:       f.itemURL(item.ID, ""),
			NoResponse: true,
		}
		return f.srv.CallJSON(ctx, &opts, &move, nil)
	}
	resp, err = patch()
	if err != nil && statusCode(resp) == http.StatusConflict {
		if overwrite {
			// delete the existing version and then try again
			existing, resp2, err2 := f.readItem(ctx, dst)
			if err2 != nil {
				return translateError("move", dst, resp2, err2)
			}
			if err2 := f.deleteItem(ctx, existing.ID); err2 != nil {
				return translateError("move", dst, nil, err2)
			}
		} else {
			// the server sometimes reports a spurious conflict, so
			// try once more
			fs.Debugf(f, "retrying move of %q after conflict", src)
		}
		resp, err = patch()
	}
	return translateError("move", src, resp, err)
}

// Copy implements fs.Fs.  The Graph API runs copies asynchronously so
// this starts the copy and then polls the returned monitor URL until
// the job finishes.
func (f *Fs) Copy(ctx context.Context, src, dst string, overwrite bool) error {
	src, err := checkPath(src)
	if err != nil {
		return err
	}
	dst, err = checkPath(dst)
	if err != nil {
		return err
	}
	dstExists, err := fs.Exists(ctx, f, dst)
	if err != nil {
		return err
	}
	if dstExists {
		if !overwrite {
			return &fs.PathError{Op: "copy", Path: dst, Err: fs.ErrDestinationExists}
		}
		existing, resp, err := f.readItem(ctx, dst)
		if err != nil {
			return translateError("copy", dst, resp, err)
		}
		if err := f.deleteItem(ctx, existing.ID); err != nil {
			return translateError("copy", dst, nil, err)
		}
	}
	item, resp, err := f.readItem(ctx, src)
	if err != nil {
		return translateError("copy", src, resp, err)
	}
	if item.IsFolder() {
		return &fs.PathError{Op: "copy", Path: src, Err: fs.ErrFileExpected}
	}
	dstDir := fs.Dir(dst)
	parent, resp, err := f.readItem(ctx, dstDir)
	if err != nil {
		return translateError("copy", dstDir, resp, err)
	}
	name := fs.Base(dst)
	copyReq := api.CopyItemRequest{
		ParentReference: api.ItemReference{
			ID:      parent.ID,
			DriveID: parentDriveID(parent),
		},
		Name: &name,
	}
	opts := rest.Opts{
		Method:       "POST",
		Path:         f.itemURL(item.ID, "/copy"),
		ExtraHeaders: map[string]string{"Prefer": "respond-async"},
		NoResponse:   true,
	}
	resp, err = f.srv.CallJSON(ctx, &opts, &copyReq, nil)
	if err != nil {
		return translateError("copy", src, resp, err)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return &fs.PathError{Op: "copy", Path: src, Err: errors.New("didn't receive location header in copy response")}
	}
	if err := f.waitForJob(ctx, location); err != nil {
		return &fs.PathError{Op: "copy", Path: src, Err: err}
	}
	return nil
}

func parentDriveID(item *api.Item) string {
	if item.ParentReference == nil {
		return ""
	}
	return item.ParentReference.DriveID
}

// waitForJob polls the monitor URL of an async operation until it
// completes
func (f *Fs) waitForJob(ctx context.Context, location string) error {
	deadline := time.Now().Add(copyTimeout)
	for time.Now().Before(deadline) {
		opts := rest.Opts{
			Method:       "GET",
			RootURL:      location,
			IgnoreStatus: true,
		}
		resp, err := f.srv.Call(ctx, &opts)
		if err != nil {
			return err
		}
		var status api.AsyncOperationStatus
		if err := rest.DecodeJSON(resp, &status); err != nil {
			return err
		}
		switch status.Status {
		case "completed":
			return nil
		case "failed", "deleteFailed":
			return errors.Errorf("async operation %q returned %q", status.Operation, status.Status)
		}
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.Errorf("async operation didn't complete after %v", copyTimeout)
}

// Check the interfaces are satisfied
var _ fs.Fs = (*Fs)(nil)
