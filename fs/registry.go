package fs

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ConfigMap holds backend configuration as parsed from a connection
// string's query parameters.
type ConfigMap map[string]string

// Get returns the value for key, or def if unset.
func (m ConfigMap) Get(key, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

// RegInfo describes a registered backend.
type RegInfo struct {
	// Name is the URL scheme the backend is opened with.
	Name string
	// Description of the backend.
	Description string
	// NewFs creates a filesystem from configuration.
	NewFs func(config ConfigMap) (Fs, error)
}

var (
	registryMu sync.Mutex
	registry   = map[string]*RegInfo{}
)

// Register adds a backend to the registry.  Usually called from the
// backend package's init.
func Register(info *RegInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[info.Name] = info
}

// Find looks up a backend by scheme name.
func Find(name string) (*RegInfo, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	info, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("didn't find backend %q", name)
	}
	return info, nil
}

// Open instantiates a filesystem from a connection string of the form
//
//	scheme://dir/path?key=value&key=value
//
// The query parameters become the backend's ConfigMap.  If the
// connection string names a directory the returned filesystem is
// rooted there.
func Open(ctx context.Context, connString string) (Fs, error) {
	u, err := url.Parse(connString)
	if err != nil {
		return nil, errors.Wrap(err, "invalid connection string")
	}
	if u.Scheme == "" {
		return nil, errors.Errorf("connection string %q has no scheme", connString)
	}
	info, err := Find(u.Scheme)
	if err != nil {
		return nil, err
	}
	config := ConfigMap{}
	for key, values := range u.Query() {
		if len(values) > 0 {
			config[key] = values[0]
		}
	}
	fsys, err := info.NewFs(config)
	if err != nil {
		return nil, err
	}
	dir := Normalize(strings.TrimSuffix(u.Host, "/") + "/" + u.Path)
	if dir != "/" {
		return NewSubFs(ctx, fsys, dir)
	}
	return fsys, nil
}
