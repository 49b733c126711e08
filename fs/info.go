package fs

import (
	"sort"
	"time"
)

// ResourceType is the kind of a filesystem resource.
type ResourceType int

// Resource types as reported in the "details" namespace.
const (
	TypeUnknown ResourceType = iota
	TypeDirectory
	TypeFile
)

func (t ResourceType) String() string {
	switch t {
	case TypeDirectory:
		return "directory"
	case TypeFile:
		return "file"
	}
	return "unknown"
}

// Info is a namespaced metadata record for a single resource.
//
// The "basic" namespace (name, is_dir) is always present.  "details"
// carries sizes, types and timestamps.  Backends may add further
// namespaces of their own ("hashes", "photo", ...).  Records are built
// fresh for every query and never cached.
type Info struct {
	raw map[string]map[string]interface{}
}

// NewInfo creates an Info from raw namespace data.
func NewInfo(raw map[string]map[string]interface{}) *Info {
	if raw == nil {
		raw = map[string]map[string]interface{}{}
	}
	if _, ok := raw["basic"]; !ok {
		raw["basic"] = map[string]interface{}{}
	}
	return &Info{raw: raw}
}

// Name returns the base name of the resource.
func (i *Info) Name() string {
	name, _ := i.raw["basic"]["name"].(string)
	return name
}

// IsDir reports whether the resource is a directory.
func (i *Info) IsDir() bool {
	isDir, _ := i.raw["basic"]["is_dir"].(bool)
	return isDir
}

// Size returns the resource size in bytes, or 0 if not known.
func (i *Info) Size() int64 {
	size, _ := i.raw["details"]["size"].(int64)
	return size
}

// Type returns the resource type from the "details" namespace.
func (i *Info) Type() ResourceType {
	t, ok := i.raw["details"]["type"].(ResourceType)
	if !ok {
		if i.IsDir() {
			return TypeDirectory
		}
		return TypeUnknown
	}
	return t
}

// Created returns the creation time if the backend reported one.
func (i *Info) Created() (time.Time, bool) {
	return i.timeField("details", "created")
}

// Modified returns the modification time if the backend reported one.
func (i *Info) Modified() (time.Time, bool) {
	return i.timeField("details", "modified")
}

func (i *Info) timeField(namespace, key string) (time.Time, bool) {
	t, ok := i.raw[namespace][key].(time.Time)
	return t, ok
}

// Has reports whether the record carries the given namespace.
func (i *Info) Has(namespace string) bool {
	_, ok := i.raw[namespace]
	return ok
}

// Get returns the raw value of a field in a namespace.
func (i *Info) Get(namespace, key string) (interface{}, bool) {
	ns, ok := i.raw[namespace]
	if !ok {
		return nil, false
	}
	v, ok := ns[key]
	return v, ok
}

// Namespace returns a copy of all fields in a namespace.
func (i *Info) Namespace(name string) (map[string]interface{}, bool) {
	ns, ok := i.raw[name]
	if !ok {
		return nil, false
	}
	out := make(map[string]interface{}, len(ns))
	for k, v := range ns {
		out[k] = v
	}
	return out, true
}

// Namespaces returns the namespaces present in the record, sorted.
func (i *Info) Namespaces() []string {
	out := make([]string, 0, len(i.raw))
	for ns := range i.raw {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}
