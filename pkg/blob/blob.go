// Package blob keeps the bytes behind object URLs.
//
// An object URL has the form blob:<origin>/<uuid>. It stays resolvable
// until it is revoked; after that, Resolve and Lookup report
// errors.ErrBlobNotFound.
package blob

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vango-dev/lens/internal/errors"
	"github.com/vango-dev/lens/pkg/telemetry"
)

// Scheme is the URL scheme of object URLs.
const Scheme = "blob:"

// Object is the data an object URL refers to.
type Object struct {
	ID          string
	URL         string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// Size returns the length of the object's data.
func (o *Object) Size() int {
	return len(o.Data)
}

// Registry maps object URLs to their data.
type Registry struct {
	origin  string
	metrics *telemetry.Metrics

	mu      sync.RWMutex
	objects map[string]*Object
}

// NewRegistry returns an empty registry whose URLs carry origin,
// e.g. "http://localhost:3000". metrics may be nil.
func NewRegistry(origin string, metrics *telemetry.Metrics) *Registry {
	return &Registry{
		origin:  strings.TrimSuffix(origin, "/"),
		metrics: metrics,
		objects: make(map[string]*Object),
	}
}

// Origin returns the origin embedded in this registry's URLs.
func (r *Registry) Origin() string {
	return r.origin
}

// CreateObjectURL stores data and returns a new object URL for it.
// The registry keeps data as given; callers must not modify it afterwards.
func (r *Registry) CreateObjectURL(data []byte, contentType string) string {
	id := uuid.NewString()
	obj := &Object{
		ID:          id,
		URL:         Scheme + r.origin + "/" + id,
		ContentType: contentType,
		Data:        data,
		CreatedAt:   time.Now(),
	}

	r.mu.Lock()
	r.objects[id] = obj
	n := len(r.objects)
	r.mu.Unlock()

	r.metrics.SetObjectURLs(n)
	return obj.URL
}

// Resolve returns the object behind url.
func (r *Registry) Resolve(url string) (*Object, error) {
	id, err := ParseObjectURL(url)
	if err != nil {
		return nil, err
	}
	return r.Lookup(id)
}

// Lookup returns the object with the given id.
func (r *Registry) Lookup(id string) (*Object, error) {
	r.mu.RLock()
	obj, ok := r.objects[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.New("L020").WithDetail("No live object URL with id " + id)
	}
	return obj, nil
}

// Revoke releases url. It reports whether url was live.
func (r *Registry) Revoke(url string) bool {
	id, err := ParseObjectURL(url)
	if err != nil {
		return false
	}

	r.mu.Lock()
	_, ok := r.objects[id]
	delete(r.objects, id)
	n := len(r.objects)
	r.mu.Unlock()

	if ok {
		r.metrics.SetObjectURLs(n)
	}
	return ok
}

// RevokeAll releases every live URL and returns how many there were.
func (r *Registry) RevokeAll() int {
	r.mu.Lock()
	n := len(r.objects)
	r.objects = make(map[string]*Object)
	r.mu.Unlock()

	r.metrics.SetObjectURLs(0)
	return n
}

// Len returns the number of live object URLs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// ParseObjectURL extracts the id from an object URL.
func ParseObjectURL(url string) (string, error) {
	rest, ok := strings.CutPrefix(url, Scheme)
	if !ok {
		return "", errors.New("L021").WithDetail("Missing blob: scheme in " + url)
	}
	i := strings.LastIndexByte(rest, '/')
	if i < 0 {
		return "", errors.New("L021").WithDetail("Missing id in " + url)
	}
	id, err := uuid.Parse(rest[i+1:])
	if err != nil {
		return "", errors.New("L021").WithDetail("Invalid id in " + url).Wrap(err)
	}
	return id.String(), nil
}
