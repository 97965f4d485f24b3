// Package gallery is the results container of a lens page.
//
// Images are kept in receipt order. Each append goes after every image
// already present and nothing is ever reordered. A gallery created with
// capacity 0 never removes anything; with capacity N it keeps the last N
// and revokes the object URL of every image it evicts.
package gallery

import (
	"sync"
	"time"

	"github.com/vango-dev/lens/pkg/telemetry"
)

// Image is one received image as displayed on the page.
type Image struct {
	Seq         uint64    `json:"seq"`
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType"`
	Size        int       `json:"size"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

// IsImage reports whether the payload's dimensions could be decoded. Every
// entry is still displayed as an image; the browser shows the ones it
// cannot render as broken.
func (i Image) IsImage() bool {
	return i.Width > 0 && i.Height > 0
}

// Revoker releases object URLs.
type Revoker interface {
	Revoke(url string) bool
}

// EventKind distinguishes gallery events.
type EventKind string

const (
	EventAppend EventKind = "append"
	EventEvict  EventKind = "evict"
)

// Event reports one change to the gallery.
type Event struct {
	Kind  EventKind `json:"kind"`
	Image Image     `json:"image"`
}

// Gallery is an ordered, optionally bounded list of images.
type Gallery struct {
	capacity int
	revoker  Revoker
	metrics  *telemetry.Metrics

	mu      sync.RWMutex
	images  []Image
	nextSeq uint64
	subs    map[uint64]chan Event
	nextSub uint64
}

// New returns an empty gallery. capacity 0 means unbounded. revoker may be
// nil, in which case evicted URLs are not released.
func New(capacity int, revoker Revoker) *Gallery {
	if capacity < 0 {
		capacity = 0
	}
	return &Gallery{
		capacity: capacity,
		revoker:  revoker,
		nextSeq:  1,
		subs:     make(map[uint64]chan Event),
	}
}

// WithMetrics attaches metrics and returns g.
func (g *Gallery) WithMetrics(m *telemetry.Metrics) *Gallery {
	g.metrics = m
	return g
}

// Capacity returns the bound, or 0 when unbounded.
func (g *Gallery) Capacity() int {
	return g.capacity
}

// Append adds img after all existing images and returns it with its
// sequence number set, together with any images it evicted.
func (g *Gallery) Append(img Image) (Image, []Image) {
	if img.ReceivedAt.IsZero() {
		img.ReceivedAt = time.Now()
	}

	g.mu.Lock()
	img.Seq = g.nextSeq
	g.nextSeq++
	g.images = append(g.images, img)

	var evicted []Image
	if g.capacity > 0 && len(g.images) > g.capacity {
		n := len(g.images) - g.capacity
		evicted = append(evicted, g.images[:n]...)
		g.images = append([]Image(nil), g.images[n:]...)
	}
	count := len(g.images)

	g.publish(Event{Kind: EventAppend, Image: img})
	for _, e := range evicted {
		g.publish(Event{Kind: EventEvict, Image: e})
	}
	g.mu.Unlock()

	if g.revoker != nil {
		for _, e := range evicted {
			g.revoker.Revoke(e.URL)
		}
	}

	g.metrics.SetGalleryImages(count)
	g.metrics.RecordEvictions(len(evicted))
	return img, evicted
}

// Images returns a snapshot in receipt order.
func (g *Gallery) Images() []Image {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Image(nil), g.images...)
}

// Len returns the number of images displayed.
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.images)
}

// Get returns the image with the given object id.
func (g *Gallery) Get(id string) (Image, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, img := range g.images {
		if img.ID == id {
			return img, true
		}
	}
	return Image{}, false
}

// Subscribe returns a channel of subsequent events and a function that
// ends the subscription. A subscriber that falls more than buffer events
// behind misses events rather than blocking Append.
func (g *Gallery) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = ch
	g.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			g.mu.Lock()
			if _, ok := g.subs[id]; ok {
				delete(g.subs, id)
				close(ch)
			}
			g.mu.Unlock()
		})
	}
	return ch, cancel
}

// Release removes every image, revokes their URLs and ends all
// subscriptions. It returns the number of images removed.
func (g *Gallery) Release() int {
	g.mu.Lock()
	released := g.images
	g.images = nil
	for id, ch := range g.subs {
		delete(g.subs, id)
		close(ch)
	}
	g.mu.Unlock()

	if g.revoker != nil {
		for _, img := range released {
			g.revoker.Revoke(img.URL)
		}
	}
	g.metrics.SetGalleryImages(0)
	return len(released)
}

// publish must be called with mu held.
func (g *Gallery) publish(ev Event) {
	for _, ch := range g.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
