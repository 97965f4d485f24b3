// Package discovery finds lens endpoints over mDNS and announces them.
//
// An endpoint is advertised as a service instance (default type
// "_lens._tcp" in "local.") whose TXT record carries the WebSocket path
// as "path=/ws". Resolve turns the first instance found into a ws:// URL.
package discovery

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/vango-dev/lens/internal/errors"
)

const (
	DefaultService = "_lens._tcp"
	DefaultDomain  = "local."
	DefaultTimeout = 5 * time.Second
	DefaultPath    = "/ws"
)

// Options configures Browse and Resolve.
type Options struct {
	// Service is the mDNS service type. Default: "_lens._tcp".
	Service string

	// Domain is the mDNS domain. Default: "local.".
	Domain string

	// Timeout bounds the browse. Default: 5 seconds.
	Timeout time.Duration

	// Instance, when set, only matches the named instance.
	Instance string
}

func (o Options) withDefaults() Options {
	if o.Service == "" {
		o.Service = DefaultService
	}
	if o.Domain == "" {
		o.Domain = DefaultDomain
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Endpoint is one discovered lens server.
type Endpoint struct {
	Instance string `json:"instance"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Path     string `json:"path"`
	Secure   bool   `json:"secure,omitempty"`
}

// URL returns the endpoint's WebSocket URL.
func (e Endpoint) URL() string {
	scheme := "ws://"
	if e.Secure {
		scheme = "wss://"
	}
	return scheme + net.JoinHostPort(e.Host, strconv.Itoa(e.Port)) + e.Path
}

// Browse collects every endpoint seen before the timeout or ctx ends.
func Browse(ctx context.Context, opts Options) ([]Endpoint, error) {
	var found []Endpoint
	err := browse(ctx, opts, func(e Endpoint) bool {
		found = append(found, e)
		return true
	})
	return found, err
}

// Resolve returns the URL of the first matching endpoint.
func Resolve(ctx context.Context, opts Options) (string, error) {
	var first *Endpoint
	err := browse(ctx, opts, func(e Endpoint) bool {
		first = &e
		return false
	})
	if err != nil {
		return "", err
	}
	if first == nil {
		opts = opts.withDefaults()
		return "", errors.New("L040").
			WithDetail("No " + opts.Service + " instance answered within " + opts.Timeout.String()).
			WithSuggestion("Start a peer with 'lens echo --announce' or set endpoint.url")
	}
	slog.Default().With("component", "discovery").Info("resolved endpoint",
		"instance", first.Instance, "url", first.URL())
	return first.URL(), nil
}

// drainTimeout bounds how long entries are drained after a browse ends.
const drainTimeout = 5 * time.Second

// browseFunc starts an mDNS browse that sends entries until ctx ends and
// then closes the channel.
type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

var startBrowse browseFunc = func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return err
	}
	return resolver.Browse(ctx, service, domain, entries)
}

// browse calls fn for each matching entry until fn returns false, the
// timeout passes or ctx ends.
func browse(ctx context.Context, opts Options, fn func(Endpoint) bool) error {
	opts = opts.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	entries := make(chan *zeroconf.ServiceEntry)
	if err := startBrowse(ctx, opts.Service, opts.Domain, entries); err != nil {
		cancel()
		return errors.New("L040").WithDetail("Browsing " + opts.Service).Wrap(err)
	}
	// zeroconf's send on entries ignores ctx; its loop only shuts down
	// once every pending entry has been received.
	defer func() {
		cancel()
		go drain(entries)
	}()

	seen := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-entries:
			if !ok {
				return nil
			}
			e, ok := endpointFromEntry(entry)
			if !ok || seen[e.Instance] {
				continue
			}
			if opts.Instance != "" && e.Instance != opts.Instance {
				continue
			}
			seen[e.Instance] = true
			if !fn(e) {
				return nil
			}
		}
	}
}

// drain receives until entries is closed or drainTimeout passes.
func drain(entries <-chan *zeroconf.ServiceEntry) {
	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()
	for {
		select {
		case _, ok := <-entries:
			if !ok {
				return
			}
		case <-timer.C:
			return
		}
	}
}

// endpointFromEntry converts a zeroconf entry. It reports false when the
// entry has no usable address.
func endpointFromEntry(entry *zeroconf.ServiceEntry) (Endpoint, bool) {
	if entry == nil || entry.Port == 0 {
		return Endpoint{}, false
	}

	e := Endpoint{
		Instance: entry.Instance,
		Port:     entry.Port,
		Path:     DefaultPath,
	}
	switch {
	case len(entry.AddrIPv4) > 0:
		e.Host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		e.Host = entry.AddrIPv6[0].String()
	case entry.HostName != "":
		e.Host = strings.TrimSuffix(entry.HostName, ".")
	default:
		return Endpoint{}, false
	}

	for _, txt := range entry.Text {
		k, v, _ := strings.Cut(txt, "=")
		switch k {
		case "path":
			if v != "" {
				if !strings.HasPrefix(v, "/") {
					v = "/" + v
				}
				e.Path = v
			}
		case "tls":
			e.Secure = v == "1" || v == "true"
		}
	}
	return e, true
}

// Announce registers instance on port with the given WebSocket path and
// returns a function that withdraws it.
func Announce(instance string, port int, path string, opts Options) (func(), error) {
	opts = opts.withDefaults()
	if path == "" {
		path = DefaultPath
	}

	server, err := zeroconf.Register(instance, opts.Service, opts.Domain, port,
		[]string{"txtv=1", "path=" + path}, nil)
	if err != nil {
		return nil, errors.New("L040").WithDetail("Announcing " + instance).Wrap(err)
	}

	slog.Default().With("component", "discovery").Info("announced endpoint",
		"instance", instance, "service", opts.Service, "port", port, "path", path)
	return server.Shutdown, nil
}
