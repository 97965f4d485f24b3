package conn

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-dev/lens/pkg/telemetry"
)

// SendPolicy decides what Send does before the connection is open.
type SendPolicy int

const (
	// QueueUntilOpen holds payloads and flushes them in order on open.
	QueueUntilOpen SendPolicy = iota

	// RejectUntilOpen fails Send with errors.ErrNotOpen.
	RejectUntilOpen
)

// String returns the config spelling of the policy.
func (p SendPolicy) String() string {
	if p == RejectUntilOpen {
		return "reject"
	}
	return "queue"
}

// ParsePolicy maps "queue" and "reject" to a SendPolicy.
// Anything else yields QueueUntilOpen and false.
func ParsePolicy(s string) (SendPolicy, bool) {
	switch s {
	case "queue":
		return QueueUntilOpen, true
	case "reject":
		return RejectUntilOpen, true
	}
	return QueueUntilOpen, false
}

// Config holds configuration for a Conn.
type Config struct {
	// URL is the ws:// or wss:// endpoint.
	URL string

	// Header is sent with the opening handshake.
	Header http.Header

	// Policy decides what Send does before open.
	// Default: QueueUntilOpen.
	Policy SendPolicy

	// MaxQueue bounds the payloads held while connecting.
	// Default: 16.
	MaxQueue int

	// DialTimeout is the maximum time for the opening handshake.
	// Default: 10 seconds.
	DialTimeout time.Duration

	// WriteTimeout is the maximum time to write one frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// PingInterval is the time between heartbeat pings. When pinging, the
	// connection is considered dead after two intervals without traffic.
	// Zero disables heartbeats.
	PingInterval time.Duration

	// MaxMessageSize is the maximum size of an inbound frame.
	// Default: 32MB.
	MaxMessageSize int64

	// Dialer is the WebSocket dialer.
	// Default: a copy of websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Logger receives lifecycle events.
	// Default: slog.Default().
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *telemetry.Metrics
}

// DefaultConfig returns a Config for url with sensible defaults.
func DefaultConfig(url string) *Config {
	return &Config{
		URL:            url,
		Policy:         QueueUntilOpen,
		MaxQueue:       16,
		DialTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 32 << 20,
	}
}

// withDefaults returns a copy of c with zero values filled in.
func (c *Config) withDefaults() *Config {
	out := DefaultConfig("")
	if c != nil {
		clone := *c
		out = &clone
	}
	if out.MaxQueue <= 0 {
		out.MaxQueue = 16
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = 10 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 10 * time.Second
	}
	if out.MaxMessageSize <= 0 {
		out.MaxMessageSize = 32 << 20
	}
	if out.Dialer == nil {
		d := *websocket.DefaultDialer
		out.Dialer = &d
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}
