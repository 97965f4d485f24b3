package config

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vango-dev/lens/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "lens.json"

	// DefaultEndpoint is the image service on the lab network.
	DefaultEndpoint = "ws://10.104.18.28:80/ws"

	// DefaultService is the mDNS service type browsed when discovery is on.
	DefaultService = "_lens._tcp"

	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."

	// DefaultPort is the default web UI port.
	DefaultPort = 3000

	// DefaultHost is the default web UI host.
	DefaultHost = "localhost"

	// DefaultMaxFileSize is the default upload limit (10MB).
	DefaultMaxFileSize = 10 << 20

	// DefaultMaxMessageSize is the default inbound frame limit (32MB).
	DefaultMaxMessageSize = 32 << 20

	// DefaultGalleryCapacity is the default number of images kept on the page.
	DefaultGalleryCapacity = 50

	// DefaultMaxQueue is the default number of sends held while connecting.
	DefaultMaxQueue = 16
)

// Send policies.
const (
	SendPolicyQueue  = "queue"
	SendPolicyReject = "reject"
)

// Archive kinds.
const (
	ArchiveNone  = ""
	ArchiveDisk  = "disk"
	ArchiveS3    = "s3"
	ArchiveRedis = "redis"
)

// Config represents the complete lens.json configuration.
type Config struct {
	// Endpoint selects the WebSocket server.
	Endpoint EndpointConfig `json:"endpoint"`

	// Connection tunes the single WebSocket connection.
	Connection ConnectionConfig `json:"connection"`

	// Upload constrains outbound files.
	Upload UploadConfig `json:"upload"`

	// Gallery bounds the results container.
	Gallery GalleryConfig `json:"gallery"`

	// UI configures the local web page.
	UI UIConfig `json:"ui"`

	// Archive optionally persists received images.
	Archive ArchiveConfig `json:"archive"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `json:"metrics"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// EndpointConfig selects the WebSocket server.
type EndpointConfig struct {
	// URL is the ws:// or wss:// address of the server.
	URL string `json:"url,omitempty"`

	// Discover resolves the URL over mDNS instead of using URL.
	Discover bool `json:"discover,omitempty"`

	// Service is the mDNS service type (default "_lens._tcp").
	Service string `json:"service,omitempty"`

	// Domain is the mDNS domain (default "local.").
	Domain string `json:"domain,omitempty"`

	// DiscoverTimeout bounds the mDNS browse (e.g., "5s").
	DiscoverTimeout string `json:"discoverTimeout,omitempty"`
}

// ConnectionConfig tunes the single WebSocket connection.
type ConnectionConfig struct {
	// SendPolicy is "queue" (hold sends until open) or "reject".
	SendPolicy string `json:"sendPolicy,omitempty"`

	// MaxQueue bounds the sends held while connecting.
	MaxQueue int `json:"maxQueue,omitempty"`

	// DialTimeout bounds the opening handshake (e.g., "10s").
	DialTimeout string `json:"dialTimeout,omitempty"`

	// WriteTimeout bounds each frame write.
	WriteTimeout string `json:"writeTimeout,omitempty"`

	// PingInterval is the heartbeat period. "0s" disables pings.
	PingInterval string `json:"pingInterval,omitempty"`

	// MaxMessageSize limits inbound frames in bytes.
	MaxMessageSize int64 `json:"maxMessageSize,omitempty"`
}

// UploadConfig constrains outbound files.
type UploadConfig struct {
	// MaxFileSize is the largest file that will be sent, in bytes.
	MaxFileSize int64 `json:"maxFileSize,omitempty"`
}

// GalleryConfig bounds the results container.
type GalleryConfig struct {
	// Capacity is the number of images kept. 0 keeps every image.
	Capacity *int `json:"capacity,omitempty"`
}

// UIConfig configures the local web page.
type UIConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty"`
}

// ArchiveConfig optionally persists received images.
type ArchiveConfig struct {
	// Kind is "", "disk", "s3" or "redis".
	Kind string `json:"kind,omitempty"`

	// Dir is the directory for the disk store.
	Dir string `json:"dir,omitempty"`

	// Bucket is the S3 bucket.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is prepended to every S3 or Redis key.
	Prefix string `json:"prefix,omitempty"`

	// Region is the S3 region.
	Region string `json:"region,omitempty"`

	// Endpoint overrides the S3 endpoint (MinIO and friends).
	Endpoint string `json:"endpoint,omitempty"`

	// RedisAddr is the host:port of the Redis server.
	RedisAddr string `json:"redisAddr,omitempty"`

	// RedisDB selects the Redis database.
	RedisDB int `json:"redisDB,omitempty"`

	// TTL expires Redis entries and removes older disk files (e.g., "24h").
	// Empty keeps them.
	TTL string `json:"ttl,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled mounts the metrics handler on the UI server.
	Enabled *bool `json:"enabled,omitempty"`

	// Path is the URL path of the metrics handler.
	Path string `json:"path,omitempty"`

	// Namespace prefixes every metric name (default "lens").
	Namespace string `json:"namespace,omitempty"`

	// Labels are added to every metric, e.g. {"site": "lab"}.
	Labels map[string]string `json:"labels,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads configuration from the specified directory.
// It looks for lens.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("L030").
				WithDetail("No lens.json found at " + path).
				WithSuggestion("Create lens.json or run without --config to use defaults")
		}
		return nil, errors.New("L031").Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("L031").
			WithDetail("Failed to parse lens.json: " + err.Error()).
			WithSuggestion("Check that lens.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// LoadOrDefault loads lens.json from dir when present and falls back to
// defaults otherwise.
func LoadOrDefault(dir string) (*Config, error) {
	if !Exists(dir) {
		return New(), nil
	}
	return Load(dir)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("L031").Wrap(err)
	}

	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("L031").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	// Endpoint
	if c.Endpoint.URL == "" {
		c.Endpoint.URL = DefaultEndpoint
	}
	if c.Endpoint.Service == "" {
		c.Endpoint.Service = DefaultService
	}
	if c.Endpoint.Domain == "" {
		c.Endpoint.Domain = DefaultDomain
	}
	if c.Endpoint.DiscoverTimeout == "" {
		c.Endpoint.DiscoverTimeout = "5s"
	}

	// Connection
	if c.Connection.SendPolicy == "" {
		c.Connection.SendPolicy = SendPolicyQueue
	}
	if c.Connection.MaxQueue == 0 {
		c.Connection.MaxQueue = DefaultMaxQueue
	}
	if c.Connection.DialTimeout == "" {
		c.Connection.DialTimeout = "10s"
	}
	if c.Connection.WriteTimeout == "" {
		c.Connection.WriteTimeout = "10s"
	}
	if c.Connection.PingInterval == "" {
		c.Connection.PingInterval = "30s"
	}
	if c.Connection.MaxMessageSize == 0 {
		c.Connection.MaxMessageSize = DefaultMaxMessageSize
	}

	// Upload
	if c.Upload.MaxFileSize == 0 {
		c.Upload.MaxFileSize = DefaultMaxFileSize
	}

	// Gallery: nil means "not set"; an explicit 0 means unbounded.
	if c.Gallery.Capacity == nil {
		n := DefaultGalleryCapacity
		c.Gallery.Capacity = &n
	}

	// UI
	if c.UI.Host == "" {
		c.UI.Host = DefaultHost
	}
	if c.UI.Port == 0 {
		c.UI.Port = DefaultPort
	}

	// Archive
	if c.Archive.Kind == ArchiveDisk && c.Archive.Dir == "" {
		c.Archive.Dir = "received"
	}

	// Metrics
	if c.Metrics.Enabled == nil {
		enabled := true
		c.Metrics.Enabled = &enabled
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "lens"
	}
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from LENS_* environment variables.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup("LENS_ENDPOINT"); ok && v != "" {
		c.Endpoint.URL = v
		c.Endpoint.Discover = false
	}
	if v, ok := lookup("LENS_SEND_POLICY"); ok && v != "" {
		c.Connection.SendPolicy = v
	}
	if v, ok := lookup("LENS_UI_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("L032").WithDetail("LENS_UI_PORT must be an integer").Wrap(err)
		}
		c.UI.Port = port
	}
	if v, ok := lookup("LENS_GALLERY_CAPACITY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("L032").WithDetail("LENS_GALLERY_CAPACITY must be an integer").Wrap(err)
		}
		c.Gallery.Capacity = &n
	}
	if v, ok := lookup("LENS_ARCHIVE_DIR"); ok && v != "" {
		c.Archive.Kind = ArchiveDisk
		c.Archive.Dir = v
	}
	if v, ok := lookup("LENS_REDIS_ADDR"); ok && v != "" {
		c.Archive.Kind = ArchiveRedis
		c.Archive.RedisAddr = v
	}
	if v, ok := lookup("LENS_S3_BUCKET"); ok && v != "" {
		c.Archive.Kind = ArchiveS3
		c.Archive.Bucket = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !c.Endpoint.Discover {
		u, err := url.Parse(c.Endpoint.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			return errors.New("L032").
				WithDetail("endpoint.url must be a ws:// or wss:// URL, got " + strconv.Quote(c.Endpoint.URL))
		}
	}

	switch c.Connection.SendPolicy {
	case SendPolicyQueue, SendPolicyReject:
	default:
		return errors.New("L032").
			WithDetail(`connection.sendPolicy must be "queue" or "reject"`)
	}
	if c.Connection.MaxQueue < 0 {
		return errors.New("L032").WithDetail("connection.maxQueue must not be negative")
	}

	for name, value := range map[string]string{
		"endpoint.discoverTimeout": c.Endpoint.DiscoverTimeout,
		"connection.dialTimeout":   c.Connection.DialTimeout,
		"connection.writeTimeout":  c.Connection.WriteTimeout,
		"connection.pingInterval":  c.Connection.PingInterval,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return errors.New("L032").WithDetail(name + " is not a duration: " + value)
		}
	}

	if c.Upload.MaxFileSize < 0 {
		return errors.New("L032").WithDetail("upload.maxFileSize must not be negative")
	}
	if c.GalleryCapacity() < 0 {
		return errors.New("L032").WithDetail("gallery.capacity must not be negative")
	}
	if c.UI.Port < 0 || c.UI.Port > 65535 {
		return errors.New("L032").
			WithDetail("Port must be between 0 and 65535")
	}

	switch c.Archive.Kind {
	case ArchiveNone, ArchiveDisk:
	case ArchiveS3:
		if c.Archive.Bucket == "" {
			return errors.New("L032").WithDetail("archive.bucket is required for the s3 archive")
		}
	case ArchiveRedis:
		if c.Archive.RedisAddr == "" {
			return errors.New("L032").WithDetail("archive.redisAddr is required for the redis archive")
		}
	default:
		return errors.New("L032").WithDetail("archive.kind must be one of disk, s3, redis")
	}
	if c.Archive.TTL != "" {
		if _, err := time.ParseDuration(c.Archive.TTL); err != nil {
			return errors.New("L032").WithDetail("archive.ttl is not a duration: " + c.Archive.TTL)
		}
	}

	return nil
}

// DialTimeout returns connection.dialTimeout parsed.
func (c *Config) DialTimeout() time.Duration {
	return parseDuration(c.Connection.DialTimeout, 10*time.Second)
}

// WriteTimeout returns connection.writeTimeout parsed.
func (c *Config) WriteTimeout() time.Duration {
	return parseDuration(c.Connection.WriteTimeout, 10*time.Second)
}

// PingInterval returns connection.pingInterval parsed.
func (c *Config) PingInterval() time.Duration {
	return parseDuration(c.Connection.PingInterval, 30*time.Second)
}

// DiscoverTimeout returns endpoint.discoverTimeout parsed.
func (c *Config) DiscoverTimeout() time.Duration {
	return parseDuration(c.Endpoint.DiscoverTimeout, 5*time.Second)
}

// ArchiveTTL returns archive.ttl parsed; zero means no expiry.
func (c *Config) ArchiveTTL() time.Duration {
	return parseDuration(c.Archive.TTL, 0)
}

// GalleryCapacity returns gallery.capacity, 0 meaning unbounded.
func (c *Config) GalleryCapacity() int {
	if c.Gallery.Capacity == nil {
		return DefaultGalleryCapacity
	}
	return *c.Gallery.Capacity
}

// MetricsEnabled reports whether the metrics handler is mounted.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Enabled == nil || *c.Metrics.Enabled
}

// UIAddress returns the listen address of the web UI.
func (c *Config) UIAddress() string {
	return c.UI.Host + ":" + strconv.Itoa(c.UI.Port)
}

// UIURL returns the browser URL of the web UI.
func (c *Config) UIURL() string {
	return "http://" + c.UIAddress()
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
