package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "lens").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for payload sizes in bytes.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus collectors.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the payload size histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "lens",
		// 1KB to 32MB
		Buckets:  prometheus.ExponentialBuckets(1024, 4, 8),
		Registry: prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors for the client.
type Metrics struct {
	uploadsTotal     *prometheus.CounterVec
	uploadBytes      prometheus.Histogram
	messagesTotal    prometheus.Counter
	messageBytes     prometheus.Histogram
	galleryImages    prometheus.Gauge
	galleryEvictions prometheus.Counter
	objectURLsLive   prometheus.Gauge
	connectionState  prometheus.Gauge
	sendQueueDepth   prometheus.Gauge
	queuedDropped    prometheus.Counter
	wsErrors         *prometheus.CounterVec
	archiveWrites    *prometheus.CounterVec
}

// NewMetrics registers the collectors and returns them.
//
// Metrics collected:
//   - lens_uploads_total: Counter of form submissions by status
//   - lens_upload_bytes: Histogram of sent payload sizes
//   - lens_messages_received_total: Counter of inbound binary frames
//   - lens_message_bytes: Histogram of inbound payload sizes
//   - lens_gallery_images: Gauge of images currently displayed
//   - lens_gallery_evictions_total: Counter of images evicted from the page
//   - lens_object_urls_live: Gauge of unrevoked object URLs
//   - lens_connection_state: Gauge of the connection state (0 connecting .. 3 closed)
//   - lens_send_queue_depth: Gauge of sends waiting for the connection to open
//   - lens_queued_dropped_total: Counter of queued sends dropped on dial failure
//   - lens_websocket_errors_total: Counter of WebSocket errors by type
//   - lens_archive_writes_total: Counter of archive writes by status
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "uploads_total",
			Help:        "Total number of form submissions by status",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		uploadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "upload_bytes",
			Help:        "Size of uploaded files in bytes",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		messagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "messages_received_total",
			Help:        "Total number of binary messages received from the server",
			ConstLabels: config.ConstLabels,
		}),

		messageBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "message_bytes",
			Help:        "Size of received messages in bytes",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		galleryImages: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "gallery_images",
			Help:        "Number of images currently displayed",
			ConstLabels: config.ConstLabels,
		}),

		galleryEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "gallery_evictions_total",
			Help:        "Total number of images evicted from the gallery",
			ConstLabels: config.ConstLabels,
		}),

		objectURLsLive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "object_urls_live",
			Help:        "Number of object URLs that have not been revoked",
			ConstLabels: config.ConstLabels,
		}),

		connectionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "connection_state",
			Help:        "WebSocket connection state (0 connecting, 1 open, 2 closing, 3 closed)",
			ConstLabels: config.ConstLabels,
		}),

		sendQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "send_queue_depth",
			Help:        "Number of sends waiting for the connection to open",
			ConstLabels: config.ConstLabels,
		}),

		queuedDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "queued_dropped_total",
			Help:        "Total number of queued sends dropped because the connection never opened",
			ConstLabels: config.ConstLabels,
		}),

		wsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "websocket_errors_total",
			Help:        "Total WebSocket errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		archiveWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "archive_writes_total",
			Help:        "Total archive writes by status",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),
	}
}

// RecordUpload records a form submission. status is "sent", "queued" or an
// error category such as "no_file".
func (m *Metrics) RecordUpload(status string, size int) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(status).Inc()
	if size > 0 {
		m.uploadBytes.Observe(float64(size))
	}
}

// RecordMessage records an inbound binary message.
func (m *Metrics) RecordMessage(size int) {
	if m == nil {
		return
	}
	m.messagesTotal.Inc()
	m.messageBytes.Observe(float64(size))
}

// SetGalleryImages sets the number of displayed images.
func (m *Metrics) SetGalleryImages(n int) {
	if m == nil {
		return
	}
	m.galleryImages.Set(float64(n))
}

// RecordEvictions records images evicted from the gallery.
func (m *Metrics) RecordEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.galleryEvictions.Add(float64(n))
}

// SetObjectURLs sets the number of live object URLs.
func (m *Metrics) SetObjectURLs(n int) {
	if m == nil {
		return
	}
	m.objectURLsLive.Set(float64(n))
}

// SetConnectionState records the connection state as its ordinal.
func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(state))
}

// SetQueueDepth records the number of sends waiting for open.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.sendQueueDepth.Set(float64(n))
}

// RecordQueuedDropped records queued sends dropped on dial failure.
func (m *Metrics) RecordQueuedDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.queuedDropped.Add(float64(n))
}

// RecordWebSocketError records a WebSocket error.
func (m *Metrics) RecordWebSocketError(errorType string) {
	if m == nil {
		return
	}
	m.wsErrors.WithLabelValues(errorType).Inc()
}

// RecordArchive records an archive write.
func (m *Metrics) RecordArchive(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.archiveWrites.WithLabelValues(status).Inc()
}
