package page

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vango-dev/lens/internal/errors"
	"github.com/vango-dev/lens/pkg/archive"
	"github.com/vango-dev/lens/pkg/blob"
	"github.com/vango-dev/lens/pkg/conn"
	"github.com/vango-dev/lens/pkg/gallery"
	"github.com/vango-dev/lens/pkg/telemetry"
)

// DefaultMaxFileSize is used when Options.MaxFileSize is zero.
const DefaultMaxFileSize = 10 << 20

// Options configures a Page.
type Options struct {
	// Channel is the connection to send on. It may be left nil and set
	// later with Connect or Attach.
	Channel conn.Channel

	// Blobs holds the object URLs of received images.
	// Default: a registry with origin "null".
	Blobs *blob.Registry

	// Gallery is the results container.
	// Default: an unbounded gallery revoking through Blobs.
	Gallery *gallery.Gallery

	// Archive, when set, receives every displayed image.
	Archive archive.Store

	// MaxFileSize rejects larger files with errors.ErrTooLarge.
	// Negative disables the check. Default: 10MB.
	MaxFileSize int64

	// Logger receives page events.
	// Default: slog.Default().
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *telemetry.Metrics
}

// Upload describes one submitted file.
type Upload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int    `json:"size"`

	// State is the connection state when the frame was handed over:
	// "open" when it was written, "connecting" when it was queued.
	State string `json:"state"`
}

// Page is the upload-and-display client.
type Page struct {
	blobs       *blob.Registry
	gallery     *gallery.Gallery
	archive     archive.Store
	maxFileSize int64
	logger      *slog.Logger
	metrics     *telemetry.Metrics

	mu      sync.RWMutex
	channel conn.Channel
}

// New returns a Page. Call Connect or Attach before Submit.
func New(opts Options) *Page {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Blobs == nil {
		opts.Blobs = blob.NewRegistry("null", opts.Metrics)
	}
	if opts.Gallery == nil {
		opts.Gallery = gallery.New(0, opts.Blobs).WithMetrics(opts.Metrics)
	}
	if opts.MaxFileSize == 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	return &Page{
		channel:     opts.Channel,
		blobs:       opts.Blobs,
		gallery:     opts.Gallery,
		archive:     opts.Archive,
		maxFileSize: opts.MaxFileSize,
		logger:      opts.Logger.With("component", "page"),
		metrics:     opts.Metrics,
	}
}

// Connect opens the page's connection with HandleMessage as its message
// handler and attaches it.
func (p *Page) Connect(ctx context.Context, cfg *conn.Config) *conn.Conn {
	c := conn.Open(ctx, cfg, func(ctx context.Context, payload []byte) {
		p.HandleMessage(ctx, payload)
	})
	p.Attach(c)
	return c
}

// Attach sets the channel Submit sends on.
func (p *Page) Attach(ch conn.Channel) {
	p.mu.Lock()
	p.channel = ch
	p.mu.Unlock()
}

// Channel returns the attached channel, or nil.
func (p *Page) Channel() conn.Channel {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.channel
}

// Gallery returns the results container.
func (p *Page) Gallery() *gallery.Gallery {
	return p.gallery
}

// Blobs returns the object URL registry.
func (p *Page) Blobs() *blob.Registry {
	return p.blobs
}

// Submit sends the first of files as one binary frame containing exactly
// its bytes. With no file selected it fails with errors.ErrNoFileSelected
// and sends nothing.
func (p *Page) Submit(ctx context.Context, files []File) (up *Upload, err error) {
	ctx, span := telemetry.StartSpan(ctx, "submit")
	defer func() { telemetry.EndSpan(span, err) }()

	if len(files) == 0 || files[0] == nil {
		p.metrics.RecordUpload("no_file", 0)
		p.logger.Warn("submit without a file")
		return nil, errors.New("L001").WithSuggestion("Choose a file before submitting the form")
	}
	f := files[0]
	span.SetAttributes(attribute.String("lens.file.name", f.Name()))

	if p.maxFileSize > 0 && f.Size() > p.maxFileSize {
		p.metrics.RecordUpload("too_large", 0)
		return nil, p.tooLarge(f.Name())
	}

	data, err := p.read(f)
	if err != nil {
		p.metrics.RecordUpload("read_error", 0)
		return nil, err
	}
	span.SetAttributes(attribute.Int("lens.file.size", len(data)))

	ch := p.Channel()
	if ch == nil {
		p.metrics.RecordUpload("not_open", len(data))
		return nil, errors.New("L010").WithDetail("The page has no connection")
	}

	state := ch.State()
	if err := ch.Send(ctx, data); err != nil {
		p.metrics.RecordUpload(uploadStatus(err), len(data))
		p.logger.Error("send failed", "file", f.Name(), "bytes", len(data), "error", err)
		return nil, err
	}

	up = &Upload{
		ID:    uuid.NewString(),
		Name:  f.Name(),
		Size:  len(data),
		State: state.String(),
	}
	status := "sent"
	if state == conn.StateConnecting {
		status = "queued"
	}
	p.metrics.RecordUpload(status, len(data))
	p.logger.Info("file submitted", "id", up.ID, "file", up.Name, "bytes", up.Size, "state", up.State)
	return up, nil
}

// read loads f, enforcing the size limit on the bytes actually read.
func (p *Page) read(f File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, errors.New("L003").WithDetail("Opening " + f.Name()).Wrap(err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if p.maxFileSize > 0 {
		r = io.LimitReader(rc, p.maxFileSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.New("L003").WithDetail("Reading " + f.Name()).Wrap(err)
	}
	if p.maxFileSize > 0 && int64(len(data)) > p.maxFileSize {
		return nil, p.tooLarge(f.Name())
	}
	return data, nil
}

func (p *Page) tooLarge(name string) error {
	return errors.New("L002").
		WithDetail(name + " is larger than " + strconv.FormatInt(p.maxFileSize, 10) + " bytes")
}

// HandleMessage displays payload: it creates one object URL for it and
// appends exactly one image to the gallery. Payloads that are not images
// still get an entry; its zero dimensions mark it as undisplayable.
func (p *Page) HandleMessage(ctx context.Context, payload []byte) gallery.Image {
	ctx, span := telemetry.StartSpan(ctx, "message", attribute.Int("lens.message.size", len(payload)))
	defer func() { telemetry.EndSpan(span, nil) }()

	s := sniff(payload)
	url := p.blobs.CreateObjectURL(payload, s.contentType)
	id, _ := blob.ParseObjectURL(url)

	img, evicted := p.gallery.Append(gallery.Image{
		ID:          id,
		URL:         url,
		ContentType: s.contentType,
		Size:        len(payload),
		Width:       s.width,
		Height:      s.height,
		ReceivedAt:  time.Now(),
	})
	span.SetAttributes(
		attribute.Int64("lens.image.seq", int64(img.Seq)),
		attribute.String("lens.image.type", img.ContentType),
	)

	if img.IsImage() {
		p.logger.Debug("image received", "seq", img.Seq, "type", img.ContentType,
			"bytes", img.Size, "width", img.Width, "height", img.Height)
	} else {
		p.logger.Warn("received payload is not a decodable image", "seq", img.Seq,
			"type", img.ContentType, "bytes", img.Size)
	}
	if len(evicted) > 0 {
		p.logger.Debug("evicted images", "count", len(evicted), "oldest", evicted[0].Seq)
	}

	if p.archive != nil {
		p.store(ctx, img, payload)
	}
	return img
}

func (p *Page) store(ctx context.Context, img gallery.Image, payload []byte) {
	key, err := p.archive.Save(ctx, archive.Object{
		ID:          img.ID,
		Seq:         img.Seq,
		ContentType: img.ContentType,
		Width:       img.Width,
		Height:      img.Height,
		ReceivedAt:  img.ReceivedAt,
		Data:        payload,
	})
	p.metrics.RecordArchive(err)
	if err != nil {
		p.logger.Error("archive failed", "seq", img.Seq, "error", err)
		return
	}
	p.logger.Debug("archived", "seq", img.Seq, "key", key)
}

// Close releases every object URL and closes the channel if it can be
// closed. The page should not be used afterwards.
func (p *Page) Close() error {
	n := p.gallery.Release()
	n += p.blobs.RevokeAll()
	p.logger.Info("page closed", "released", n)

	if c, ok := p.Channel().(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func uploadStatus(err error) string {
	switch errors.CodeOf(err) {
	case "L010":
		return "not_open"
	case "L011", "L013":
		return "closed"
	case "L012":
		return "queue_full"
	default:
		return "send_error"
	}
}
