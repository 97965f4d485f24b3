// Package echo is a development peer for lens: a WebSocket server that
// answers every binary frame with binary frames of its own.
//
// In ModeEcho the reply is the received payload. In ModeImage the reply is
// a small PNG whose colour is derived from the payload, which lets the web
// UI show something for any file.
package echo

import (
	"bytes"
	"context"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Mode selects how the peer replies.
type Mode string

const (
	ModeEcho  Mode = "echo"
	ModeImage Mode = "image"
)

// Options configures a Server.
type Options struct {
	// Path is the WebSocket path. Default: "/ws".
	Path string

	// Mode selects the reply. Default: ModeEcho.
	Mode Mode

	// Replies is the number of frames sent per received frame. Default: 1.
	Replies int

	// Delay is waited before replying.
	Delay time.Duration

	// ImageSize is the edge length of ModeImage replies. Default: 64.
	ImageSize int

	// MaxMessageSize limits inbound frames. Default: 32MB.
	MaxMessageSize int64

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the echo peer.
type Server struct {
	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router

	received atomic.Int64
	sent     atomic.Int64
}

// New returns a peer serving opts.Path.
func New(opts Options) *Server {
	if opts.Path == "" {
		opts.Path = "/ws"
	}
	if opts.Mode == "" {
		opts.Mode = ModeEcho
	}
	if opts.Replies <= 0 {
		opts.Replies = 1
	}
	if opts.ImageSize <= 0 {
		opts.ImageSize = 64
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 32 << 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		opts:   opts,
		logger: opts.Logger.With("component", "echo"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The peer stands in for a remote service; pages from any
			// origin may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(opts.Path, s.handleWS)
	s.router = r
	return s
}

// Path returns the WebSocket path.
func (s *Server) Path() string {
	return s.opts.Path
}

// Stats returns the number of frames received and sent so far.
func (s *Server) Stats() (received, sent int64) {
	return s.received.Load(), s.sent.Load()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("echo peer listening", "address", addr, "path", s.opts.Path, "mode", s.opts.Mode)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)
		return
	}
	defer ws.Close()
	ws.SetReadLimit(s.opts.MaxMessageSize)

	logger := s.logger.With("remote", r.RemoteAddr)
	logger.Info("client connected")

	for {
		mt, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("read error", "error", err)
			}
			logger.Info("client disconnected")
			return
		}
		if mt != websocket.BinaryMessage {
			logger.Debug("ignoring non-binary frame", "type", mt)
			continue
		}
		s.received.Add(1)

		if s.opts.Delay > 0 {
			time.Sleep(s.opts.Delay)
		}

		reply := s.reply(msg)
		for i := 0; i < s.opts.Replies; i++ {
			if err := ws.WriteMessage(websocket.BinaryMessage, reply); err != nil {
				logger.Warn("write error", "error", err)
				return
			}
			s.sent.Add(1)
		}
		logger.Debug("replied", "in", len(msg), "out", len(reply), "replies", s.opts.Replies)
	}
}

func (s *Server) reply(payload []byte) []byte {
	if s.opts.Mode != ModeImage {
		return payload
	}
	return Swatch(payload, s.opts.ImageSize)
}

// Swatch returns a size×size PNG filled with a colour derived from payload.
func Swatch(payload []byte, size int) []byte {
	h := fnv.New32a()
	h.Write(payload)
	sum := h.Sum32()
	c := color.RGBA{R: uint8(sum >> 16), G: uint8(sum >> 8), B: uint8(sum), A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}
