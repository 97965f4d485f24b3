package ui

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/lens/internal/errors"
	"github.com/vango-dev/lens/pkg/gallery"
	"github.com/vango-dev/lens/pkg/page"
)

// multipartOverhead is allowed on top of MaxFileSize for form boundaries
// and headers.
const multipartOverhead = 64 << 10

const (
	eventsWriteWait  = 10 * time.Second
	eventsPingPeriod = 30 * time.Second
	eventsBuffer     = 64
)

type indexData struct {
	Endpoint string
	State    string
	Images   []gallery.Image
	LastSeq  uint64
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	images := s.page.Gallery().Images()
	data := indexData{
		Endpoint: s.opts.Endpoint,
		State:    s.state(),
		Images:   images,
	}
	if n := len(images); n > 0 {
		data.LastSeq = images[n-1].Seq
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Error("render index", "error", err)
	}
}

type uploadResponse struct {
	Upload *page.Upload `json:"upload"`
}

// handleUpload sends the form's file. It answers JSON for every outcome,
// including failures; it never redirects.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxFileSize+multipartOverhead)

	var files []page.File
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, errors.New("L002").
				WithDetail("The request body exceeds "+strconv.FormatInt(s.opts.MaxFileSize, 10)+" bytes"))
			return
		}
		// A form without any parts still means "no file selected".
		if err != http.ErrNotMultipart {
			s.logger.Debug("parse upload form", "error", err)
		}
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
		for _, fh := range r.MultipartForm.File["file"] {
			// An empty file input submits a part with no filename.
			if fh.Filename == "" && fh.Size == 0 {
				continue
			}
			files = append(files, page.FileFromHeader(fh))
		}
	}

	up, err := s.page.Submit(r.Context(), files)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Upload: up})
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	obj, err := s.page.Blobs().Lookup(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	ct := obj.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(obj.Size()))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write(obj.Data)
}

type imageView struct {
	gallery.Image
	Src string `json:"src"`
}

type imagesResponse struct {
	Capacity int         `json:"capacity"`
	Images   []imageView `json:"images"`
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	g := s.page.Gallery()
	images := g.Images()

	resp := imagesResponse{
		Capacity: g.Capacity(),
		Images:   make([]imageView, 0, len(images)),
	}
	for _, img := range images {
		resp.Images = append(resp.Images, imageView{Image: img, Src: "/blob/" + img.ID})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvents streams gallery events. Images with a sequence number
// greater than ?after= that are already displayed are sent first, as
// append events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	after, _ := strconv.ParseUint(r.URL.Query().Get("after"), 10, 64)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("events upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	g := s.page.Gallery()
	events, cancel := g.Subscribe(eventsBuffer)
	defer cancel()

	write := func(ev gallery.Event) error {
		ws.SetWriteDeadline(time.Now().Add(eventsWriteWait))
		return ws.WriteJSON(ev)
	}

	// Subscribing before the snapshot may deliver an image twice; the
	// sequence check drops the duplicate.
	last := after
	for _, img := range g.Images() {
		if img.Seq <= last {
			continue
		}
		if err := write(gallery.Event{Kind: gallery.EventAppend, Image: img}); err != nil {
			return
		}
		last = img.Seq
	}

	// The client never sends; reading only surfaces its close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return

		case ev, ok := <-events:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "page closed")
				ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(eventsWriteWait))
				return
			}
			if ev.Kind == gallery.EventAppend {
				if ev.Image.Seq <= last {
					continue
				}
				last = ev.Image.Seq
			}
			if err := write(ev); err != nil {
				return
			}

		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
		}
	}
}

type healthResponse struct {
	State    string `json:"state"`
	Endpoint string `json:"endpoint,omitempty"`
	Images   int    `json:"images"`
}

// handleHealth reports 200 while the connection is connecting or open.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.state()
	status := http.StatusOK
	if state != "open" && state != "connecting" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{
		State:    state,
		Endpoint: s.opts.Endpoint,
		Images:   s.page.Gallery().Len(),
	})
}

func (s *Server) state() string {
	ch := s.page.Channel()
	if ch == nil {
		return "none"
	}
	return ch.State().String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError answers {"error": {...}} with the status for err's code.
func writeError(w http.ResponseWriter, err error) {
	le := errors.FromError(err, "")
	writeJSON(w, StatusFor(err), map[string]json.RawMessage{
		"error": json.RawMessage(le.FormatJSON()),
	})
}

// StatusFor maps an error to the HTTP status /upload and /blob answer with.
func StatusFor(err error) int {
	switch errors.CodeOf(err) {
	case "L001", "L003":
		return http.StatusBadRequest
	case "L002":
		return http.StatusRequestEntityTooLarge
	case "L010", "L011", "L012", "L013":
		return http.StatusServiceUnavailable
	case "L014":
		return http.StatusBadGateway
	case "L020", "L021":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
