package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/lens/internal/errors"
	"github.com/vango-dev/lens/pkg/blob"
	"github.com/vango-dev/lens/pkg/conn"
	"github.com/vango-dev/lens/pkg/gallery"
	"github.com/vango-dev/lens/pkg/page"
	"github.com/vango-dev/lens/pkg/telemetry"
)

type fakeChannel struct {
	mu    sync.Mutex
	state conn.State
	err   error
	sent  [][]byte
}

func (c *fakeChannel) Send(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *fakeChannel) State() conn.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeChannel) sends() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func newTestServer(t *testing.T, ch *fakeChannel, opts Options) (*Server, *page.Page) {
	t.Helper()
	blobs := blob.NewRegistry("http://localhost:3000", nil)
	p := page.New(page.Options{
		Channel:     ch,
		Blobs:       blobs,
		Gallery:     gallery.New(0, blobs),
		MaxFileSize: opts.MaxFileSize,
	})
	t.Cleanup(func() { p.Close() })
	if opts.Endpoint == "" {
		opts.Endpoint = "ws://10.104.18.28:80/ws"
	}
	return New(p, opts), p
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	mw.Close()
	return &body, mw.FormDataContentType()
}

func postUpload(t *testing.T, s *Server, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code >= 300 && rec.Code < 400 {
		t.Fatalf("/upload answered %d; it must never redirect", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return resp.Error.Code
}

func TestIndex(t *testing.T) {
	s, p := newTestServer(t, &fakeChannel{state: conn.StateOpen}, Options{})
	p.HandleMessage(context.Background(), []byte("not an image"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`<form id="form"`,
		`type="file" id="file" name="file"`,
		`<div id="result" data-last-seq="1"`,
		`event.preventDefault()`,
		`<img id="img-1" src="/blob/`,
		`onerror="this.className='broken'"`,
		`ws://10.104.18.28:80/ws`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestIndexRendersEveryMessageAsImage(t *testing.T) {
	s, p := newTestServer(t, &fakeChannel{state: conn.StateOpen}, Options{})

	var pngData bytes.Buffer
	if err := png.Encode(&pngData, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	webp := []byte("RIFF\x1a\x00\x00\x00WEBPVP8L\x0d\x00\x00\x00\x2f\x00\x00\x00\x10\x07\x10\x11\x11\x88\x88\xfe\x07\x00")

	messages := [][]byte{pngData.Bytes(), webp, []byte("opaque bytes")}
	for _, m := range messages {
		p.HandleMessage(context.Background(), m)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	body := rec.Body.String()

	if n := strings.Count(body, `<img id="img-`); n != len(messages) {
		t.Errorf("page has %d <img> elements, want %d", n, len(messages))
	}
	for _, want := range []string{
		`<img id="img-2" src="/blob/`,
		`alt="message 2: image/webp, 34 bytes" width="1" height="1"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, `class="broken"`) {
		t.Error("page renders a message as a non-image element")
	}
}

func TestUploadSendsFile(t *testing.T) {
	ch := &fakeChannel{state: conn.StateOpen}
	s, _ := newTestServer(t, ch, Options{})

	body, ct := multipartBody(t, "file", "ten.bin", []byte("0123456789"))
	rec := postUpload(t, s, body, ct)

	if rec.Code != http.StatusOK {
		t.Fatalf("POST /upload = %d: %s", rec.Code, rec.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Upload == nil || resp.Upload.Size != 10 || resp.Upload.Name != "ten.bin" {
		t.Errorf("upload = %+v", resp.Upload)
	}
	if ch.sends() != 1 || string(ch.sent[0]) != "0123456789" {
		t.Errorf("sent %q", ch.sent)
	}
}

func TestUploadWithoutFile(t *testing.T) {
	tests := []struct {
		name string
		body func(t *testing.T) (io.Reader, string)
	}{
		{"no parts", func(t *testing.T) (io.Reader, string) {
			b, ct := multipartBody(t, "", "", nil)
			return b, ct
		}},
		{"empty file input", func(t *testing.T) (io.Reader, string) {
			b, ct := multipartBody(t, "file", "", nil)
			return b, ct
		}},
		{"other field", func(t *testing.T) (io.Reader, string) {
			b, ct := multipartBody(t, "picture", "a.png", []byte("x"))
			return b, ct
		}},
		{"not multipart", func(t *testing.T) (io.Reader, string) {
			return strings.NewReader("file=a.png"), "application/x-www-form-urlencoded"
		}},
		{"no body", func(t *testing.T) (io.Reader, string) {
			return nil, ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{state: conn.StateOpen}
			s, _ := newTestServer(t, ch, Options{})

			body, ct := tt.body(t)
			rec := postUpload(t, s, body, ct)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if code := errorCode(t, rec); code != "L001" {
				t.Errorf("code = %q, want L001", code)
			}
			if ch.sends() != 0 {
				t.Errorf("sent %d frames, want 0", ch.sends())
			}
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	ch := &fakeChannel{state: conn.StateOpen}
	s, _ := newTestServer(t, ch, Options{MaxFileSize: 8})

	body, ct := multipartBody(t, "file", "big.bin", []byte("0123456789"))
	rec := postUpload(t, s, body, ct)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if code := errorCode(t, rec); code != "L002" {
		t.Errorf("code = %q, want L002", code)
	}

	huge := bytes.Repeat([]byte("x"), multipartOverhead+64)
	body, ct = multipartBody(t, "file", "huge.bin", huge)
	rec = postUpload(t, s, body, ct)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body status = %d, want 413", rec.Code)
	}
	if ch.sends() != 0 {
		t.Errorf("sent %d frames, want 0", ch.sends())
	}
}

func TestUploadChannelErrors(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{"L010", http.StatusServiceUnavailable},
		{"L011", http.StatusServiceUnavailable},
		{"L012", http.StatusServiceUnavailable},
		{"L013", http.StatusServiceUnavailable},
		{"L014", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ch := &fakeChannel{state: conn.StateConnecting, err: errors.New(tt.code)}
			s, _ := newTestServer(t, ch, Options{})

			body, ct := multipartBody(t, "file", "a.png", []byte("x"))
			rec := postUpload(t, s, body, ct)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if code := errorCode(t, rec); code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	if got := StatusFor(io.EOF); got != http.StatusInternalServerError {
		t.Errorf("StatusFor(plain) = %d", got)
	}
	if got := StatusFor(errors.New("L020")); got != http.StatusNotFound {
		t.Errorf("StatusFor(L020) = %d", got)
	}
	if got := StatusFor(errors.New("L003")); got != http.StatusBadRequest {
		t.Errorf("StatusFor(L003) = %d", got)
	}
}

func TestBlob(t *testing.T) {
	s, p := newTestServer(t, &fakeChannel{}, Options{})
	img := p.HandleMessage(context.Background(), []byte("GIF89a-ish"))

	req := httptest.NewRequest(http.MethodGet, "/blob/"+img.ID, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /blob = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "image/gif" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != "GIF89a-ish" {
		t.Errorf("body = %q", rec.Body.String())
	}

	p.Blobs().Revoke(img.URL)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blob/"+img.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /blob after revoke = %d, want 404", rec.Code)
	}
	if code := errorCode(t, rec); code != "L020" {
		t.Errorf("code = %q, want L020", code)
	}
}

func TestImages(t *testing.T) {
	s, p := newTestServer(t, &fakeChannel{}, Options{})
	p.HandleMessage(context.Background(), []byte("one"))
	p.HandleMessage(context.Background(), []byte("two"))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/images", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /images = %d", rec.Code)
	}

	var resp struct {
		Capacity int `json:"capacity"`
		Images   []struct {
			Seq  uint64 `json:"seq"`
			ID   string `json:"id"`
			Src  string `json:"src"`
			Size int    `json:"size"`
		} `json:"images"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Images) != 2 || resp.Images[0].Seq != 1 || resp.Images[1].Seq != 2 {
		t.Fatalf("images = %+v", resp.Images)
	}
	if resp.Images[0].Src != "/blob/"+resp.Images[0].ID || resp.Images[1].Size != 3 {
		t.Errorf("images = %+v", resp.Images)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		state  conn.State
		status int
	}{
		{conn.StateConnecting, http.StatusOK},
		{conn.StateOpen, http.StatusOK},
		{conn.StateClosing, http.StatusServiceUnavailable},
		{conn.StateClosed, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			s, _ := newTestServer(t, &fakeChannel{state: tt.state}, Options{})
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var resp healthResponse
			json.Unmarshal(rec.Body.Bytes(), &resp)
			if resp.State != tt.state.String() {
				t.Errorf("state = %q", resp.State)
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(telemetry.WithRegistry(reg))
	m.RecordMessage(42)

	s, _ := newTestServer(t, &fakeChannel{}, Options{Gatherer: reg})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lens_messages_received_total 1") {
		t.Errorf("metrics output missing counter:\n%s", rec.Body.String())
	}

	s, _ = newTestServer(t, &fakeChannel{}, Options{})
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /metrics without gatherer = %d, want 404", rec.Code)
	}
}

func TestEvents(t *testing.T) {
	s, p := newTestServer(t, &fakeChannel{}, Options{})
	p.HandleMessage(context.Background(), []byte("before-1"))
	p.HandleMessage(context.Background(), []byte("before-2"))

	srv := httptest.NewServer(s)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events?after=1"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial /events: %v", err)
	}
	defer ws.Close()

	read := func() gallery.Event {
		t.Helper()
		ws.SetReadDeadline(time.Now().Add(3 * time.Second))
		var ev gallery.Event
		if err := ws.ReadJSON(&ev); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		return ev
	}

	// Snapshot skips what the client already rendered.
	if ev := read(); ev.Kind != gallery.EventAppend || ev.Image.Seq != 2 {
		t.Fatalf("first event = %+v, want append seq 2", ev)
	}

	p.HandleMessage(context.Background(), []byte("live"))
	ev := read()
	if ev.Kind != gallery.EventAppend || ev.Image.Seq != 3 || ev.Image.Size != 4 {
		t.Errorf("live event = %+v, want append seq 3", ev)
	}
}

func TestEventsRejectsCrossOrigin(t *testing.T) {
	s, _ := newTestServer(t, &fakeChannel{}, Options{})
	srv := httptest.NewServer(s)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("cross-origin upgrade succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}

func TestSameOriginCheck(t *testing.T) {
	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "localhost:3000", true},
		{"http://localhost:3000", "localhost:3000", true},
		{"http://localhost:3001", "localhost:3000", false},
		{"http://evil.example", "localhost:3000", false},
		{"://bad", "localhost:3000", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/events", nil)
		req.Host = tt.host
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := SameOriginCheck(req); got != tt.want {
			t.Errorf("SameOriginCheck(%q, %q) = %v, want %v", tt.origin, tt.host, got, tt.want)
		}
	}
}
