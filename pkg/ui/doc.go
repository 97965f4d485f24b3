// Package ui serves the lens page: one form with one file input, and a
// results container that grows by one image per received message.
//
// Routes:
//
//	GET  /            the page
//	POST /upload      multipart form, field "file"; always answers JSON
//	GET  /blob/{id}   the bytes behind a live object URL
//	GET  /images      the gallery as JSON
//	GET  /events      WebSocket stream of gallery events
//	GET  /healthz     connection state
//	GET  /metrics     Prometheus metrics, when enabled
//
// The page script suppresses the form's native submission and posts with
// fetch, so submitting never navigates. /upload never redirects, which
// keeps the same true for clients without the script.
package ui
