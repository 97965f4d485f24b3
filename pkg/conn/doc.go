// Package conn owns the single WebSocket connection of a lens page.
//
// Open starts the opening handshake in the background and returns at once,
// the way a browser's WebSocket constructor does. Unlike the browser, a
// Conn exposes its lifecycle explicitly:
//
//	Connecting → Open → Closing → Closed
//	     └───────────────────────────↑   (dial failure or Close while connecting)
//
// Sends issued while Connecting are either queued and flushed in order once
// the connection opens (QueueUntilOpen) or rejected with errors.ErrNotOpen
// (RejectUntilOpen). Sends after the connection closed fail with
// errors.ErrClosed. A Conn is never reopened.
//
// Inbound binary frames are handed to the Handler one at a time, in receipt
// order, from a single goroutine. Text frames are dropped.
package conn
