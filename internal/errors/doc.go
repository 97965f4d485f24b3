// Package errors provides structured, actionable error messages for lens.
//
// Every failure the client can hit while connecting, uploading or displaying
// results carries a stable code (e.g. "L001") that maps to:
//   - A short message describing the error
//   - A detailed explanation
//   - A documentation URL
//
// # Error Categories
//
//   - connection: WebSocket lifecycle errors (not open, closed, dial failures)
//   - upload: Form submission errors (no file selected, file too large)
//   - display: Object URL and gallery errors
//   - config: lens.json and environment errors
//   - discovery: mDNS endpoint discovery errors
//   - archive: Persistence of received images
//   - cli: Command-line usage errors
//
// # Usage
//
//	err := errors.New("L001").
//	    WithSuggestion("Choose a file before submitting the form")
//
//	if errors.Is(err, errors.ErrNoFileSelected) {
//	    // ...
//	}
//
//	fmt.Print(err.Format())
//	// Output:
//	// ✗ L001 No file selected  [upload]
//	//
//	//   The form was submitted without a file in the file input.
//	//
//	//   hint   Choose a file before submitting the form
//	//   docs   https://lens.vango.dev/docs/errors/L001
package errors
