package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiRed   = "\033[31m"
	ansiCyan  = "\033[36m"
	ansiDim   = "\033[90m"
)

// colors is on when stderr is a terminal and NO_COLOR is unset.
var colors = term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == ""

// SetColor turns ANSI styling in Format on or off and returns the previous
// setting.
func SetColor(on bool) bool {
	prev := colors
	colors = on
	return prev
}

func paint(style, s string) string {
	if !colors || s == "" {
		return s
	}
	return style + s + ansiReset
}

// Format renders e for a terminal:
//
//	✗ L013 Could not connect to the endpoint  [connection]
//
//	  The WebSocket handshake with the endpoint failed.
//
//	  cause  dial tcp 10.104.18.28:80: i/o timeout
//	  hint   Check that the image service is running
//	  docs   https://lens.vango.dev/docs/errors/L013
func (e *LensError) Format() string {
	var b strings.Builder

	b.WriteString(paint(ansiRed+ansiBold, "✗ "))
	if e.Code != "" {
		b.WriteString(paint(ansiBold, e.Code))
		b.WriteByte(' ')
	}
	b.WriteString(e.Message)
	if e.Category != "" {
		b.WriteString(paint(ansiDim, "  ["+string(e.Category)+"]"))
	}
	b.WriteString("\n")

	if lines := wrapText(e.Detail, 72); len(lines) > 0 {
		b.WriteString("\n")
		for _, line := range lines {
			b.WriteString("  " + line + "\n")
		}
	}

	fields := [][2]string{{"docs", e.DocURL}}
	if e.Suggestion != "" {
		fields = append([][2]string{{"hint", e.Suggestion}}, fields...)
	}
	if e.Wrapped != nil {
		fields = append([][2]string{{"cause", e.Wrapped.Error()}}, fields...)
	}
	wrote := false
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if !wrote {
			b.WriteString("\n")
			wrote = true
		}
		label := paint(ansiCyan, fmt.Sprintf("%-6s", f[0]))
		b.WriteString("  " + label + " " + f[1] + "\n")
	}

	return b.String()
}

// FormatCompact returns "CODE: message".
func (e *LensError) FormatCompact() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

type jsonError struct {
	Code       string   `json:"code,omitempty"`
	Category   Category `json:"category,omitempty"`
	Message    string   `json:"message"`
	Detail     string   `json:"detail,omitempty"`
	Cause      string   `json:"cause,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	DocURL     string   `json:"docUrl,omitempty"`
}

// FormatJSON returns e as a JSON object. The /upload endpoint answers
// failures with it.
func (e *LensError) FormatJSON() string {
	v := jsonError{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Suggestion: e.Suggestion,
		DocURL:     e.DocURL,
	}
	if e.Wrapped != nil {
		v.Cause = e.Wrapped.Error()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return `{"message":"unencodable error"}`
	}
	return string(data)
}

// wrapText splits text into lines no longer than width, breaking on
// whitespace. A single word longer than width gets its own line.
func wrapText(text string, width int) []string {
	var (
		lines []string
		line  string
	)
	for _, word := range strings.Fields(text) {
		switch {
		case line == "":
			line = word
		case len(line)+1+len(word) <= width:
			line += " " + word
		default:
			lines = append(lines, line)
			line = word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// Fprint writes err to w, using Format for a LensError.
func Fprint(w io.Writer, err error) {
	var le *LensError
	if As(err, &le) {
		fmt.Fprint(w, "\n"+le.Format()+"\n")
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", paint(ansiRed+ansiBold, "✗"), err)
}

// PrintError writes err to stderr.
func PrintError(err error) {
	Fprint(os.Stderr, err)
}
