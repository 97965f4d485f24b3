package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

const docBase = "https://lens.vango.dev/docs/errors/"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Upload Errors (L001-L009)
	// ============================================

	"L001": {
		Category: CategoryUpload,
		Message:  "No file selected",
		Detail:   "The form was submitted without a file in the file input.",
		DocURL:   docBase + "L001",
	},
	"L002": {
		Category: CategoryUpload,
		Message:  "File too large",
		Detail:   "The selected file exceeds upload.maxFileSize.",
		DocURL:   docBase + "L002",
	},
	"L003": {
		Category: CategoryUpload,
		Message:  "File read failed",
		Detail:   "The selected file could not be opened or read.",
		DocURL:   docBase + "L003",
	},

	// ============================================
	// Connection Errors (L010-L019)
	// ============================================

	"L010": {
		Category: CategoryConnection,
		Message:  "Connection not open",
		Detail:   "The WebSocket connection has not finished opening and the send policy is reject.",
		DocURL:   docBase + "L010",
	},
	"L011": {
		Category: CategoryConnection,
		Message:  "Connection closed",
		Detail:   "The WebSocket connection is closing or closed. Connections are never reopened.",
		DocURL:   docBase + "L011",
	},
	"L012": {
		Category: CategoryConnection,
		Message:  "Send queue full",
		Detail:   "Too many payloads are waiting for the connection to open.",
		DocURL:   docBase + "L012",
	},
	"L013": {
		Category: CategoryConnection,
		Message:  "Connection failed",
		Detail:   "The WebSocket endpoint could not be reached.",
		DocURL:   docBase + "L013",
	},
	"L014": {
		Category: CategoryConnection,
		Message:  "Send failed",
		Detail:   "Writing the binary frame to the WebSocket failed.",
		DocURL:   docBase + "L014",
	},

	// ============================================
	// Display Errors (L020-L029)
	// ============================================

	"L020": {
		Category: CategoryDisplay,
		Message:  "Object URL not found",
		Detail:   "The object URL was never created or has been revoked.",
		DocURL:   docBase + "L020",
	},
	"L021": {
		Category: CategoryDisplay,
		Message:  "Malformed object URL",
		Detail:   "Object URLs have the form blob:<origin>/<id>.",
		DocURL:   docBase + "L021",
	},

	// ============================================
	// Config Errors (L030-L039)
	// ============================================

	"L030": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "No lens.json was found.",
		DocURL:   docBase + "L030",
	},
	"L031": {
		Category: CategoryConfig,
		Message:  "Config parse error",
		Detail:   "lens.json could not be read or is not valid JSON.",
		DocURL:   docBase + "L031",
	},
	"L032": {
		Category: CategoryConfig,
		Message:  "Invalid config",
		Detail:   "A configuration value is out of range.",
		DocURL:   docBase + "L032",
	},

	// ============================================
	// Discovery Errors (L040-L049)
	// ============================================

	"L040": {
		Category: CategoryDiscovery,
		Message:  "Discovery failed",
		Detail:   "No lens endpoint answered the mDNS browse before the timeout.",
		DocURL:   docBase + "L040",
	},

	// ============================================
	// Archive Errors (L050-L059)
	// ============================================

	"L050": {
		Category: CategoryArchive,
		Message:  "Archive write failed",
		Detail:   "A received image could not be written to the archive store.",
		DocURL:   docBase + "L050",
	},

	// ============================================
	// CLI Errors (L060-L069)
	// ============================================

	"L060": {
		Category: CategoryCLI,
		Message:  "Timed out waiting for replies",
		Detail:   "Fewer replies than expected arrived before --timeout.",
		DocURL:   docBase + "L060",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
