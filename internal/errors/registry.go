package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (C101-C199)
	// ============================================

	"C101": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration file",
		Detail:     "cells.json is not valid JSON or a field has the wrong type.",
		Suggestion: "Compare the file with the output of 'cells config init'",
	},
	"C102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is outside its allowed range.",
	},
	"C103": {
		Category: CategoryConfig,
		Message:  "Configuration file unreadable",
		Detail:   "cells.json exists but could not be read.",
	},
	"C104": {
		Category: CategoryConfig,
		Message:  "Configuration watch failed",
		Detail:   "The configuration file could not be watched for changes. Hot reload is disabled.",
	},

	// ============================================
	// Runtime Errors (C201-C299)
	// ============================================

	"C201": {
		Category:   CategoryRuntime,
		Message:    "Unknown cell",
		Detail:     "The object declares a fixed set of cells and the requested one is not among them.",
		Suggestion: "List the object's cells with GET /objects/{object}",
	},
	"C202": {
		Category: CategoryRuntime,
		Message:  "Cell type mismatch",
		Detail:   "The cell holds a value of a different type than the one requested.",
	},
	"C203": {
		Category: CategoryRuntime,
		Message:  "Index out of range",
		Detail:   "A slice operation addressed an element outside the slice.",
	},
	"C204": {
		Category:   CategoryRuntime,
		Message:    "Propagation depth exceeded",
		Detail:     "A write triggered a cascade of recomputations deeper than the configured limit. This usually means two formulas depend on each other.",
		Suggestion: "Break the cycle or raise runtime.maxDepth in cells.json",
	},
	"C205": {
		Category: CategoryRuntime,
		Message:  "Formula panicked",
		Detail:   "A formula or observer panicked while a write was propagating. The rest of the cascade was aborted.",
	},
	"C206": {
		Category:   CategoryCLI,
		Message:    "Unknown demo",
		Suggestion: "Run 'cells demo --help' to list the available demos",
	},
	"C299": {
		Category: CategoryRuntime,
		Message:  "Runtime error",
	},

	// ============================================
	// Server Errors (C301-C399)
	// ============================================

	"C301": {
		Category:   CategoryServer,
		Message:    "Server failed to listen",
		Detail:     "The HTTP server could not bind its address.",
		Suggestion: "Pick another address with --addr or stop the process using the port",
	},
	"C302": {
		Category: CategoryServer,
		Message:  "Object not found",
		Detail:   "No object is registered under this name.",
	},
	"C304": {
		Category: CategoryServer,
		Message:  "Shutdown timed out",
		Detail:   "Open connections did not close within server.shutdownTimeout.",
	},
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
