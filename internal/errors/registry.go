package errors

import "sort"

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// State Errors (SL001-SL099)
	// ============================================

	"SL001": {
		Category: CategoryState,
		Message:  "Built-in object in strict state",
	},
	"SL002": {
		Category: CategoryState,
		Message:  "Value is not a store state",
		Detail:   "The value was not returned by a store or one of its consumers.",
	},
	"SL003": {
		Category: CategoryState,
		Message:  "Invalid initial state",
		Detail:   "A store accepts a string-keyed map, a builder function or a *proxy.Node.",
	},
	"SL004": {
		Category: CategoryState,
		Message:  "Notification flush overflow",
		Detail:   "Consumers kept scheduling each other during one flush; the remaining notifications were dropped.",
	},

	// ============================================
	// Invariant Violations (SL100-SL119)
	// ============================================

	"SL100": {
		Category: CategoryInvariant,
		Message:  "Dependency set member without callbacks",
	},

	// ============================================
	// Configuration Errors (SL200-SL219)
	// ============================================

	"SL200": {
		Category: CategoryConfig,
		Message:  "Configuration file not readable",
	},
	"SL201": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
	},
	"SL202": {
		Category: CategoryConfig,
		Message:  "Invalid environment override",
	},
	"SL203": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},

	// ============================================
	// CLI Errors (SL300-SL319)
	// ============================================

	"SL300": {
		Category: CategoryCLI,
		Message:  "Invalid upload target",
		Detail:   "Upload targets have the form s3://bucket/prefix.",
	},
	"SL301": {
		Category: CategoryCLI,
		Message:  "Report upload failed",
	},
	"SL302": {
		Category: CategoryCLI,
		Message:  "Inspector server failed",
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
func GetTemplate(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template Template) {
	registry[code] = template
}
