package errors

import (
	"sort"
	"sync"
)

// Registered error codes.
const (
	CodeComputeFailed = "R001"
	CodeScopeClosed   = "R002"

	CodeConfigParse   = "R101"
	CodeConfigInvalid = "R102"
	CodeConfigRead    = "R103"

	CodePersistDecode = "R201"
	CodePersistEncode = "R202"
	CodePersistStore  = "R203"

	CodeInspectNotFound = "R301"
	CodeInspectEncode   = "R302"
	CodeInspectExists   = "R303"

	CodeCLIUnknownDemo = "R401"
	CodeCLIInvalidFlag = "R402"
)

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Template{
		CodeComputeFailed: {
			Category: CategoryRuntime,
			Message:  "Computation failed",
		},
		CodeScopeClosed: {
			Category: CategoryRuntime,
			Message:  "Scope closed",
		},

		CodeConfigParse: {
			Category: CategoryConfig,
			Message:  "Invalid configuration file",
		},
		CodeConfigInvalid: {
			Category: CategoryConfig,
			Message:  "Invalid configuration value",
		},
		CodeConfigRead: {
			Category: CategoryConfig,
			Message:  "Configuration file unreadable",
		},

		CodePersistDecode: {
			Category: CategoryPersist,
			Message:  "Stored value could not be decoded",
		},
		CodePersistEncode: {
			Category: CategoryPersist,
			Message:  "Value could not be encoded",
		},
		CodePersistStore: {
			Category: CategoryPersist,
			Message:  "Store operation failed",
		},

		CodeInspectNotFound: {
			Category: CategoryInspect,
			Message:  "Readable not registered",
		},
		CodeInspectEncode: {
			Category: CategoryInspect,
			Message:  "Value could not be encoded as JSON",
		},
		CodeInspectExists: {
			Category: CategoryInspect,
			Message:  "Readable name already registered",
		},

		CodeCLIUnknownDemo: {
			Category: CategoryCLI,
			Message:  "Unknown demo",
		},
		CodeCLIInvalidFlag: {
			Category: CategoryCLI,
			Message:  "Invalid flag value",
		},
	}
)

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (Template, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template Template) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[code] = template
}
