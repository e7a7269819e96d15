package spec

// ErrorCode categorizes loader and converter errors for clearer handling.
type ErrorCode string

const (
	// SpecNotFound means the spec file does not exist or cannot be read.
	SpecNotFound ErrorCode = "SpecNotFound"
	// SpecParseError means the document is not well-formed JSON or YAML.
	SpecParseError ErrorCode = "SpecParseError"
	// SpecFormatError means neither an "openapi" nor a "swagger" version
	// field is present, so the document cannot be classified.
	SpecFormatError ErrorCode = "SpecFormatError"
	// RefResolutionError means a $ref is dangling or circular and the caller
	// did not ask to continue on error.
	RefResolutionError ErrorCode = "RefResolutionError"
	// ConversionError means the Swagger 2.0 → OpenAPI 3 mapping produced a
	// structurally invalid document.
	ConversionError ErrorCode = "ConversionError"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // file path or "inline"
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }
