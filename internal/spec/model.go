package spec

// Flat structured view of an OpenAPI/Swagger document after format detection
// and reference resolution. Consumed by the consistency checker and by
// downstream collaborators that render or persist specs.

// Format identifies the source document family.
type Format string

const (
	FormatOpenAPI Format = "openapi"
	FormatSwagger Format = "swagger"
)

// CanonicalMethods is the set of HTTP methods recognized by both the
// normalizer and the checker, in the order operations are walked.
var CanonicalMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}

// NormalizedSpec is the flat model extracted from a spec document.
// Invariant: every operation's path+method pair is unique.
type NormalizedSpec struct {
	Version    string                `json:"version"`
	Format     Format                `json:"format"`
	Operations []OperationDescriptor `json:"operations"`
	Schemas    []SchemaDescriptor    `json:"schemas"`
	Metadata   Metadata              `json:"metadata"`
}

// Metadata carries document-level information and summary counts.
type Metadata struct {
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	DocVersion     string `json:"docVersion,omitempty"`
	Source         string `json:"source"`
	OperationCount int    `json:"operationCount"`
	SchemaCount    int    `json:"schemaCount"`
}

// OperationDescriptor describes one path+method pair. The path is a template
// and may contain placeholder segments such as {id}.
type OperationDescriptor struct {
	Path        string                 `json:"path"`
	Method      string                 `json:"method"`
	OperationID string                 `json:"operationId,omitempty"`
	Summary     string                 `json:"summary,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Parameters  []ParameterDescriptor  `json:"parameters,omitempty"`
	RequestBody *RequestBodyDescriptor `json:"requestBody,omitempty"`
	Responses   []ResponseDescriptor   `json:"responses,omitempty"`
	Security    []string               `json:"security,omitempty"`
}

// ParameterDescriptor describes an operation parameter.
type ParameterDescriptor struct {
	Name     string `json:"name"`
	In       string `json:"in"` // path|query|header|cookie
	Required bool   `json:"required"`
	Type     string `json:"type,omitempty"`
}

// RequestBodyDescriptor describes an operation request body.
type RequestBodyDescriptor struct {
	Required   bool     `json:"required"`
	MediaTypes []string `json:"mediaTypes,omitempty"`
}

// ResponseDescriptor describes one response status of an operation.
type ResponseDescriptor struct {
	Status      string   `json:"status"`
	Description string   `json:"description,omitempty"`
	MediaTypes  []string `json:"mediaTypes,omitempty"`
}

// SchemaDescriptor names a reusable component schema. Inline schemas are not
// tracked as named entities.
type SchemaDescriptor struct {
	Name       string `json:"name"`
	Shape      string `json:"shape"` // object, array, string, ...
	UsageCount int    `json:"usageCount"`
}

// SchemaNames returns the set of named component schemas.
func (ns *NormalizedSpec) SchemaNames() map[string]struct{} {
	out := make(map[string]struct{}, len(ns.Schemas))
	for _, s := range ns.Schemas {
		out[s.Name] = struct{}{}
	}
	return out
}

// PathMethods returns the method set per path template.
func (ns *NormalizedSpec) PathMethods() map[string][]string {
	out := make(map[string][]string)
	for _, op := range ns.Operations {
		out[op.Path] = append(out[op.Path], op.Method)
	}
	return out
}
