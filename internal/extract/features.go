// Package extract recovers API features from raw source text using ordered
// pattern matching. It is a deliberate low-fidelity heuristic standing in for
// real parsing: best effort, never failing, with documented precedence.
package extract

// EndpointRef is one endpoint path literal found in source text.
type EndpointRef struct {
	Path     string `json:"path"`
	Line     int    `json:"line"`
	RawMatch string `json:"rawMatch"`
}

// MethodRef is one HTTP method candidate found in source text. The token is
// decoration-stripped and upper-cased; it is not guaranteed to be a real
// HTTP verb (see StrictMethodDetection).
type MethodRef struct {
	Method   string `json:"method"`
	Line     int    `json:"line"`
	RawMatch string `json:"rawMatch"`
}

// SchemaDecl is a declared schema identifier (interface-like, type-alias-like
// or class-like declaration). Only the name is captured, never the body.
type SchemaDecl struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// ParameterDecl is a declared parameter, with its type annotation when one
// was written.
type ParameterDecl struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Line int    `json:"line"`
}

// CodeFeatureSet is the transient per-call result of feature extraction.
// It is never persisted or cached.
type CodeFeatureSet struct {
	Endpoints   []EndpointRef   `json:"endpoints"`
	Methods     []MethodRef     `json:"methods"`
	SchemaNames []SchemaDecl    `json:"schemaNames"`
	Parameters  []ParameterDecl `json:"parameters"`
}

// Empty reports whether no features of any kind were recovered.
func (fs *CodeFeatureSet) Empty() bool {
	return fs == nil ||
		(len(fs.Endpoints) == 0 && len(fs.Methods) == 0 &&
			len(fs.SchemaNames) == 0 && len(fs.Parameters) == 0)
}
