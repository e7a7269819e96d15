package extract

import (
	"sort"
	"strconv"
	"strings"

	"github.com/apilens/apilens/internal/logging"
)

// Extractor is the capability interface of a code feature extractor. The
// pattern-based implementation below and an AST-based one are interchangeable
// without touching the consistency checker.
type Extractor interface {
	ExtractEndpoints(source string) []EndpointRef
	ExtractMethods(source string) []MethodRef
	ExtractSchemas(source string) []SchemaDecl
	ExtractParameters(source string) []ParameterDecl
}

// MaxSourceBytes is the default input bound; larger inputs are truncated so
// pattern matching cost stays proportional.
const MaxSourceBytes = 2 << 20

// httpVerbs is the canonical method set.
var httpVerbs = map[string]struct{}{
	"GET": {}, "POST": {}, "PUT": {}, "DELETE": {},
	"PATCH": {}, "HEAD": {}, "OPTIONS": {},
}

// IsHTTPVerb reports whether token (already upper-cased) is a canonical
// HTTP method.
func IsHTTPVerb(token string) bool {
	_, ok := httpVerbs[token]
	return ok
}

// PatternExtractor recovers features by applying the ordered pattern
// category tables. It is pure and total: malformed or pathological input
// degrades to an empty feature set and a logged warning, never an error.
type PatternExtractor struct {
	logger        logging.Logger
	maxBytes      int
	strictMethods bool
}

// ExtractorOption configures a PatternExtractor.
type ExtractorOption func(*PatternExtractor)

// WithLogger sets the diagnostics logger.
func WithLogger(l logging.Logger) ExtractorOption {
	return func(e *PatternExtractor) { e.logger = logging.OrNop(l) }
}

// WithMaxSourceBytes overrides the input size bound.
func WithMaxSourceBytes(n int) ExtractorOption {
	return func(e *PatternExtractor) {
		if n > 0 {
			e.maxBytes = n
		}
	}
}

// WithStrictMethodDetection limits method candidates to the canonical HTTP
// verb set. The default (false) keeps every call-shaped token so invalid
// methods surface as findings downstream.
func WithStrictMethodDetection(strict bool) ExtractorOption {
	return func(e *PatternExtractor) { e.strictMethods = strict }
}

// NewPatternExtractor returns the default heuristic extractor.
func NewPatternExtractor(opts ...ExtractorOption) *PatternExtractor {
	e := &PatternExtractor{
		logger:   logging.Nop{},
		maxBytes: MaxSourceBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs all four extraction passes and reports degraded analysis when
// non-empty input yields zero features.
func (e *PatternExtractor) Extract(source string) *CodeFeatureSet {
	fs := &CodeFeatureSet{
		Endpoints:   e.ExtractEndpoints(source),
		Methods:     e.ExtractMethods(source),
		SchemaNames: e.ExtractSchemas(source),
		Parameters:  e.ExtractParameters(source),
	}
	if strings.TrimSpace(source) != "" && fs.Empty() {
		e.logger.Warn("analysis degraded: no features recovered from source text",
			"sourceBytes", len(source))
	}
	return fs
}

func (e *PatternExtractor) bounded(source string) string {
	if len(source) <= e.maxBytes {
		return source
	}
	e.logger.Warn("source text truncated for extraction",
		"sourceBytes", len(source), "maxBytes", e.maxBytes)
	return source[:e.maxBytes]
}

// ExtractEndpoints applies the ordered endpoint pattern categories. A
// candidate is accepted only if it begins with "/". Duplicates survive
// across categories; within a category they are deduped by (value, offset).
func (e *PatternExtractor) ExtractEndpoints(source string) []EndpointRef {
	src := e.bounded(source)
	lines := newLineIndex(src)
	var out []EndpointRef
	for _, cat := range endpointCategories {
		seen := make(map[string]struct{})
		for _, m := range cat.re.FindAllStringSubmatchIndex(src, -1) {
			value, start := submatch(src, m, 1)
			if !strings.HasPrefix(value, "/") {
				continue
			}
			key := dedupeKey(value, start)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, EndpointRef{
				Path:     value,
				Line:     lines.at(start),
				RawMatch: src[m[0]:m[1]],
			})
		}
	}
	return out
}

// ExtractMethods applies the ordered method pattern categories. Tokens are
// decoration-stripped and upper-cased.
func (e *PatternExtractor) ExtractMethods(source string) []MethodRef {
	src := e.bounded(source)
	lines := newLineIndex(src)
	var out []MethodRef
	for _, cat := range methodCategories {
		seen := make(map[string]struct{})
		for _, m := range cat.re.FindAllStringSubmatchIndex(src, -1) {
			value, start := submatch(src, m, 1)
			token := normalizeMethodToken(value)
			if token == "" {
				continue
			}
			if e.strictMethods && !IsHTTPVerb(token) {
				continue
			}
			key := dedupeKey(token, start)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, MethodRef{
				Method:   token,
				Line:     lines.at(start),
				RawMatch: src[m[0]:m[1]],
			})
		}
	}
	return out
}

// ExtractSchemas captures declared schema identifiers only, never bodies.
func (e *PatternExtractor) ExtractSchemas(source string) []SchemaDecl {
	src := e.bounded(source)
	lines := newLineIndex(src)
	var out []SchemaDecl
	for _, cat := range schemaCategories {
		seen := make(map[string]struct{})
		for _, m := range cat.re.FindAllStringSubmatchIndex(src, -1) {
			value, start := submatch(src, m, 1)
			key := dedupeKey(value, start)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, SchemaDecl{Name: value, Line: lines.at(start)})
		}
	}
	return out
}

// ExtractParameters captures parameter declarations; the type is set only
// when an explicit annotation was present.
func (e *PatternExtractor) ExtractParameters(source string) []ParameterDecl {
	src := e.bounded(source)
	lines := newLineIndex(src)
	var out []ParameterDecl
	for _, cat := range parameterCategories {
		seen := make(map[string]struct{})
		for _, m := range cat.re.FindAllStringSubmatchIndex(src, -1) {
			value, start := submatch(src, m, 1)
			key := dedupeKey(value, start)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			decl := ParameterDecl{Name: value, Line: lines.at(start)}
			if len(m) >= 6 && m[4] >= 0 {
				decl.Type = src[m[4]:m[5]]
			}
			out = append(out, decl)
		}
	}
	return out
}

// normalizeMethodToken strips leading decoration (./@), drops an annotation
// Mapping suffix, and upper-cases the token.
func normalizeMethodToken(token string) string {
	token = strings.TrimLeft(token, ".@")
	token = mappingSuffix.ReplaceAllString(token, "")
	return strings.ToUpper(strings.TrimSpace(token))
}

func submatch(src string, m []int, group int) (string, int) {
	start, end := m[2*group], m[2*group+1]
	if start < 0 {
		return "", m[0]
	}
	return src[start:end], start
}

func dedupeKey(value string, offset int) string {
	return value + "\x00" + strconv.Itoa(offset)
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex struct {
	starts []int
}

func newLineIndex(src string) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{starts: starts}
}

func (li *lineIndex) at(offset int) int {
	return sort.Search(len(li.starts), func(i int) bool {
		return li.starts[i] > offset
	})
}
