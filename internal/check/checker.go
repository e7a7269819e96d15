package check

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/apilens/apilens/internal/extract"
	"github.com/apilens/apilens/internal/logging"
	"github.com/apilens/apilens/internal/spec"
)

// Options configures one checker invocation.
type Options struct {
	// IncludeWarnings controls whether warning-severity issues appear in the
	// returned list. The compatibility score reflects them either way.
	IncludeWarnings bool
	// IgnoreMinorDifferences suppresses the parameter_missing_type class.
	IgnoreMinorDifferences bool
	// MissingSeverity overrides the default severity of endpoint_missing.
	MissingSeverity Severity
	// ExtraSeverity overrides the default severity of endpoint_extra.
	ExtraSeverity Severity
	// CustomRules is the ordered list of named rules to evaluate.
	CustomRules []string
}

// DefaultOptions returns the option defaults.
func DefaultOptions() Options {
	return Options{IncludeWarnings: true}
}

// Checker diffs feature sets and specs. It is stateless per invocation;
// concurrent use is safe.
type Checker struct {
	logger logging.Logger
}

// New returns a Checker logging through l (nil for silent).
func New(l logging.Logger) *Checker {
	return &Checker{logger: logging.OrNop(l)}
}

// scoring weights: errors cost more than warnings, floored at zero.
const (
	errorWeight   = 15
	warningWeight = 5
)

var (
	// placeholderSegmentRe matches one path placeholder segment in any of
	// the common styles: {id}, :id, <id>.
	placeholderSegmentRe = regexp.MustCompile(`\{[^}]*\}|:[A-Za-z_]\w*|<[^>]*>`)
	versionedPathRe      = regexp.MustCompile(`^/v\d+(/|$)|^/api/v\d+(/|$)`)
)

const wildcard = "*"

// normalizeSegments replaces placeholder segments with a wildcard token.
func normalizeSegments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	segments := strings.Split(trimmed, "/")
	for i, seg := range segments {
		if placeholderSegmentRe.MatchString(seg) {
			segments[i] = wildcard
		}
	}
	return segments
}

// pathsEquivalent reports whether two path templates match as anchored
// full-string patterns after placeholder normalization.
func pathsEquivalent(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] == b[i] || a[i] == wildcard || b[i] == wildcard {
			continue
		}
		return false
	}
	return true
}

// sideView is the unified shape both code feature sets and normalized specs
// are reduced to before comparison.
type sideView struct {
	// paths keyed by the original template, in first-seen order.
	order []string
	paths map[string]*pathEntry
	// invalidMethods are method tokens outside the canonical verb set.
	invalidMethods []extract.MethodRef
	// global methods act as a fallback when no method could be associated
	// with a specific path (heuristic extraction loses the pairing).
	globalMethods map[string]struct{}
	schemaNames   []extract.SchemaDecl
	parameters    []extract.ParameterDecl
}

type pathEntry struct {
	display  string
	segments []string
	line     int
	methods  map[string]int // method → line (0 when unknown)
}

func newSideView() *sideView {
	return &sideView{
		paths:         make(map[string]*pathEntry),
		globalMethods: make(map[string]struct{}),
	}
}

func (v *sideView) addPath(path string, line int) *pathEntry {
	if entry, ok := v.paths[path]; ok {
		return entry
	}
	entry := &pathEntry{
		display:  path,
		segments: normalizeSegments(path),
		line:     line,
		methods:  make(map[string]int),
	}
	v.paths[path] = entry
	v.order = append(v.order, path)
	return entry
}

// viewFromFeatures reduces a code feature set. Methods are associated with
// an endpoint when they were matched on the same source line.
func viewFromFeatures(fs *extract.CodeFeatureSet) *sideView {
	v := newSideView()
	if fs == nil {
		return v
	}
	byLine := make(map[int][]string)
	for _, m := range fs.Methods {
		if extract.IsHTTPVerb(m.Method) {
			v.globalMethods[m.Method] = struct{}{}
			byLine[m.Line] = append(byLine[m.Line], m.Method)
		} else {
			v.invalidMethods = append(v.invalidMethods, m)
		}
	}
	for _, ep := range fs.Endpoints {
		entry := v.addPath(ep.Path, ep.Line)
		for _, method := range byLine[ep.Line] {
			entry.methods[method] = ep.Line
		}
	}
	v.schemaNames = append(v.schemaNames, fs.SchemaNames...)
	v.parameters = append(v.parameters, fs.Parameters...)
	return v
}

// viewFromSpec reduces a normalized spec.
func viewFromSpec(ns *spec.NormalizedSpec) *sideView {
	v := newSideView()
	if ns == nil {
		return v
	}
	for _, op := range ns.Operations {
		entry := v.addPath(op.Path, 0)
		entry.methods[op.Method] = 0
		v.globalMethods[op.Method] = struct{}{}
	}
	return v
}

// Compare diffs two code feature sets. The first argument is the reference
// side: its paths missing from the compared side are reported as missing.
// Malformed input never aborts; an empty side simply has no endpoints.
func (c *Checker) Compare(ctx context.Context, reference, compared *extract.CodeFeatureSet, opts Options) *DiffAnalysisResult {
	_ = ctx
	ref := viewFromFeatures(reference)
	cmp := viewFromFeatures(compared)

	issues := c.analyze(ref, cmp, nil, RuleInput{Reference: reference, Compared: compared}, opts)
	summary, recommendations := aggregate(issues)
	return &DiffAnalysisResult{
		IsCompatible:    summary.ErrorCount == 0,
		Issues:          filterIssues(issues, opts),
		Summary:         summary,
		Recommendations: recommendations,
		Metadata:        ResultMetadata{Mode: "code-vs-code"},
	}
}

// ValidateAgainstSpec diffs a code feature set against a normalized spec.
// The spec is the reference side.
func (c *Checker) ValidateAgainstSpec(ctx context.Context, fs *extract.CodeFeatureSet, ns *spec.NormalizedSpec, opts Options) *ValidationResult {
	_ = ctx
	ref := viewFromSpec(ns)
	cmp := viewFromFeatures(fs)

	issues := c.analyze(ref, cmp, ns, RuleInput{Compared: fs, Spec: ns}, opts)
	summary, recommendations := aggregate(issues)
	source := ""
	if ns != nil {
		source = ns.Metadata.Source
	}
	return &ValidationResult{
		IsValid:         summary.ErrorCount == 0,
		Issues:          filterIssues(issues, opts),
		Summary:         summary,
		Recommendations: recommendations,
		Metadata:        ResultMetadata{Mode: "code-vs-spec", SpecSource: source},
	}
}

// ValidateSpecObject structurally validates a decoded spec object without
// loading it. Structural gaps are categorized issues, never panics or
// propagated errors.
func (c *Checker) ValidateSpecObject(doc map[string]any) *ValidationResult {
	var issues []DiffIssue
	if doc == nil {
		issues = append(issues, DiffIssue{
			Type:     IssueCustom,
			Severity: SeverityError,
			Message:  "spec object is nil",
		})
	} else {
		if _, hasOpenAPI := doc["openapi"]; !hasOpenAPI {
			if _, hasSwagger := doc["swagger"]; !hasSwagger {
				issues = append(issues, DiffIssue{
					Type:     IssueCustom,
					Severity: SeverityError,
					Location: "#",
					Message:  "spec object carries neither an 'openapi' nor a 'swagger' version field",
				})
			}
		}
		if paths, ok := doc["paths"].(map[string]any); !ok {
			issues = append(issues, DiffIssue{
				Type:     IssueCustom,
				Severity: SeverityError,
				Location: "#/paths",
				Message:  "spec object is missing the required 'paths' field",
			})
		} else if len(paths) == 0 {
			issues = append(issues, DiffIssue{
				Type:     IssueCustom,
				Severity: SeverityWarning,
				Location: "#/paths",
				Message:  "spec object declares no paths",
			})
		}
		if _, ok := doc["info"].(map[string]any); !ok {
			issues = append(issues, DiffIssue{
				Type:     IssueCustom,
				Severity: SeverityWarning,
				Location: "#/info",
				Message:  "spec object is missing the 'info' section",
			})
		}
	}
	summary, recommendations := aggregate(issues)
	return &ValidationResult{
		IsValid:         summary.ErrorCount == 0,
		Issues:          issues,
		Summary:         summary,
		Recommendations: recommendations,
		Metadata:        ResultMetadata{Mode: "spec-only"},
	}
}

// analyze runs every comparison step unconditionally and unions the issues.
func (c *Checker) analyze(ref, cmp *sideView, ns *spec.NormalizedSpec, ruleIn RuleInput, opts Options) []DiffIssue {
	var issues []DiffIssue

	missingSeverity := opts.MissingSeverity
	if missingSeverity == "" {
		missingSeverity = SeverityFor(policyEndpointMissing)
	}
	extraSeverity := opts.ExtraSeverity
	if extraSeverity == "" {
		extraSeverity = SeverityFor(policyEndpointExtra)
	}

	// Step 1: endpoint comparison under placeholder normalization.
	matchIn := func(entry *pathEntry, other *sideView) *pathEntry {
		for _, key := range other.order {
			candidate := other.paths[key]
			if pathsEquivalent(entry.segments, candidate.segments) {
				return candidate
			}
		}
		return nil
	}

	type sharedPair struct{ ref, cmp *pathEntry }
	var shared []sharedPair

	cmpPaths := make([]string, 0, len(cmp.order))
	cmpPaths = append(cmpPaths, cmp.order...)

	for _, key := range ref.order {
		entry := ref.paths[key]
		if match := matchIn(entry, cmp); match != nil {
			shared = append(shared, sharedPair{ref: entry, cmp: match})
			continue
		}
		suggestions := suggestPaths(entry.display, cmpPaths)
		issue := DiffIssue{
			Type:        IssueEndpointMissing,
			Severity:    missingSeverity,
			Location:    issueLocation("reference", entry.line),
			Message:     fmt.Sprintf("endpoint %s is declared on the reference side but never used on the compared side", entry.display),
			Suggestions: suggestions,
		}
		if len(suggestions) > 0 {
			issue.Suggestion = suggestions[0]
		}
		issues = append(issues, issue)
	}
	for _, key := range cmp.order {
		entry := cmp.paths[key]
		if matchIn(entry, ref) != nil {
			continue
		}
		issues = append(issues, DiffIssue{
			Type:     IssueEndpointExtra,
			Severity: extraSeverity,
			Location: issueLocation("compared", entry.line),
			Message:  fmt.Sprintf("endpoint %s is used on the compared side but not declared on the reference side", entry.display),
		})
	}

	// Step 2: method comparison for paths present on both sides. When the
	// compared side has no method associated with the path, its global
	// method set stands in; with no method information at all the check is
	// skipped rather than guessed.
	for _, pair := range shared {
		cmpMethods := pair.cmp.methods
		if len(cmpMethods) == 0 {
			if len(cmp.globalMethods) == 0 {
				continue
			}
			cmpMethods = make(map[string]int, len(cmp.globalMethods))
			for m := range cmp.globalMethods {
				cmpMethods[m] = 0
			}
		}
		refMethods := make([]string, 0, len(pair.ref.methods))
		for m := range pair.ref.methods {
			refMethods = append(refMethods, m)
		}
		sort.Strings(refMethods)
		for _, m := range refMethods {
			if _, ok := cmpMethods[m]; ok {
				continue
			}
			issues = append(issues, DiffIssue{
				Type:     IssueMethodMismatch,
				Severity: SeverityFor(policyMethodMismatch),
				Location: issueLocation("reference", pair.ref.methods[m]),
				Message:  fmt.Sprintf("method %s %s is declared on the reference side but never used on the compared side", m, pair.ref.display),
			})
		}
	}

	// Invalid method tokens are flagged regardless of the other side.
	for _, side := range []struct {
		name string
		view *sideView
	}{{"reference", ref}, {"compared", cmp}} {
		for _, m := range side.view.invalidMethods {
			issues = append(issues, DiffIssue{
				Type:     IssueMethodMismatch,
				Severity: SeverityFor(policyMethodInvalid),
				Location: issueLocation(side.name, m.Line),
				Message:  fmt.Sprintf("token %q is used like an HTTP method but is not one", m.Method),
			})
		}
	}

	// Step 3: schema and parameter comparison.
	if ns != nil {
		known := ns.SchemaNames()
		for _, decl := range cmp.schemaNames {
			if _, ok := known[decl.Name]; ok {
				continue
			}
			issues = append(issues, DiffIssue{
				Type:     IssueSchemaMissing,
				Severity: SeverityFor(policySchemaMissing),
				Location: issueLocation("compared", decl.Line),
				Message:  fmt.Sprintf("schema %s is declared in code but absent from the spec's component schemas", decl.Name),
			})
		}
	}
	if !opts.IgnoreMinorDifferences {
		for _, side := range []struct {
			name string
			view *sideView
		}{{"reference", ref}, {"compared", cmp}} {
			for _, p := range side.view.parameters {
				if p.Type != "" {
					continue
				}
				issues = append(issues, DiffIssue{
					Type:     IssueParameterMissingType,
					Severity: SeverityFor(policyParameterMissingType),
					Location: issueLocation(side.name, p.Line),
					Message:  fmt.Sprintf("parameter %q has no explicit type annotation", p.Name),
				})
			}
		}
	}

	// Step 4: custom rule hooks.
	issues = append(issues, runCustomRules(opts.CustomRules, ruleIn, c.logger)...)

	return issues
}

// filterIssues applies IncludeWarnings to the returned list only; the
// summary has already been computed over the full set.
func filterIssues(issues []DiffIssue, opts Options) []DiffIssue {
	if opts.IncludeWarnings {
		if issues == nil {
			return []DiffIssue{}
		}
		return issues
	}
	out := make([]DiffIssue, 0, len(issues))
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			out = append(out, issue)
		}
	}
	return out
}

// recommendationText maps issue categories to synthesized follow-ups.
var recommendationText = map[IssueType]string{
	IssueEndpointMissing:      "implement or remove the endpoints the other side does not know about",
	IssueEndpointExtra:        "document the extra endpoints in the spec or drop the calls",
	IssueMethodMismatch:       "align HTTP methods between both sides and fix invalid method tokens",
	IssueSchemaMissing:        "add the referenced schemas to the spec's components or rename the code types",
	IssueParameterMissingType: "annotate parameters with explicit types",
	IssueCustom:               "review custom rule findings",
}

// aggregate computes the summary and synthesizes per-category
// recommendations. The compatibility score decreases monotonically with
// weighted error/warning counts and is floored at zero.
func aggregate(issues []DiffIssue) (Summary, []Recommendation) {
	summary := Summary{TotalIssues: len(issues)}
	categories := make(map[IssueType]Severity)
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityError:
			summary.ErrorCount++
		default:
			summary.WarningCount++
		}
		if prev, ok := categories[issue.Type]; !ok || (prev != SeverityError && issue.Severity == SeverityError) {
			categories[issue.Type] = issue.Severity
		}
	}

	score := 100 - errorWeight*summary.ErrorCount - warningWeight*summary.WarningCount
	if score < 0 {
		score = 0
	}
	summary.CompatibilityScore = score

	names := make([]string, 0, len(categories))
	for t := range categories {
		names = append(names, string(t))
	}
	sort.Strings(names)
	recommendations := make([]Recommendation, 0, len(names))
	for _, name := range names {
		t := IssueType(name)
		priority := "medium"
		if categories[t] == SeverityError {
			priority = "high"
		}
		recommendations = append(recommendations, Recommendation{
			Priority: priority,
			Category: name,
			Text:     recommendationText[t],
		})
	}
	return summary, recommendations
}

func issueLocation(side string, line int) string {
	if line <= 0 {
		return side
	}
	return side + ":line " + strconv.Itoa(line)
}
