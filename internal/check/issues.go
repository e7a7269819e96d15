// Package check diffs code feature sets against each other or against a
// normalized spec, producing typed issues, fuzzy suggestions, a
// compatibility score, and prioritized recommendations.
package check

// IssueType classifies a consistency finding.
type IssueType string

const (
	IssueEndpointMissing      IssueType = "endpoint_missing"
	IssueEndpointExtra        IssueType = "endpoint_extra"
	IssueMethodMismatch       IssueType = "method_mismatch"
	IssueSchemaMissing        IssueType = "schema_missing"
	IssueParameterMissingType IssueType = "parameter_missing_type"
	IssueCustom               IssueType = "custom"
)

// Severity grades a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Policy keys. method_invalid shares the method_mismatch issue type but has
// its own severity: a token that is not a real HTTP verb is noise from the
// heuristic extractor, while a genuinely absent method is a contract break.
const (
	policyEndpointMissing      = "endpoint_missing"
	policyEndpointExtra        = "endpoint_extra"
	policyMethodMismatch       = "method_mismatch"
	policyMethodInvalid        = "method_invalid"
	policySchemaMissing        = "schema_missing"
	policyParameterMissingType = "parameter_missing_type"
)

// severityPolicy is the table-driven error-vs-warning classification per
// issue class. Tests assert this exact taxonomy.
var severityPolicy = map[string]Severity{
	policyEndpointMissing:      SeverityError,
	policyEndpointExtra:        SeverityWarning,
	policyMethodMismatch:       SeverityError,
	policyMethodInvalid:        SeverityWarning,
	policySchemaMissing:        SeverityWarning,
	policyParameterMissingType: SeverityWarning,
}

// SeverityFor returns the default severity for a policy key.
func SeverityFor(policy string) Severity {
	if s, ok := severityPolicy[policy]; ok {
		return s
	}
	return SeverityWarning
}

// DiffIssue is one consistency finding.
type DiffIssue struct {
	Type        IssueType `json:"type"`
	Severity    Severity  `json:"severity"`
	Location    string    `json:"location,omitempty"`
	Message     string    `json:"message"`
	Suggestion  string    `json:"suggestion,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
}

// Summary aggregates issue counts and the compatibility score.
type Summary struct {
	TotalIssues        int `json:"totalIssues"`
	ErrorCount         int `json:"errorCount"`
	WarningCount       int `json:"warningCount"`
	CompatibilityScore int `json:"compatibilityScore"`
}

// Recommendation is a synthesized, prioritized follow-up per issue category.
type Recommendation struct {
	Priority string `json:"priority"` // high|medium
	Category string `json:"category"`
	Text     string `json:"text"`
}

// ResultMetadata records how a result was produced.
type ResultMetadata struct {
	Mode       string `json:"mode"` // code-vs-code|code-vs-spec|spec-only
	SpecSource string `json:"specSource,omitempty"`
}

// DiffAnalysisResult is the immutable outcome of comparing two sides.
type DiffAnalysisResult struct {
	IsCompatible    bool             `json:"isCompatible"`
	Issues          []DiffIssue      `json:"issues"`
	Summary         Summary          `json:"summary"`
	Recommendations []Recommendation `json:"recommendations"`
	Metadata        ResultMetadata   `json:"metadata"`
}

// ValidationResult is the outcome of validating code against a spec, or of
// spec-only structural validation.
type ValidationResult struct {
	IsValid         bool             `json:"isValid"`
	Issues          []DiffIssue      `json:"issues"`
	Summary         Summary          `json:"summary"`
	Recommendations []Recommendation `json:"recommendations"`
	Metadata        ResultMetadata   `json:"metadata"`
}
