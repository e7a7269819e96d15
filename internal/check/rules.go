package check

import (
	"fmt"
	"strings"

	"github.com/apilens/apilens/internal/extract"
	"github.com/apilens/apilens/internal/logging"
	"github.com/apilens/apilens/internal/spec"
)

// RuleInput is the shared view every custom rule scans independently.
type RuleInput struct {
	Reference *extract.CodeFeatureSet
	Compared  *extract.CodeFeatureSet
	Spec      *spec.NormalizedSpec
}

// RuleFunc is one named custom rule. Rules append issues; they never mutate
// their input.
type RuleFunc func(in RuleInput) []DiffIssue

// builtinRules is the fixed table custom rule names resolve against.
var builtinRules = map[string]RuleFunc{
	"no-trailing-slash": ruleNoTrailingSlash,
	"lowercase-paths":   ruleLowercasePaths,
	"versioned-paths":   ruleVersionedPaths,
}

// runCustomRules evaluates the ordered rule list. An unknown name is logged
// and skipped; a panicking rule is caught and does not block the rest.
func runCustomRules(names []string, in RuleInput, logger logging.Logger) []DiffIssue {
	var out []DiffIssue
	for _, name := range names {
		rule, ok := builtinRules[strings.TrimSpace(name)]
		if !ok {
			logger.Warn("unknown custom rule skipped", "rule", name)
			continue
		}
		issues := runRuleSafe(name, rule, in, logger)
		out = append(out, issues...)
	}
	return out
}

func runRuleSafe(name string, rule RuleFunc, in RuleInput, logger logging.Logger) (issues []DiffIssue) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("custom rule failed", "rule", name, "panic", fmt.Sprint(r))
			issues = nil
		}
	}()
	return rule(in)
}

func eachEndpoint(in RuleInput, fn func(side string, ep extract.EndpointRef)) {
	if in.Reference != nil {
		for _, ep := range in.Reference.Endpoints {
			fn("reference", ep)
		}
	}
	if in.Compared != nil {
		for _, ep := range in.Compared.Endpoints {
			fn("compared", ep)
		}
	}
	if in.Spec != nil {
		for _, op := range in.Spec.Operations {
			fn("spec", extract.EndpointRef{Path: op.Path})
		}
	}
}

func ruleNoTrailingSlash(in RuleInput) []DiffIssue {
	var out []DiffIssue
	eachEndpoint(in, func(side string, ep extract.EndpointRef) {
		if len(ep.Path) > 1 && strings.HasSuffix(ep.Path, "/") {
			out = append(out, DiffIssue{
				Type:     IssueCustom,
				Severity: SeverityWarning,
				Location: issueLocation(side, ep.Line),
				Message:  fmt.Sprintf("path %q has a trailing slash", ep.Path),
			})
		}
	})
	return out
}

func ruleLowercasePaths(in RuleInput) []DiffIssue {
	var out []DiffIssue
	eachEndpoint(in, func(side string, ep extract.EndpointRef) {
		stripped := placeholderSegmentRe.ReplaceAllString(ep.Path, "")
		if stripped != strings.ToLower(stripped) {
			out = append(out, DiffIssue{
				Type:     IssueCustom,
				Severity: SeverityWarning,
				Location: issueLocation(side, ep.Line),
				Message:  fmt.Sprintf("path %q mixes upper-case characters", ep.Path),
			})
		}
	})
	return out
}

func ruleVersionedPaths(in RuleInput) []DiffIssue {
	var out []DiffIssue
	eachEndpoint(in, func(side string, ep extract.EndpointRef) {
		if !versionedPathRe.MatchString(ep.Path) {
			out = append(out, DiffIssue{
				Type:     IssueCustom,
				Severity: SeverityWarning,
				Location: issueLocation(side, ep.Line),
				Message:  fmt.Sprintf("path %q carries no version prefix", ep.Path),
			})
		}
	})
	return out
}
