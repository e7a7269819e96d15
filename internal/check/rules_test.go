package check

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apilens/apilens/internal/extract"
	"github.com/apilens/apilens/internal/logging"
)

type ruleLogger struct {
	mu     sync.Mutex
	warns  []string
	errors []string
}

func (l *ruleLogger) Debug(string, ...any) {}
func (l *ruleLogger) Info(string, ...any)  {}

func (l *ruleLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *ruleLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *ruleLogger) With(...any) logging.Logger { return l }

func endpointsInput(paths ...string) RuleInput {
	fs := &extract.CodeFeatureSet{}
	for i, p := range paths {
		fs.Endpoints = append(fs.Endpoints, extract.EndpointRef{Path: p, Line: i + 1})
	}
	return RuleInput{Compared: fs}
}

func TestRuleNoTrailingSlash(t *testing.T) {
	t.Parallel()
	issues := ruleNoTrailingSlash(endpointsInput("/api/users/", "/api/orders", "/"))
	require.Len(t, issues, 1, "the bare root path is exempt")
	assert.Equal(t, IssueCustom, issues[0].Type)
	assert.Contains(t, issues[0].Message, "/api/users/")
}

func TestRuleLowercasePaths(t *testing.T) {
	t.Parallel()
	issues := ruleLowercasePaths(endpointsInput("/api/Users", "/api/users/{userId}"))
	require.Len(t, issues, 1, "placeholder segments are allowed to carry upper-case")
	assert.Contains(t, issues[0].Message, "/api/Users")
}

func TestRuleVersionedPaths(t *testing.T) {
	t.Parallel()
	issues := ruleVersionedPaths(endpointsInput("/v1/users", "/api/v2/orders", "/users"))
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "/users")
}

func TestRunCustomRules_UnknownRuleSkipped(t *testing.T) {
	t.Parallel()
	logger := &ruleLogger{}

	issues := runCustomRules([]string{"no-such-rule", "no-trailing-slash"}, endpointsInput("/api/x/"), logger)

	require.Len(t, issues, 1, "known rules still run after an unknown one")
	require.Len(t, logger.warns, 1)
	assert.Contains(t, logger.warns[0], "unknown custom rule")
}

func TestRunRuleSafe_PanicIsolated(t *testing.T) {
	t.Parallel()
	logger := &ruleLogger{}

	boom := func(RuleInput) []DiffIssue { panic("rule exploded") }
	issues := runRuleSafe("boom", boom, RuleInput{}, logger)

	assert.Nil(t, issues)
	require.Len(t, logger.errors, 1)
	assert.Contains(t, logger.errors[0], "custom rule failed")
}

func TestCompare_RunsCustomRules(t *testing.T) {
	t.Parallel()
	c := New(nil)

	side := &extract.CodeFeatureSet{
		Endpoints: []extract.EndpointRef{{Path: "/api/users/", Line: 1}},
	}
	opts := DefaultOptions()
	opts.CustomRules = []string{"no-trailing-slash"}

	result := c.Compare(context.Background(), side, side, opts)

	var custom []DiffIssue
	for _, issue := range result.Issues {
		if issue.Type == IssueCustom {
			custom = append(custom, issue)
		}
	}
	require.Len(t, custom, 2, "both sides are scanned")
	assert.Equal(t, SeverityWarning, custom[0].Severity)
}
