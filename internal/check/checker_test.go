package check

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apilens/apilens/internal/extract"
	"github.com/apilens/apilens/internal/spec"
)

func featureSet(endpoints []extract.EndpointRef, methods []extract.MethodRef) *extract.CodeFeatureSet {
	return &extract.CodeFeatureSet{Endpoints: endpoints, Methods: methods}
}

func issueTypes(issues []DiffIssue) []IssueType {
	out := make([]IssueType, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.Type)
	}
	return out
}

func TestCompare_IdenticalSides(t *testing.T) {
	t.Parallel()
	c := New(nil)
	side := featureSet(
		[]extract.EndpointRef{{Path: "/api/users", Line: 1}},
		[]extract.MethodRef{{Method: "GET", Line: 1}},
	)
	other := featureSet(
		[]extract.EndpointRef{{Path: "/api/users", Line: 9}},
		[]extract.MethodRef{{Method: "GET", Line: 9}},
	)

	result := c.Compare(context.Background(), side, other, DefaultOptions())

	assert.True(t, result.IsCompatible)
	assert.Empty(t, result.Issues)
	assert.Equal(t, 100, result.Summary.CompatibilityScore)
	assert.Equal(t, "code-vs-code", result.Metadata.Mode)
}

func TestCompare_EmptySides(t *testing.T) {
	t.Parallel()
	c := New(nil)

	result := c.Compare(context.Background(), nil, nil, DefaultOptions())

	assert.True(t, result.IsCompatible)
	require.NotNil(t, result.Issues)
	assert.Empty(t, result.Issues)
	assert.Equal(t, 100, result.Summary.CompatibilityScore)
	assert.Empty(t, result.Recommendations)
}

func TestCompare_MethodMismatch(t *testing.T) {
	t.Parallel()
	c := New(nil)

	// Backend declares GET, POST, DELETE on /api/users; frontend only calls GET.
	backend := featureSet(
		[]extract.EndpointRef{{Path: "/api/users", Line: 3}},
		[]extract.MethodRef{
			{Method: "GET", Line: 3},
			{Method: "POST", Line: 3},
			{Method: "DELETE", Line: 3},
		},
	)
	frontend := featureSet(
		[]extract.EndpointRef{{Path: "/api/users", Line: 12}},
		[]extract.MethodRef{{Method: "GET", Line: 12}},
	)

	result := c.Compare(context.Background(), backend, frontend, DefaultOptions())

	assert.False(t, result.IsCompatible)
	require.Len(t, result.Issues, 2)
	for _, issue := range result.Issues {
		assert.Equal(t, IssueMethodMismatch, issue.Type)
		assert.Equal(t, SeverityError, issue.Severity)
	}
	assert.Equal(t, 2, result.Summary.ErrorCount)
	assert.Equal(t, 100-2*errorWeight, result.Summary.CompatibilityScore)
}

func TestCompare_PlaceholderStylesMatch(t *testing.T) {
	t.Parallel()
	c := New(nil)

	cases := []struct{ a, b string }{
		{"/users/{id}", "/users/:id"},
		{"/users/{id}", "/users/<id>"},
		{"/users/:userId", "/users/{userId}"},
	}
	for _, tc := range cases {
		ref := featureSet([]extract.EndpointRef{{Path: tc.a, Line: 1}}, nil)
		cmp := featureSet([]extract.EndpointRef{{Path: tc.b, Line: 1}}, nil)
		result := c.Compare(context.Background(), ref, cmp, DefaultOptions())
		assert.Empty(t, result.Issues, "%s should match %s", tc.a, tc.b)
	}

	// Different segment counts never match, wildcards or not.
	ref := featureSet([]extract.EndpointRef{{Path: "/users/{id}", Line: 1}}, nil)
	cmp := featureSet([]extract.EndpointRef{{Path: "/users/{id}/posts", Line: 1}}, nil)
	result := c.Compare(context.Background(), ref, cmp, DefaultOptions())
	assert.NotEmpty(t, result.Issues)
}

func TestCompare_MissingEndpointSuggestions(t *testing.T) {
	t.Parallel()
	c := New(nil)

	frontend := featureSet([]extract.EndpointRef{{Path: "/api/prodcts", Line: 4}}, nil)
	backend := featureSet([]extract.EndpointRef{
		{Path: "/api/products", Line: 10},
		{Path: "/api/users", Line: 11},
	}, nil)

	result := c.Compare(context.Background(), frontend, backend, DefaultOptions())

	var missing *DiffIssue
	for i := range result.Issues {
		if result.Issues[i].Type == IssueEndpointMissing {
			missing = &result.Issues[i]
		}
	}
	require.NotNil(t, missing)
	assert.Equal(t, "/api/products", missing.Suggestion)
	assert.Contains(t, missing.Suggestions, "/api/products")
	assert.LessOrEqual(t, len(missing.Suggestions), 3)
}

func TestCompare_ExtraEndpointIsWarning(t *testing.T) {
	t.Parallel()
	c := New(nil)

	ref := featureSet([]extract.EndpointRef{{Path: "/api/users", Line: 1}}, nil)
	cmp := featureSet([]extract.EndpointRef{
		{Path: "/api/users", Line: 1},
		{Path: "/api/legacy", Line: 2},
	}, nil)

	result := c.Compare(context.Background(), ref, cmp, DefaultOptions())

	require.Len(t, result.Issues, 1)
	assert.Equal(t, IssueEndpointExtra, result.Issues[0].Type)
	assert.Equal(t, SeverityWarning, result.Issues[0].Severity)
	assert.True(t, result.IsCompatible, "warnings alone keep the sides compatible")
	assert.Equal(t, 100-warningWeight, result.Summary.CompatibilityScore)
}

func TestCompare_GlobalMethodFallback(t *testing.T) {
	t.Parallel()
	c := New(nil)

	// The compared side's methods were found on different lines than its
	// endpoints, so the per-path association is lost. The global method set
	// stands in: GET is known somewhere, POST is not.
	ref := featureSet(
		[]extract.EndpointRef{{Path: "/api/users", Line: 1}},
		[]extract.MethodRef{{Method: "GET", Line: 1}, {Method: "POST", Line: 1}},
	)
	cmp := featureSet(
		[]extract.EndpointRef{{Path: "/api/users", Line: 5}},
		[]extract.MethodRef{{Method: "GET", Line: 99}},
	)

	result := c.Compare(context.Background(), ref, cmp, DefaultOptions())

	require.Len(t, result.Issues, 1)
	assert.Equal(t, IssueMethodMismatch, result.Issues[0].Type)
	assert.Contains(t, result.Issues[0].Message, "POST")
}

func TestCompare_NoMethodInfoSkipsCheck(t *testing.T) {
	t.Parallel()
	c := New(nil)

	ref := featureSet(
		[]extract.EndpointRef{{Path: "/api/users", Line: 1}},
		[]extract.MethodRef{{Method: "DELETE", Line: 1}},
	)
	cmp := featureSet([]extract.EndpointRef{{Path: "/api/users", Line: 5}}, nil)

	result := c.Compare(context.Background(), ref, cmp, DefaultOptions())

	assert.Empty(t, result.Issues, "no method info on the compared side means no method findings")
}

func TestCompare_InvalidMethodToken(t *testing.T) {
	t.Parallel()
	c := New(nil)

	cmp := featureSet(
		[]extract.EndpointRef{{Path: "/api/users", Line: 1}},
		[]extract.MethodRef{{Method: "FETCHH", Line: 1}},
	)
	ref := featureSet([]extract.EndpointRef{{Path: "/api/users", Line: 1}}, nil)

	result := c.Compare(context.Background(), ref, cmp, DefaultOptions())

	require.Len(t, result.Issues, 1)
	assert.Equal(t, IssueMethodMismatch, result.Issues[0].Type)
	assert.Equal(t, SeverityWarning, result.Issues[0].Severity)
	assert.Contains(t, result.Issues[0].Message, "FETCHH")
}

func TestCompare_DirectionSymmetry(t *testing.T) {
	t.Parallel()
	c := New(nil)

	a := featureSet([]extract.EndpointRef{{Path: "/api/users", Line: 1}}, nil)
	b := featureSet(nil, nil)

	forward := c.Compare(context.Background(), a, b, DefaultOptions())
	require.Equal(t, []IssueType{IssueEndpointMissing}, issueTypes(forward.Issues))

	// Swapping the sides flips the same gap into an extra endpoint.
	backward := c.Compare(context.Background(), b, a, DefaultOptions())
	require.Equal(t, []IssueType{IssueEndpointExtra}, issueTypes(backward.Issues))
	assert.Contains(t, backward.Issues[0].Message, "/api/users")
}

func TestCompare_Idempotent(t *testing.T) {
	t.Parallel()
	c := New(nil)

	ref := featureSet(
		[]extract.EndpointRef{{Path: "/api/a", Line: 1}, {Path: "/api/b", Line: 2}},
		[]extract.MethodRef{{Method: "GET", Line: 1}, {Method: "POST", Line: 2}},
	)
	cmp := featureSet(
		[]extract.EndpointRef{{Path: "/api/b", Line: 7}, {Path: "/api/c", Line: 8}},
		[]extract.MethodRef{{Method: "GET", Line: 7}},
	)

	first := c.Compare(context.Background(), ref, cmp, DefaultOptions())
	second := c.Compare(context.Background(), ref, cmp, DefaultOptions())

	assert.Equal(t, first, second)
}

func TestCompare_IncludeWarningsFiltersListOnly(t *testing.T) {
	t.Parallel()
	c := New(nil)

	ref := featureSet([]extract.EndpointRef{{Path: "/api/users", Line: 1}}, nil)
	cmp := featureSet([]extract.EndpointRef{{Path: "/api/legacy", Line: 2}}, nil)

	full := c.Compare(context.Background(), ref, cmp, DefaultOptions())
	require.Len(t, full.Issues, 2, "one missing error plus one extra warning")

	opts := DefaultOptions()
	opts.IncludeWarnings = false
	filtered := c.Compare(context.Background(), ref, cmp, opts)

	require.Len(t, filtered.Issues, 1)
	assert.Equal(t, SeverityError, filtered.Issues[0].Severity)
	assert.Equal(t, full.Summary, filtered.Summary, "the summary and score always reflect every issue")
}

func TestCompare_SeverityOverrides(t *testing.T) {
	t.Parallel()
	c := New(nil)

	ref := featureSet([]extract.EndpointRef{{Path: "/api/users", Line: 1}}, nil)
	cmp := featureSet(nil, nil)

	opts := DefaultOptions()
	opts.MissingSeverity = SeverityWarning
	result := c.Compare(context.Background(), ref, cmp, opts)

	require.Len(t, result.Issues, 1)
	assert.Equal(t, SeverityWarning, result.Issues[0].Severity)
	assert.True(t, result.IsCompatible)
}

func TestCompare_IgnoreMinorDifferences(t *testing.T) {
	t.Parallel()
	c := New(nil)

	cmp := &extract.CodeFeatureSet{
		Parameters: []extract.ParameterDecl{
			{Name: "page", Line: 3},
			{Name: "limit", Type: "int", Line: 4},
		},
	}

	full := c.Compare(context.Background(), nil, cmp, DefaultOptions())
	require.Equal(t, []IssueType{IssueParameterMissingType}, issueTypes(full.Issues))

	opts := DefaultOptions()
	opts.IgnoreMinorDifferences = true
	quiet := c.Compare(context.Background(), nil, cmp, opts)
	assert.Empty(t, quiet.Issues)
}

func TestCompare_ScoreFloorsAtZero(t *testing.T) {
	t.Parallel()
	c := New(nil)

	var endpoints []extract.EndpointRef
	for _, p := range []string{"/api/a", "/api/b", "/api/c", "/api/d", "/api/e", "/api/f", "/api/g", "/alpha/one", "/beta/two", "/gamma/three"} {
		endpoints = append(endpoints, extract.EndpointRef{Path: p, Line: 1})
	}
	ref := featureSet(endpoints, nil)
	cmp := featureSet(nil, nil)

	result := c.Compare(context.Background(), ref, cmp, DefaultOptions())

	assert.Equal(t, len(endpoints), result.Summary.ErrorCount)
	assert.Equal(t, 0, result.Summary.CompatibilityScore)
	assert.GreaterOrEqual(t, result.Summary.CompatibilityScore, 0)
}

func TestCompare_Recommendations(t *testing.T) {
	t.Parallel()
	c := New(nil)

	ref := featureSet([]extract.EndpointRef{{Path: "/api/users", Line: 1}}, nil)
	cmp := featureSet([]extract.EndpointRef{{Path: "/api/legacy", Line: 2}}, nil)

	result := c.Compare(context.Background(), ref, cmp, DefaultOptions())

	require.Len(t, result.Recommendations, 2)
	byCategory := make(map[string]Recommendation)
	for _, rec := range result.Recommendations {
		byCategory[rec.Category] = rec
	}
	assert.Equal(t, "high", byCategory["endpoint_missing"].Priority)
	assert.Equal(t, "medium", byCategory["endpoint_extra"].Priority)
	assert.NotEmpty(t, byCategory["endpoint_missing"].Text)
}

func TestValidateAgainstSpec(t *testing.T) {
	t.Parallel()
	c := New(nil)

	ns := &spec.NormalizedSpec{
		Operations: []spec.OperationDescriptor{
			{Path: "/api/users", Method: "GET"},
			{Path: "/api/users/{id}", Method: "GET"},
		},
		Schemas:  []spec.SchemaDescriptor{{Name: "User", Shape: "object"}},
		Metadata: spec.Metadata{Source: "openapi.yaml"},
	}
	fs := &extract.CodeFeatureSet{
		Endpoints: []extract.EndpointRef{
			{Path: "/api/users", Line: 2},
			{Path: "/api/users/:id", Line: 3},
		},
		Methods: []extract.MethodRef{
			{Method: "GET", Line: 2},
			{Method: "GET", Line: 3},
		},
		SchemaNames: []extract.SchemaDecl{
			{Name: "User", Line: 10},
			{Name: "UserDto", Line: 11},
		},
	}

	result := c.ValidateAgainstSpec(context.Background(), fs, ns, DefaultOptions())

	assert.True(t, result.IsValid, "schema gaps are warnings, not errors")
	require.Equal(t, []IssueType{IssueSchemaMissing}, issueTypes(result.Issues))
	assert.Contains(t, result.Issues[0].Message, "UserDto")
	assert.Equal(t, "code-vs-spec", result.Metadata.Mode)
	assert.Equal(t, "openapi.yaml", result.Metadata.SpecSource)
}

func TestValidateAgainstSpec_MissingOperation(t *testing.T) {
	t.Parallel()
	c := New(nil)

	ns := &spec.NormalizedSpec{
		Operations: []spec.OperationDescriptor{
			{Path: "/api/users", Method: "GET"},
			{Path: "/api/users", Method: "POST"},
		},
	}
	fs := &extract.CodeFeatureSet{
		Endpoints: []extract.EndpointRef{{Path: "/api/users", Line: 2}},
		Methods:   []extract.MethodRef{{Method: "GET", Line: 2}},
	}

	result := c.ValidateAgainstSpec(context.Background(), fs, ns, DefaultOptions())

	assert.False(t, result.IsValid)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, IssueMethodMismatch, result.Issues[0].Type)
	assert.Contains(t, result.Issues[0].Message, "POST")
}

func TestValidateSpecObject(t *testing.T) {
	t.Parallel()
	c := New(nil)

	t.Run("nil document", func(t *testing.T) {
		t.Parallel()
		result := c.ValidateSpecObject(nil)
		assert.False(t, result.IsValid)
		assert.Equal(t, "spec-only", result.Metadata.Mode)
	})

	t.Run("missing version and paths", func(t *testing.T) {
		t.Parallel()
		result := c.ValidateSpecObject(map[string]any{"info": map[string]any{"title": "T"}})
		assert.False(t, result.IsValid)
		assert.Equal(t, 2, result.Summary.ErrorCount)
	})

	t.Run("empty paths is a warning", func(t *testing.T) {
		t.Parallel()
		result := c.ValidateSpecObject(map[string]any{
			"openapi": "3.0.0",
			"info":    map[string]any{"title": "T"},
			"paths":   map[string]any{},
		})
		assert.True(t, result.IsValid)
		assert.Equal(t, 1, result.Summary.WarningCount)
	})

	t.Run("complete document", func(t *testing.T) {
		t.Parallel()
		result := c.ValidateSpecObject(map[string]any{
			"openapi": "3.0.0",
			"info":    map[string]any{"title": "T"},
			"paths":   map[string]any{"/x": map[string]any{}},
		})
		assert.True(t, result.IsValid)
		assert.Empty(t, result.Issues)
	})
}

func TestSeverityPolicy(t *testing.T) {
	t.Parallel()
	want := map[string]Severity{
		"endpoint_missing":       SeverityError,
		"endpoint_extra":         SeverityWarning,
		"method_mismatch":        SeverityError,
		"method_invalid":         SeverityWarning,
		"schema_missing":         SeverityWarning,
		"parameter_missing_type": SeverityWarning,
	}
	assert.Equal(t, want, severityPolicy)
	assert.Equal(t, SeverityWarning, SeverityFor("unknown-policy"))
}
