package extract

import "regexp"

// Pattern categories are applied in order. Categories are independent:
// duplicates are removed within a category by (value, offset) only, never
// across categories.

type patternCategory struct {
	name string
	re   *regexp.Regexp
}

const quote = "\"'\x60" // double, single, backtick

// endpointCategories recover path literals. A candidate is accepted only if
// it begins with "/".
var endpointCategories = []patternCategory{
	// Quoted path literal beginning with a known API prefix.
	{"quoted-api-path", regexp.MustCompile(`[` + quote + `](/(?:api|v\d+)(?:/[^` + quote + `\s]*)?)[` + quote + `]`)},
	// Call-style route registration: router.get('/x'), mux.HandleFunc("/x"), app.all('/x').
	{"route-call", regexp.MustCompile(`(?i)\.(?:get|post|put|delete|patch|head|options|all|route|use|handle|handlefunc)\s*\(\s*[` + quote + `]([^` + quote + `]+)[` + quote + `]`)},
	// Config-object path field: path: '/x', url = "/x", endpoint: '/x'.
	{"config-path-field", regexp.MustCompile(`(?i)\b(?:path|url|endpoint)\s*[:=]\s*[` + quote + `]([^` + quote + `]+)[` + quote + `]`)},
	// Annotation-style route declaration: @GetMapping("/x"), @Route('/x'), @Path("/x").
	{"annotation-route", regexp.MustCompile(`@(?:\w*Mapping|Route|Path)\s*\(\s*["']([^"']+)["']`)},
}

// methodCategories recover HTTP method candidates. Any call-shaped token
// whose first argument is a quoted path is captured even when it is not a
// real HTTP verb; invalid tokens surface as findings downstream.
var methodCategories = []patternCategory{
	// Call-style invocation: axios.get('/x'), client.fetchh('/x').
	{"call-style", regexp.MustCompile(`\.([A-Za-z_]\w*)\s*\(\s*[` + quote + `]/`)},
	// Annotation-style token: @Get(...), @PostMapping(...).
	{"annotation-method", regexp.MustCompile(`@([A-Za-z_]\w*)\s*\(`)},
	// Config-object method field: method: 'POST'.
	{"config-method-field", regexp.MustCompile(`(?i)\bmethod\s*[:=]\s*["']([A-Za-z]+)["']`)},
}

// schemaCategories capture declared identifiers of structural declarations.
var schemaCategories = []patternCategory{
	{"interface-decl", regexp.MustCompile(`\binterface\s+([A-Z][A-Za-z0-9_]*)`)},
	{"type-alias", regexp.MustCompile(`\btype\s+([A-Z][A-Za-z0-9_]*)\s*=`)},
	{"class-decl", regexp.MustCompile(`\bclass\s+([A-Z][A-Za-z0-9_]*)`)},
	{"struct-decl", regexp.MustCompile(`\btype\s+([A-Z][A-Za-z0-9_]*)\s+struct\b`)},
}

// parameterCategories capture declared parameters; only the first category
// carries a type annotation.
var parameterCategories = []patternCategory{
	// Typed annotation: userId: string, count: int.
	{"typed-annotation", regexp.MustCompile(`\b([a-z][A-Za-z0-9_]*)\s*:\s*(string|number|boolean|int|int32|int64|float|float32|float64|bool|any|object)\b`)},
	// Annotation param: @Param('id').
	{"annotation-param", regexp.MustCompile(`@Param\s*\(\s*["']([A-Za-z_]\w*)["']`)},
	// Collection access: params['id'], query["page"], body['name'].
	{"collection-access", regexp.MustCompile(`\b(?:params|query|body)\[["']([A-Za-z_]\w*)["']\]`)},
}

// strip trailing "Mapping" from annotation method tokens: @GetMapping → GET.
var mappingSuffix = regexp.MustCompile(`(?i)mapping$`)
