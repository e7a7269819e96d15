package spec

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// ConvertOptions configures the Swagger 2.0 → OpenAPI 3 conversion.
type ConvertOptions struct {
	// TargetVersion is stamped into the "openapi" field. Defaults to 3.0.3.
	TargetVersion string
	// ValidateResult re-dereferences the converted document purely to
	// surface structural errors.
	ValidateResult bool
}

// swaggerTopLevelHandled lists the Swagger 2.0 top-level fields the converter
// maps structurally. Everything else passes through unchanged.
var swaggerTopLevelHandled = map[string]struct{}{
	"swagger":             {},
	"info":                {},
	"host":                {},
	"basePath":            {},
	"schemes":             {},
	"consumes":            {},
	"produces":            {},
	"paths":               {},
	"definitions":         {},
	"parameters":          {},
	"responses":           {},
	"securityDefinitions": {},
}

// primitiveParamFields are the Swagger parameter fields rolled into an inline
// schema object during conversion. Absent fields are dropped.
var primitiveParamFields = []string{
	"type", "format", "enum", "default",
	"maximum", "exclusiveMaximum", "minimum", "exclusiveMinimum",
	"maxLength", "minLength", "pattern",
	"maxItems", "minItems", "uniqueItems", "multipleOf", "items",
}

// oauth2FlowNames maps Swagger 2.0 OAuth2 flow names to OpenAPI 3 flow keys.
var oauth2FlowNames = map[string]string{
	"implicit":    "implicit",
	"password":    "password",
	"application": "clientCredentials",
	"accessCode":  "authorizationCode",
}

// ConvertSwaggerToOpenAPI performs a deterministic structural mapping of a
// decoded Swagger 2.0 document into an OpenAPI 3 document. The input map is
// not modified.
func ConvertSwaggerToOpenAPI(doc map[string]any, opts ConvertOptions) (map[string]any, error) {
	if doc == nil {
		return nil, &SpecError{Code: ConversionError, Message: "convert: nil document"}
	}
	if v, _ := doc["swagger"].(string); !strings.HasPrefix(strings.TrimSpace(v), "2.") {
		return nil, &SpecError{Code: SpecFormatError, Message: "convert: document is not Swagger 2.0"}
	}
	target := strings.TrimSpace(opts.TargetVersion)
	if target == "" {
		target = "3.0.3"
	}

	// rewriteRefs mutates nested maps, so the whole document is copied first.
	doc = deepCopyMap(doc)

	out := map[string]any{"openapi": target}

	if info, ok := doc["info"]; ok {
		out["info"] = info
	}
	if servers := buildServers(doc); len(servers) > 0 {
		out["servers"] = servers
	}
	if paths, ok := doc["paths"].(map[string]any); ok {
		out["paths"] = convertPaths(paths)
	}

	components := map[string]any{}
	if defs, ok := doc["definitions"].(map[string]any); ok && len(defs) > 0 {
		components["schemas"] = defs
	}
	if params, ok := doc["parameters"].(map[string]any); ok && len(params) > 0 {
		converted := make(map[string]any, len(params))
		for name, p := range params {
			if pm, ok := p.(map[string]any); ok {
				converted[name] = convertNonBodyParam(pm)
			} else {
				converted[name] = p
			}
		}
		components["parameters"] = converted
	}
	if responses, ok := doc["responses"].(map[string]any); ok && len(responses) > 0 {
		converted := make(map[string]any, len(responses))
		for name, r := range responses {
			if rm, ok := r.(map[string]any); ok {
				converted[name] = convertResponse(rm)
			} else {
				converted[name] = r
			}
		}
		components["responses"] = converted
	}
	if secDefs, ok := doc["securityDefinitions"].(map[string]any); ok && len(secDefs) > 0 {
		schemes := make(map[string]any, len(secDefs))
		for name, def := range secDefs {
			if dm, ok := def.(map[string]any); ok {
				schemes[name] = convertSecurityScheme(dm)
			} else {
				schemes[name] = def
			}
		}
		components["securitySchemes"] = schemes
	}
	if len(components) > 0 {
		out["components"] = components
	}

	// Unrecognized top-level fields pass through unchanged.
	for key, value := range doc {
		if _, handled := swaggerTopLevelHandled[key]; handled {
			continue
		}
		out[key] = value
	}

	rewriteRefs(out)

	if opts.ValidateResult {
		if err := validateConverted(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// buildServers maps schemes × host × basePath to the servers array.
func buildServers(doc map[string]any) []any {
	host, _ := doc["host"].(string)
	basePath, _ := doc["basePath"].(string)
	if host == "" && basePath == "" {
		return nil
	}
	var schemes []string
	if raw, ok := doc["schemes"].([]any); ok {
		for _, s := range raw {
			if str, ok := s.(string); ok && str != "" {
				schemes = append(schemes, str)
			}
		}
	}
	if len(schemes) == 0 {
		schemes = []string{"https"}
	}
	servers := make([]any, 0, len(schemes))
	for _, scheme := range schemes {
		url := basePath
		if host != "" {
			url = scheme + "://" + host + basePath
		}
		servers = append(servers, map[string]any{"url": url})
	}
	return servers
}

func convertPaths(paths map[string]any) map[string]any {
	out := make(map[string]any, len(paths))
	for path, item := range paths {
		pi, ok := item.(map[string]any)
		if !ok {
			out[path] = item
			continue
		}
		converted := make(map[string]any, len(pi))
		for key, value := range pi {
			if isMethodKey(key) {
				if op, ok := value.(map[string]any); ok {
					converted[key] = convertOperation(op)
					continue
				}
			}
			if key == "parameters" {
				if params, ok := value.([]any); ok {
					converted[key] = convertParamList(params)
					continue
				}
			}
			converted[key] = value
		}
		out[path] = converted
	}
	return out
}

func isMethodKey(key string) bool {
	switch strings.ToLower(key) {
	case "get", "post", "put", "delete", "patch", "head", "options":
		return true
	}
	return false
}

// convertOperation maps one Swagger operation. The first body parameter wins
// when more than one is present; formData parameters are merged into a
// single form request body when no body parameter exists.
func convertOperation(op map[string]any) map[string]any {
	out := make(map[string]any, len(op))
	for key, value := range op {
		switch key {
		case "parameters", "consumes", "produces":
		default:
			out[key] = value
		}
	}

	params, _ := op["parameters"].([]any)
	if len(params) == 0 {
		return out
	}

	var bodyParam map[string]any
	var formProps map[string]any
	var formRequired []any
	var rest []any
	for _, p := range params {
		pm, ok := p.(map[string]any)
		if !ok {
			rest = append(rest, p)
			continue
		}
		switch strings.ToLower(asString(pm["in"])) {
		case "body":
			if bodyParam == nil {
				bodyParam = pm
			}
		case "formdata":
			if formProps == nil {
				formProps = map[string]any{}
			}
			name := asString(pm["name"])
			if name == "" {
				name = "field"
			}
			formProps[name] = rolledSchema(pm)
			if req, _ := pm["required"].(bool); req {
				formRequired = append(formRequired, name)
			}
		default:
			rest = append(rest, convertNonBodyParam(pm))
		}
	}

	if len(rest) > 0 {
		out["parameters"] = rest
	}
	switch {
	case bodyParam != nil:
		rb := map[string]any{
			"content": map[string]any{
				"application/json": map[string]any{"schema": bodyParam["schema"]},
			},
		}
		if desc, ok := bodyParam["description"].(string); ok && desc != "" {
			rb["description"] = desc
		}
		if req, _ := bodyParam["required"].(bool); req {
			rb["required"] = true
		}
		out["requestBody"] = rb
	case formProps != nil:
		schema := map[string]any{"type": "object", "properties": formProps}
		if len(formRequired) > 0 {
			schema["required"] = formRequired
		}
		out["requestBody"] = map[string]any{
			"content": map[string]any{
				"application/x-www-form-urlencoded": map[string]any{"schema": schema},
			},
		}
	}

	if responses, ok := op["responses"].(map[string]any); ok {
		converted := make(map[string]any, len(responses))
		for status, r := range responses {
			if rm, ok := r.(map[string]any); ok {
				converted[status] = convertResponse(rm)
			} else {
				converted[status] = r
			}
		}
		out["responses"] = converted
	}
	return out
}

func convertParamList(params []any) []any {
	out := make([]any, 0, len(params))
	for _, p := range params {
		if pm, ok := p.(map[string]any); ok {
			out = append(out, convertNonBodyParam(pm))
			continue
		}
		out = append(out, p)
	}
	return out
}

// convertNonBodyParam keeps in/required and rolls the parameter's primitive
// type fields into an inline schema object.
func convertNonBodyParam(pm map[string]any) map[string]any {
	if pm["$ref"] != nil {
		return pm
	}
	out := map[string]any{}
	for _, key := range []string{"name", "in", "required", "description", "allowEmptyValue"} {
		if v, ok := pm[key]; ok {
			out[key] = v
		}
	}
	if schema, ok := pm["schema"]; ok {
		out["schema"] = schema
		return out
	}
	if schema := rolledSchema(pm); len(schema) > 0 {
		out["schema"] = schema
	}
	return out
}

// rolledSchema collects the primitive type fields of a Swagger parameter
// into a schema object, dropping undefined fields.
func rolledSchema(pm map[string]any) map[string]any {
	schema := map[string]any{}
	for _, key := range primitiveParamFields {
		if v, ok := pm[key]; ok && v != nil {
			schema[key] = v
		}
	}
	return schema
}

// convertResponse moves a response's top-level schema under
// content["application/json"].schema.
func convertResponse(rm map[string]any) map[string]any {
	out := make(map[string]any, len(rm))
	for key, value := range rm {
		if key == "schema" {
			continue
		}
		out[key] = value
	}
	if schema, ok := rm["schema"]; ok {
		out["content"] = map[string]any{
			"application/json": map[string]any{"schema": schema},
		}
	}
	return out
}

// convertSecurityScheme maps one securityDefinitions entry.
func convertSecurityScheme(def map[string]any) map[string]any {
	typ := asString(def["type"])
	switch typ {
	case "basic":
		out := map[string]any{"type": "http", "scheme": "basic"}
		if desc, ok := def["description"]; ok {
			out["description"] = desc
		}
		return out
	case "oauth2":
		flowName := asString(def["flow"])
		key, ok := oauth2FlowNames[flowName]
		if !ok {
			key = flowName
		}
		flow := map[string]any{}
		if v, ok := def["authorizationUrl"]; ok {
			flow["authorizationUrl"] = v
		}
		if v, ok := def["tokenUrl"]; ok {
			flow["tokenUrl"] = v
		}
		if v, ok := def["scopes"]; ok {
			flow["scopes"] = v
		} else {
			flow["scopes"] = map[string]any{}
		}
		out := map[string]any{
			"type":  "oauth2",
			"flows": map[string]any{key: flow},
		}
		if desc, ok := def["description"]; ok {
			out["description"] = desc
		}
		return out
	default:
		// apiKey and anything unrecognized pass through.
		return def
	}
}

// v2RefPrefixes maps Swagger component ref prefixes to their OpenAPI 3 homes.
var v2RefPrefixes = []struct{ from, to string }{
	{"#/definitions/", "#/components/schemas/"},
	{"#/parameters/", "#/components/parameters/"},
	{"#/responses/", "#/components/responses/"},
}

// rewriteRefs rewrites Swagger-style $ref pointers in place across the whole
// converted document.
func rewriteRefs(v any) {
	switch node := v.(type) {
	case map[string]any:
		if ref, ok := node["$ref"].(string); ok {
			for _, p := range v2RefPrefixes {
				if strings.HasPrefix(ref, p.from) {
					node["$ref"] = p.to + strings.TrimPrefix(ref, p.from)
					break
				}
			}
		}
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rewriteRefs(node[k])
		}
	case []any:
		for _, item := range node {
			rewriteRefs(item)
		}
	}
}

// validateConverted dereferences the converted document again purely to
// surface structural errors.
func validateConverted(out map[string]any) error {
	data, err := yaml.Marshal(out)
	if err != nil {
		return &SpecError{Code: ConversionError, Message: fmt.Sprintf("encode converted document: %v", err), Cause: err}
	}
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return &SpecError{Code: ConversionError, Message: fmt.Sprintf("converted document is not loadable: %v", err), Cause: err}
	}
	if err := doc.Validate(context.Background()); err != nil && isRefError(err) {
		return &SpecError{Code: ConversionError, Message: fmt.Sprintf("converted document has unresolved refs: %v", err), Cause: err}
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch node := v.(type) {
	case map[string]any:
		return deepCopyMap(node)
	case []any:
		out := make([]any, len(node))
		for i, item := range node {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
