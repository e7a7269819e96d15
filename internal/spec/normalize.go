package spec

import (
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// normalizeDocument flattens a dereferenced OpenAPI v3 document into the
// NormalizedSpec model. Maps are walked in sorted key order so the result is
// deterministic. Path+method uniqueness follows from the map keys.
func normalizeDocument(doc *openapi3.T, format Format, version string, source string) *NormalizedSpec {
	ns := &NormalizedSpec{
		Version: doc.OpenAPI,
		Format:  format,
		Metadata: Metadata{
			Source: source,
		},
	}
	if ns.Version == "" {
		ns.Version = version
	}
	if doc.Info != nil {
		ns.Metadata.Title = strings.TrimSpace(doc.Info.Title)
		ns.Metadata.Description = strings.TrimSpace(doc.Info.Description)
		ns.Metadata.DocVersion = strings.TrimSpace(doc.Info.Version)
	}

	usage := countSchemaUsage(doc)

	if doc.Paths != nil {
		pathKeys := make([]string, 0, len(doc.Paths))
		for p := range doc.Paths {
			pathKeys = append(pathKeys, p)
		}
		sort.Strings(pathKeys)

		for _, p := range pathKeys {
			item := doc.Paths[p]
			if item == nil {
				continue
			}
			ops := []struct {
				method string
				op     *openapi3.Operation
			}{
				{"GET", item.Get},
				{"POST", item.Post},
				{"PUT", item.Put},
				{"DELETE", item.Delete},
				{"PATCH", item.Patch},
				{"HEAD", item.Head},
				{"OPTIONS", item.Options},
			}
			for _, pair := range ops {
				if pair.op == nil {
					continue
				}
				ns.Operations = append(ns.Operations, buildOperation(p, pair.method, item, pair.op))
			}
		}
	}

	if doc.Components != nil && doc.Components.Schemas != nil {
		names := make([]string, 0, len(doc.Components.Schemas))
		for name := range doc.Components.Schemas {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ref := doc.Components.Schemas[name]
			shape := "object"
			if ref != nil && ref.Value != nil && ref.Value.Type != "" {
				shape = ref.Value.Type
			}
			ns.Schemas = append(ns.Schemas, SchemaDescriptor{
				Name:       name,
				Shape:      shape,
				UsageCount: usage[name],
			})
		}
	}

	ns.Metadata.OperationCount = len(ns.Operations)
	ns.Metadata.SchemaCount = len(ns.Schemas)
	return ns
}

func buildOperation(path, method string, item *openapi3.PathItem, op *openapi3.Operation) OperationDescriptor {
	od := OperationDescriptor{
		Path:        path,
		Method:      method,
		OperationID: strings.TrimSpace(op.OperationID),
		Summary:     strings.TrimSpace(op.Summary),
	}
	for _, t := range op.Tags {
		if t = strings.TrimSpace(t); t != "" {
			od.Tags = append(od.Tags, t)
		}
	}

	// Path-level parameters first, overridden by operation-level ones.
	merged := make(map[string]ParameterDescriptor)
	var order []string
	addParam := func(pref *openapi3.ParameterRef) {
		if pref == nil || pref.Value == nil {
			return
		}
		p := pref.Value
		pd := ParameterDescriptor{
			Name:     strings.TrimSpace(p.Name),
			In:       strings.TrimSpace(p.In),
			Required: p.Required,
		}
		if p.Schema != nil && p.Schema.Value != nil {
			pd.Type = p.Schema.Value.Type
		}
		key := pd.In + ":" + pd.Name
		if _, seen := merged[key]; !seen {
			order = append(order, key)
		}
		merged[key] = pd
	}
	for _, pref := range item.Parameters {
		addParam(pref)
	}
	for _, pref := range op.Parameters {
		addParam(pref)
	}
	sort.Strings(order)
	for _, key := range order {
		od.Parameters = append(od.Parameters, merged[key])
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		rb := &RequestBodyDescriptor{Required: op.RequestBody.Value.Required}
		rb.MediaTypes = sortedContentKeys(op.RequestBody.Value.Content)
		od.RequestBody = rb
	}

	if op.Responses != nil {
		statuses := make([]string, 0, len(op.Responses))
		for status := range op.Responses {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			rref := op.Responses[status]
			if rref == nil || rref.Value == nil {
				continue
			}
			desc := ""
			if rref.Value.Description != nil {
				desc = strings.TrimSpace(*rref.Value.Description)
			}
			od.Responses = append(od.Responses, ResponseDescriptor{
				Status:      status,
				Description: desc,
				MediaTypes:  sortedContentKeys(rref.Value.Content),
			})
		}
	}

	if op.Security != nil {
		seen := make(map[string]struct{})
		for _, requirement := range *op.Security {
			for scheme := range requirement {
				seen[scheme] = struct{}{}
			}
		}
		for scheme := range seen {
			od.Security = append(od.Security, scheme)
		}
		sort.Strings(od.Security)
	}
	return od
}

func sortedContentKeys(content openapi3.Content) []string {
	if len(content) == 0 {
		return nil
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const componentSchemaPrefix = "#/components/schemas/"

// countSchemaUsage counts $ref occurrences per named component schema across
// parameters, request bodies, responses, and nested schemas. A visited set
// guards cyclic schemas.
func countSchemaUsage(doc *openapi3.T) map[string]int {
	usage := make(map[string]int)
	visited := make(map[*openapi3.Schema]struct{})

	var walkSchema func(ref *openapi3.SchemaRef)
	walkSchema = func(ref *openapi3.SchemaRef) {
		if ref == nil {
			return
		}
		if strings.HasPrefix(ref.Ref, componentSchemaPrefix) {
			usage[strings.TrimPrefix(ref.Ref, componentSchemaPrefix)]++
		}
		s := ref.Value
		if s == nil {
			return
		}
		if _, seen := visited[s]; seen {
			return
		}
		visited[s] = struct{}{}
		for _, prop := range s.Properties {
			walkSchema(prop)
		}
		walkSchema(s.Items)
		for _, sub := range s.AllOf {
			walkSchema(sub)
		}
		for _, sub := range s.AnyOf {
			walkSchema(sub)
		}
		for _, sub := range s.OneOf {
			walkSchema(sub)
		}
	}
	walkContent := func(content openapi3.Content) {
		for _, mt := range content {
			if mt != nil {
				walkSchema(mt.Schema)
			}
		}
	}
	walkOp := func(item *openapi3.PathItem, op *openapi3.Operation) {
		if op == nil {
			return
		}
		for _, pref := range item.Parameters {
			if pref != nil && pref.Value != nil {
				walkSchema(pref.Value.Schema)
			}
		}
		for _, pref := range op.Parameters {
			if pref != nil && pref.Value != nil {
				walkSchema(pref.Value.Schema)
			}
		}
		if op.RequestBody != nil && op.RequestBody.Value != nil {
			walkContent(op.RequestBody.Value.Content)
		}
		for _, rref := range op.Responses {
			if rref != nil && rref.Value != nil {
				walkContent(rref.Value.Content)
			}
		}
	}

	for _, item := range doc.Paths {
		if item == nil {
			continue
		}
		for _, op := range []*openapi3.Operation{item.Get, item.Post, item.Put, item.Delete, item.Patch, item.Head, item.Options} {
			walkOp(item, op)
		}
	}
	if doc.Components != nil {
		for _, ref := range doc.Components.Schemas {
			if ref != nil && ref.Value != nil {
				walkSchema(&openapi3.SchemaRef{Value: ref.Value})
			}
		}
	}
	return usage
}

// normalizeRaw is the degraded structural walk used when reference
// resolution fails and the caller opted to continue on error. Refs stay
// unresolved; only the information present literally in the document is
// extracted.
func normalizeRaw(root map[string]any, format Format, version string, source string) *NormalizedSpec {
	ns := &NormalizedSpec{
		Version:  version,
		Format:   format,
		Metadata: Metadata{Source: source},
	}
	if info, ok := root["info"].(map[string]any); ok {
		ns.Metadata.Title = asString(info["title"])
		ns.Metadata.Description = asString(info["description"])
		ns.Metadata.DocVersion = asString(info["version"])
	}

	if paths, ok := root["paths"].(map[string]any); ok {
		pathKeys := make([]string, 0, len(paths))
		for p := range paths {
			pathKeys = append(pathKeys, p)
		}
		sort.Strings(pathKeys)
		for _, p := range pathKeys {
			item, ok := paths[p].(map[string]any)
			if !ok {
				continue
			}
			for _, method := range CanonicalMethods {
				op, ok := item[strings.ToLower(method)].(map[string]any)
				if !ok {
					continue
				}
				od := OperationDescriptor{Path: p, Method: method}
				od.OperationID = asString(op["operationId"])
				od.Summary = asString(op["summary"])
				if params, ok := op["parameters"].([]any); ok {
					for _, raw := range params {
						pm, ok := raw.(map[string]any)
						if !ok {
							continue
						}
						pd := ParameterDescriptor{
							Name: asString(pm["name"]),
							In:   asString(pm["in"]),
						}
						pd.Required, _ = pm["required"].(bool)
						if schema, ok := pm["schema"].(map[string]any); ok {
							pd.Type = asString(schema["type"])
						} else {
							pd.Type = asString(pm["type"])
						}
						od.Parameters = append(od.Parameters, pd)
					}
				}
				ns.Operations = append(ns.Operations, od)
			}
		}
	}

	usage := make(map[string]int)
	countRawRefs(root, usage)
	if components, ok := root["components"].(map[string]any); ok {
		if schemas, ok := components["schemas"].(map[string]any); ok {
			names := make([]string, 0, len(schemas))
			for name := range schemas {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				shape := "object"
				if sm, ok := schemas[name].(map[string]any); ok {
					if t := asString(sm["type"]); t != "" {
						shape = t
					}
				}
				ns.Schemas = append(ns.Schemas, SchemaDescriptor{Name: name, Shape: shape, UsageCount: usage[name]})
			}
		}
	}

	ns.Metadata.OperationCount = len(ns.Operations)
	ns.Metadata.SchemaCount = len(ns.Schemas)
	return ns
}

func countRawRefs(v any, usage map[string]int) {
	switch node := v.(type) {
	case map[string]any:
		if ref, ok := node["$ref"].(string); ok && strings.HasPrefix(ref, componentSchemaPrefix) {
			usage[strings.TrimPrefix(ref, componentSchemaPrefix)]++
		}
		for _, value := range node {
			countRawRefs(value, usage)
		}
	case []any:
		for _, item := range node {
			countRawRefs(item, usage)
		}
	}
}
