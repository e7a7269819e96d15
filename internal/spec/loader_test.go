package spec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const petstoreV3 = `openapi: 3.0.0
info:
  title: Petstore
  version: "1.0.0"
paths:
  "/api/pets":
    get:
      operationId: listPets
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Pet'
    post:
      operationId: createPet
      requestBody:
        required: true
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/Pet'
      responses:
        "201":
          description: created
  "/api/pets/{petId}":
    get:
      operationId: getPet
      parameters:
        - name: petId
          in: path
          required: true
          schema:
            type: string
      responses:
        "200":
          description: ok
components:
  schemas:
    Pet:
      type: object
      properties:
        name:
          type: string
`

func writeSpecFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad_EmptyPath(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), "  ")
	var se *SpecError
	if !errors.As(err, &se) || se.Code != SpecNotFound {
		t.Fatalf("expected SpecNotFound, got %v (%T)", err, err)
	}
}

func TestLoad_NotFound(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	var se *SpecError
	if !errors.As(err, &se) || se.Code != SpecNotFound {
		t.Fatalf("expected SpecNotFound, got %v (%T)", err, err)
	}
	if se.Location == "" {
		t.Fatalf("expected location to be set")
	}
}

func TestLoadFromData_ParseError(t *testing.T) {
	t.Parallel()
	_, err := LoadFromData(context.Background(), []byte("just a scalar"))
	var se *SpecError
	if !errors.As(err, &se) || se.Code != SpecParseError {
		t.Fatalf("expected SpecParseError, got %v (%T)", err, err)
	}
}

func TestLoadFromData_FormatError(t *testing.T) {
	t.Parallel()
	_, err := LoadFromData(context.Background(), []byte(`{"title": "no version field"}`))
	var se *SpecError
	if !errors.As(err, &se) || se.Code != SpecFormatError {
		t.Fatalf("expected SpecFormatError, got %v (%T)", err, err)
	}
}

func TestLoad_V3_Normalizes(t *testing.T) {
	t.Parallel()
	path := writeSpecFile(t, "petstore.yaml", petstoreV3)

	ns, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ns.Format != FormatOpenAPI {
		t.Fatalf("expected openapi format, got %q", ns.Format)
	}
	if ns.Version != "3.0.0" {
		t.Fatalf("expected version 3.0.0, got %q", ns.Version)
	}
	if ns.Metadata.Title != "Petstore" || ns.Metadata.OperationCount != 3 || ns.Metadata.SchemaCount != 1 {
		t.Fatalf("unexpected metadata: %+v", ns.Metadata)
	}

	// Paths sorted, methods in canonical order within a path.
	wantOps := []struct{ path, method string }{
		{"/api/pets", "GET"},
		{"/api/pets", "POST"},
		{"/api/pets/{petId}", "GET"},
	}
	if len(ns.Operations) != len(wantOps) {
		t.Fatalf("expected %d operations, got %d", len(wantOps), len(ns.Operations))
	}
	for i, want := range wantOps {
		got := ns.Operations[i]
		if got.Path != want.path || got.Method != want.method {
			t.Fatalf("operation %d: expected %s %s, got %s %s", i, want.method, want.path, got.Method, got.Path)
		}
	}

	getPet := ns.Operations[2]
	if len(getPet.Parameters) != 1 || getPet.Parameters[0].Name != "petId" || getPet.Parameters[0].Type != "string" || !getPet.Parameters[0].Required {
		t.Fatalf("unexpected parameters: %+v", getPet.Parameters)
	}

	createPet := ns.Operations[1]
	if createPet.RequestBody == nil || !createPet.RequestBody.Required {
		t.Fatalf("expected required request body, got %+v", createPet.RequestBody)
	}

	if len(ns.Schemas) != 1 || ns.Schemas[0].Name != "Pet" || ns.Schemas[0].Shape != "object" {
		t.Fatalf("unexpected schemas: %+v", ns.Schemas)
	}
	if ns.Schemas[0].UsageCount != 2 {
		t.Fatalf("expected Pet to be referenced twice, got %d", ns.Schemas[0].UsageCount)
	}
}

func TestLoad_V3_Deterministic(t *testing.T) {
	t.Parallel()
	path := writeSpecFile(t, "petstore.yaml", petstoreV3)
	ctx := context.Background()

	first, err := Load(ctx, path)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := Load(ctx, path)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if len(first.Operations) != len(second.Operations) {
		t.Fatalf("operation counts differ: %d vs %d", len(first.Operations), len(second.Operations))
	}
	for i := range first.Operations {
		a, b := first.Operations[i], second.Operations[i]
		if a.Path != b.Path || a.Method != b.Method {
			t.Fatalf("operation %d differs: %s %s vs %s %s", i, a.Method, a.Path, b.Method, b.Path)
		}
	}
}

func TestLoad_V2_Conversion(t *testing.T) {
	t.Parallel()
	content := `swagger: "2.0"
info:
  title: Legacy
  version: "1.0.0"
host: api.example.com
basePath: /v1
schemes: [https]
paths:
  "/users":
    get:
      parameters:
        - name: limit
          in: query
          type: integer
      responses:
        "200":
          description: ok
          schema:
            $ref: '#/definitions/User'
definitions:
  User:
    type: object
    properties:
      id:
        type: string
`
	path := writeSpecFile(t, "swagger.yaml", content)

	ns, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ns.Format != FormatSwagger {
		t.Fatalf("expected swagger format marker, got %q", ns.Format)
	}
	if !strings.HasPrefix(ns.Version, "3.") {
		t.Fatalf("expected converted version 3.x, got %q", ns.Version)
	}
	if len(ns.Operations) != 1 || ns.Operations[0].Path != "/users" || ns.Operations[0].Method != "GET" {
		t.Fatalf("unexpected operations: %+v", ns.Operations)
	}
	if len(ns.Operations[0].Parameters) != 1 || ns.Operations[0].Parameters[0].Name != "limit" || ns.Operations[0].Parameters[0].Type != "integer" {
		t.Fatalf("expected rolled-up limit parameter, got %+v", ns.Operations[0].Parameters)
	}
	if len(ns.Schemas) != 1 || ns.Schemas[0].Name != "User" {
		t.Fatalf("expected User schema, got %+v", ns.Schemas)
	}
	if ns.Schemas[0].UsageCount != 1 {
		t.Fatalf("expected rewritten ref to count as one usage, got %d", ns.Schemas[0].UsageCount)
	}
}

func TestLoad_CacheHitAndFreshLoad(t *testing.T) {
	t.Parallel()
	path := writeSpecFile(t, "petstore.yaml", petstoreV3)
	cache := NewCache(4)
	ctx := context.Background()

	first, err := Load(ctx, path, WithCache(cache))
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected one cache entry, got %d", cache.Len())
	}

	second, err := Load(ctx, path, WithCache(cache))
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if first != second {
		t.Fatalf("expected the cached instance on the second load")
	}

	// The file changes on disk; the cache keeps serving the old entry until
	// a fresh load is requested.
	updated := strings.Replace(petstoreV3, "title: Petstore", "title: Petstore v2", 1)
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	stale, err := Load(ctx, path, WithCache(cache))
	if err != nil {
		t.Fatalf("stale load: %v", err)
	}
	if stale.Metadata.Title != "Petstore" {
		t.Fatalf("expected stale cached title, got %q", stale.Metadata.Title)
	}

	fresh, err := Load(ctx, path, WithCache(cache), WithFreshLoad(true))
	if err != nil {
		t.Fatalf("fresh load: %v", err)
	}
	if fresh.Metadata.Title != "Petstore v2" {
		t.Fatalf("expected fresh title, got %q", fresh.Metadata.Title)
	}
}

func TestLoad_DanglingRef(t *testing.T) {
	t.Parallel()
	content := `openapi: 3.0.0
info:
  title: Broken
  version: "1.0.0"
paths:
  "/things":
    get:
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Missing'
`
	path := writeSpecFile(t, "broken.yaml", content)
	ctx := context.Background()

	_, err := Load(ctx, path)
	if err == nil {
		t.Fatalf("expected error for dangling ref")
	}
	var se *SpecError
	if !errors.As(err, &se) {
		t.Fatalf("expected SpecError, got %T", err)
	}
	if se.Code != RefResolutionError && se.Code != SpecParseError { // parser version differences
		t.Fatalf("expected RefResolutionError/SpecParseError, got %v", se.Code)
	}

	// With ContinueOnError the loader degrades to a raw structural walk.
	ns, err := Load(ctx, path, WithContinueOnError(true))
	if err != nil {
		t.Fatalf("continue-on-error load: %v", err)
	}
	if len(ns.Operations) != 1 || ns.Operations[0].Path != "/things" || ns.Operations[0].Method != "GET" {
		t.Fatalf("expected degraded operations, got %+v", ns.Operations)
	}
}

func TestLoadFromObject(t *testing.T) {
	t.Parallel()
	doc := map[string]any{
		"openapi": "3.0.0",
		"info":    map[string]any{"title": "Inline", "version": "1.0.0"},
		"paths": map[string]any{
			"/ping": map[string]any{
				"get": map[string]any{
					"responses": map[string]any{
						"200": map[string]any{"description": "ok"},
					},
				},
			},
		},
	}
	ns, err := LoadFromObject(context.Background(), doc)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ns.Metadata.Title != "Inline" || len(ns.Operations) != 1 {
		t.Fatalf("unexpected result: %+v", ns)
	}

	if _, err := LoadFromObject(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil document")
	}
}

func TestCache_Bounds(t *testing.T) {
	t.Parallel()
	cache := NewCache(2)
	for _, key := range []string{"a", "b", "c"} {
		cache.Put(key, &NormalizedSpec{Metadata: Metadata{Source: key}})
	}
	if cache.Len() != 2 {
		t.Fatalf("expected eviction down to 2 entries, got %d", cache.Len())
	}
	if _, ok := cache.Get("a"); ok {
		t.Fatalf("expected oldest entry to be evicted")
	}
	if ns, ok := cache.Get("c"); !ok || ns.Metadata.Source != "c" {
		t.Fatalf("expected newest entry to survive")
	}

	var nilCache *Cache
	if _, ok := nilCache.Get("a"); ok {
		t.Fatalf("nil cache must miss")
	}
	nilCache.Put("a", &NormalizedSpec{})
	nilCache.Purge()
}
