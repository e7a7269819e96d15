package spec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/apilens/apilens/internal/logging"
)

// Settings configures loader behavior.
type Settings struct {
	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
	// Cache, when set, caches normalized specs by resolved absolute path.
	Cache *Cache
	// FreshLoad bypasses the cache for this call (re-validation requests).
	FreshLoad bool
	// ExternalRefs controls whether external $ref pointers are followed.
	ExternalRefs bool
	// AllowFileRefs controls whether file refs are allowed for external
	// references. Automatically allowed when the root input is a local file.
	AllowFileRefs bool
	// ContinueOnError tolerates dangling/circular references: the loader
	// degrades to a raw structural walk instead of failing.
	ContinueOnError bool
	// ValidateResult re-dereferences a converted Swagger document purely to
	// surface structural errors.
	ValidateResult bool
	// TargetVersion is the OpenAPI version stamped on converted documents.
	TargetVersion string
	// HTTPTimeout bounds each HTTP request made for external refs.
	HTTPTimeout time.Duration
	// ReadTimeout bounds the file-read step. Zero means no bound beyond ctx.
	ReadTimeout time.Duration
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		Logger:        logging.Nop{},
		ExternalRefs:  true,
		TargetVersion: "3.0.3",
		HTTPTimeout:   10 * time.Second,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithLogger(l logging.Logger) Option { return func(s *Settings) { s.Logger = logging.OrNop(l) } }
func WithCache(c *Cache) Option          { return func(s *Settings) { s.Cache = c } }
func WithFreshLoad(fresh bool) Option    { return func(s *Settings) { s.FreshLoad = fresh } }
func WithoutExternalRefs() Option        { return func(s *Settings) { s.ExternalRefs = false } }
func WithAllowFileRefs(allow bool) Option { return func(s *Settings) { s.AllowFileRefs = allow } }

func WithContinueOnError(tolerate bool) Option {
	return func(s *Settings) { s.ContinueOnError = tolerate }
}

func WithValidateResult(validate bool) Option {
	return func(s *Settings) { s.ValidateResult = validate }
}

func WithTargetVersion(v string) Option      { return func(s *Settings) { s.TargetVersion = v } }
func WithHTTPTimeout(d time.Duration) Option { return func(s *Settings) { s.HTTPTimeout = d } }
func WithReadTimeout(d time.Duration) Option { return func(s *Settings) { s.ReadTimeout = d } }

// Load reads a spec document from a filesystem path and returns its
// normalized form. Swagger 2.0 inputs are converted to OpenAPI 3 first.
//
// Results are cached by resolved absolute path when a Cache is configured;
// WithFreshLoad bypasses the cache.
func Load(ctx context.Context, path string, opts ...Option) (*NormalizedSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &SpecError{Code: SpecNotFound, Message: "spec: input path is empty"}
	}
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &SpecError{Code: SpecNotFound, Message: fmt.Sprintf("resolve path: %v", err), Location: path, Cause: err}
	}

	if settings.Cache != nil && !settings.FreshLoad {
		if ns, ok := settings.Cache.Get(abs); ok {
			settings.Logger.Debug("spec cache hit", "path", abs)
			return ns, nil
		}
	}

	raw, err := readFileContext(ctx, abs, settings.ReadTimeout)
	if err != nil {
		return nil, &SpecError{Code: SpecNotFound, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}

	ns, err := loadBytes(ctx, raw, abs, true, settings)
	if err != nil {
		return nil, err
	}
	if settings.Cache != nil {
		settings.Cache.Put(abs, ns)
	}
	return ns, nil
}

// LoadFromData normalizes an in-memory spec document (JSON or YAML bytes).
// In-memory documents are never cached.
func LoadFromData(ctx context.Context, data []byte, opts ...Option) (*NormalizedSpec, error) {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	return loadBytes(ctx, data, "inline", false, settings)
}

// LoadFromObject normalizes an already-decoded spec document.
func LoadFromObject(ctx context.Context, doc map[string]any, opts ...Option) (*NormalizedSpec, error) {
	if doc == nil {
		return nil, &SpecError{Code: SpecParseError, Message: "spec: nil document object", Location: "inline"}
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, &SpecError{Code: SpecParseError, Message: fmt.Sprintf("encode document: %v", err), Location: "inline", Cause: err}
	}
	return LoadFromData(ctx, data, opts...)
}

func loadBytes(ctx context.Context, raw []byte, location string, rootIsFile bool, settings Settings) (*NormalizedSpec, error) {
	root, format, version, err := detectFormat(raw)
	if err != nil {
		se := err.(*SpecError)
		se.Location = location
		return nil, se
	}

	if format == FormatSwagger {
		converted, err := ConvertSwaggerToOpenAPI(root, ConvertOptions{TargetVersion: settings.TargetVersion})
		if err != nil {
			return nil, wrapConvertErr(err, location)
		}
		out, merr := yaml.Marshal(converted)
		if merr != nil {
			return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("encode converted document: %v", merr), Location: location, Cause: merr}
		}
		raw = out
		root = converted
	}

	doc, err := dereference(ctx, raw, location, rootIsFile, settings)
	if err != nil {
		if !settings.ContinueOnError {
			return nil, err
		}
		// Degraded path: dangling or circular refs are tolerated, the spec
		// is rebuilt from a raw structural walk.
		settings.Logger.Warn("reference resolution failed, continuing on error",
			"location", location, "error", err.Error())
		return normalizeRaw(root, format, version, location), nil
	}

	ns := normalizeDocument(doc, format, version, location)
	return ns, nil
}

// dereference parses raw via kin-openapi, resolving internal and, when
// enabled, external $ref pointers.
func dereference(ctx context.Context, raw []byte, location string, rootIsFile bool, settings Settings) (*openapi3.T, error) {
	loader := newRefLoader(settings, rootIsFile)

	var doc *openapi3.T
	var err error
	if rootIsFile {
		base := &url.URL{Path: location}
		doc, err = loader.LoadFromDataWithPath(raw, base)
	} else {
		doc, err = loader.LoadFromData(raw)
	}
	if err != nil {
		return nil, mapRefOrParseErr(err, location)
	}
	if err := doc.Validate(ctx); err != nil {
		if isRefError(err) {
			return nil, &SpecError{Code: RefResolutionError, Message: err.Error(), Location: location, Cause: err}
		}
		// Non-reference validation findings do not block normalization.
		settings.Logger.Debug("spec validation findings ignored", "location", location, "error", err.Error())
	}
	return doc, nil
}

func newRefLoader(settings Settings, rootIsFile bool) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = settings.ExternalRefs
	client := &http.Client{Timeout: settings.HTTPTimeout}
	allowFile := settings.AllowFileRefs || rootIsFile
	loader.ReadFromURIFunc = func(l *openapi3.Loader, uri *url.URL) ([]byte, error) {
		switch strings.ToLower(uri.Scheme) {
		case "", "file":
			if !allowFile {
				return nil, fmt.Errorf("blocked file ref: %s", uri.String())
			}
			path := uri.Path
			if path == "" {
				path = uri.Opaque
			}
			return os.ReadFile(path)
		case "http", "https":
			req, err := http.NewRequest(http.MethodGet, uri.String(), nil)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return nil, fmt.Errorf("http %d: %s", resp.StatusCode, uri.String())
			}
			return io.ReadAll(resp.Body)
		default:
			return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
		}
	}
	return loader
}

// detectFormat classifies the document by its version field. It returns the
// decoded root object so callers avoid a second parse.
func detectFormat(data []byte) (map[string]any, Format, string, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, "", "", &SpecError{Code: SpecParseError, Message: fmt.Sprintf("parse spec: %v", err), Cause: err}
	}
	if root == nil {
		return nil, "", "", &SpecError{Code: SpecParseError, Message: "parse spec: empty document"}
	}
	if v, ok := root["openapi"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "3.") {
			return root, FormatOpenAPI, strings.TrimSpace(s), nil
		}
	}
	if v, ok := root["swagger"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
			return root, FormatSwagger, strings.TrimSpace(s), nil
		}
	}
	return nil, "", "", &SpecError{Code: SpecFormatError, Message: "spec: missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')"}
}

// readFileContext bounds the single blocking step of the pipeline: reading
// the spec file. The read runs in its own goroutine so cancellation and the
// optional timeout are honored.
func readFileContext(ctx context.Context, path string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := os.ReadFile(path)
		ch <- result{data: data, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.data, r.err
	}
}

func mapRefOrParseErr(err error, location string) error {
	if isRefError(err) {
		return &SpecError{Code: RefResolutionError, Message: err.Error(), Location: location, Cause: err}
	}
	return &SpecError{Code: SpecParseError, Message: err.Error(), Location: location, Cause: err}
}

func isRefError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unresolved ref") ||
		strings.Contains(s, "failed to resolve") ||
		strings.Contains(s, "circular") ||
		strings.Contains(s, "cannot resolve")
}

func wrapConvertErr(err error, location string) error {
	var se *SpecError
	if errors.As(err, &se) {
		if se.Location == "" {
			se.Location = location
		}
		return se
	}
	return &SpecError{Code: ConversionError, Message: err.Error(), Location: location, Cause: err}
}
