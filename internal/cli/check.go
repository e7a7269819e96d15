package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/apilens/apilens/internal/check"
	"github.com/apilens/apilens/internal/extract"
	"github.com/apilens/apilens/internal/logging"
	"github.com/apilens/apilens/internal/spec"
)

// CheckConfig captures all inputs that influence the check command after
// merging defaults, config file values, and CLI overrides.
type CheckConfig struct {
	Spec            string   `yaml:"spec"`
	Frontend        string   `yaml:"frontend"`
	Backend         string   `yaml:"backend"`
	Rules           []string `yaml:"rules"`
	IncludeWarnings bool     `yaml:"includeWarnings"`
	IgnoreMinor     bool     `yaml:"ignoreMinorDifferences"`
	StrictMethods   bool     `yaml:"strictMethodDetection"`
	ContinueOnError bool     `yaml:"continueOnError"`
	JSON            bool     `yaml:"json"`
	ConfigPath      string   `yaml:"-"`
	Verbose         bool     `yaml:"-"`
}

func defaultCheckConfig() CheckConfig {
	return CheckConfig{IncludeWarnings: true}
}

var checkRunner = runCheck

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Diff frontend/backend code and an OpenAPI spec for consistency",
		Long: "Check that frontend code, backend code, and/or an OpenAPI/Swagger document " +
			"describe the same endpoints, methods, and schemas. Provide any two inputs.",
		Example: strings.TrimSpace(`  apilens check --spec openapi.yaml --frontend src/client.ts
  apilens check --frontend src/client.ts --backend server/routes.go --json
  apilens --config apilens.yaml check`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveCheckConfig(cmd)
			if err != nil {
				return err
			}
			return checkRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("spec", "", "Path to the OpenAPI/Swagger document")
	flags.String("frontend", "", "Path to the frontend source file to scan")
	flags.String("backend", "", "Path to the backend source file to scan")
	flags.StringSlice("rules", nil, "Named custom rules to evaluate, in order")
	flags.Bool("include-warnings", true, "Include warning-severity issues in the report")
	flags.Bool("ignore-minor", false, "Suppress minor findings such as untyped parameters")
	flags.Bool("strict-methods", false, "Only treat canonical HTTP verbs as method candidates")
	flags.Bool("continue-on-error", false, "Tolerate dangling/circular spec references")
	flags.Bool("json", false, "Emit the raw result as JSON")

	return cmd
}

func resolveCheckConfig(cmd *cobra.Command) (*CheckConfig, error) {
	cfg := defaultCheckConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyCheckConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyCheckFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyCheckConfigFromFile(cfg *CheckConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("check: cannot read config %q: %v", path, err))
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return newUsageError(fmt.Sprintf("check: cannot parse config %q: %v", path, err))
	}
	return nil
}

func applyCheckFlagOverrides(flags *pflag.FlagSet, cfg *CheckConfig) error {
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"spec", &cfg.Spec},
		{"frontend", &cfg.Frontend},
		{"backend", &cfg.Backend},
	} {
		if flags.Changed(f.name) {
			value, err := flags.GetString(f.name)
			if err != nil {
				return err
			}
			*f.dst = strings.TrimSpace(value)
		}
	}
	if flags.Changed("rules") {
		value, err := flags.GetStringSlice("rules")
		if err != nil {
			return err
		}
		cfg.Rules = value
	}
	for _, f := range []struct {
		name string
		dst  *bool
	}{
		{"include-warnings", &cfg.IncludeWarnings},
		{"ignore-minor", &cfg.IgnoreMinor},
		{"strict-methods", &cfg.StrictMethods},
		{"continue-on-error", &cfg.ContinueOnError},
		{"json", &cfg.JSON},
		{"verbose", &cfg.Verbose},
	} {
		if flags.Changed(f.name) {
			value, err := flags.GetBool(f.name)
			if err != nil {
				return err
			}
			*f.dst = value
		}
	}
	return nil
}

func (c *CheckConfig) normalize() {
	c.Spec = strings.TrimSpace(c.Spec)
	c.Frontend = strings.TrimSpace(c.Frontend)
	c.Backend = strings.TrimSpace(c.Backend)
	rules := c.Rules[:0]
	for _, r := range c.Rules {
		if r = strings.TrimSpace(r); r != "" {
			rules = append(rules, r)
		}
	}
	c.Rules = rules
}

func (c *CheckConfig) validate() error {
	provided := 0
	for _, v := range []string{c.Spec, c.Frontend, c.Backend} {
		if v != "" {
			provided++
		}
	}
	if provided < 2 {
		return newUsageError("check: provide at least two of --spec, --frontend, --backend")
	}
	return nil
}

func runCheck(ctx context.Context, cfg *CheckConfig) error {
	logger := buildLogger(cfg.Verbose)

	extractor := extract.NewPatternExtractor(
		extract.WithLogger(logger),
		extract.WithStrictMethodDetection(cfg.StrictMethods),
	)
	opts := check.Options{
		IncludeWarnings:        cfg.IncludeWarnings,
		IgnoreMinorDifferences: cfg.IgnoreMinor,
		CustomRules:            cfg.Rules,
	}
	checker := check.New(logger)

	var frontend, backend *extract.CodeFeatureSet
	if cfg.Frontend != "" {
		src, err := os.ReadFile(cfg.Frontend)
		if err != nil {
			return fmt.Errorf("check: read frontend source: %w", err)
		}
		frontend = extractor.Extract(string(src))
	}
	if cfg.Backend != "" {
		src, err := os.ReadFile(cfg.Backend)
		if err != nil {
			return fmt.Errorf("check: read backend source: %w", err)
		}
		backend = extractor.Extract(string(src))
	}

	var ns *spec.NormalizedSpec
	if cfg.Spec != "" {
		loadOpts := []spec.Option{spec.WithLogger(logger), spec.WithCache(specCache)}
		if cfg.ContinueOnError {
			loadOpts = append(loadOpts, spec.WithContinueOnError(true))
		}
		loaded, err := spec.Load(ctx, cfg.Spec, loadOpts...)
		if err != nil {
			return fmt.Errorf("check: load spec: %w", err)
		}
		ns = loaded
	}

	errorCount := 0
	switch {
	case ns != nil:
		for _, side := range []struct {
			name string
			fs   *extract.CodeFeatureSet
		}{{"frontend", frontend}, {"backend", backend}} {
			if side.fs == nil {
				continue
			}
			result := checker.ValidateAgainstSpec(ctx, side.fs, ns, opts)
			errorCount += result.Summary.ErrorCount
			if err := emitValidation(side.name, result, cfg.JSON); err != nil {
				return err
			}
		}
	default:
		result := checker.Compare(ctx, backend, frontend, opts)
		errorCount += result.Summary.ErrorCount
		if err := emitDiff(result, cfg.JSON); err != nil {
			return err
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("%w (%d error(s))", ErrIncompatible, errorCount)
	}
	return nil
}

// specCache is the process-wide bounded cache shared by CLI invocations of
// the loader. The engine itself takes the cache by injection.
var specCache = spec.NewCache(spec.DefaultCacheSize)

func buildLogger(verbose bool) logging.Logger {
	if !verbose {
		return logging.Nop{}
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return logging.NewSlog(slog.New(handler))
}

func emitValidation(side string, result *check.ValidationResult, asJSON bool) error {
	if asJSON {
		return printJSON(result)
	}
	fmt.Fprintf(os.Stdout, "=== %s vs spec ===\n", side)
	renderReport(os.Stdout, result.IsValid, result.Issues, result.Summary, result.Recommendations)
	return nil
}

func emitDiff(result *check.DiffAnalysisResult, asJSON bool) error {
	if asJSON {
		return printJSON(result)
	}
	fmt.Fprintln(os.Stdout, "=== backend vs frontend ===")
	renderReport(os.Stdout, result.IsCompatible, result.Issues, result.Summary, result.Recommendations)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
