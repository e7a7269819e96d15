package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/apilens/apilens/internal/spec"
)

// ConvertConfig captures the options for the convert command.
type ConvertConfig struct {
	InputPath  string
	OutputPath string
	Target     string
	Validate   bool
	Force      bool
}

var convertRunner = runConvert

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a Swagger 2.0 document to OpenAPI 3.x",
		Long: "Convert a Swagger 2.0 document to OpenAPI 3.x, preserving paths, " +
			"parameters, responses, and security schemes. Output format follows the --out extension.",
		Example: strings.TrimSpace(`  apilens convert --input swagger.yaml --out openapi.yaml
  apilens convert --input swagger.json --out openapi.json --target 3.0.3 --validate`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &ConvertConfig{}
			var err error
			if cfg.InputPath, err = cmd.Flags().GetString("input"); err != nil {
				return err
			}
			if cfg.OutputPath, err = cmd.Flags().GetString("out"); err != nil {
				return err
			}
			if cfg.Target, err = cmd.Flags().GetString("target"); err != nil {
				return err
			}
			if cfg.Validate, err = cmd.Flags().GetBool("validate"); err != nil {
				return err
			}
			if cfg.Force, err = cmd.Flags().GetBool("force"); err != nil {
				return err
			}
			return convertRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("input", "", "Path to the Swagger 2.0 document (YAML or JSON)")
	cmd.Flags().String("out", "", "Where to write the converted document")
	cmd.Flags().String("target", "3.0.3", "OpenAPI version to stamp on the output")
	cmd.Flags().Bool("validate", false, "Validate the converted document before writing")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runConvert(ctx context.Context, cfg *ConvertConfig) error {
	_ = ctx

	input := strings.TrimSpace(cfg.InputPath)
	if input == "" {
		return newUsageError("convert: --input is required")
	}
	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		return newUsageError("convert: --out is required")
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("convert: read input: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("convert: parse input: %w", err)
	}

	converted, err := spec.ConvertSwaggerToOpenAPI(doc, spec.ConvertOptions{
		TargetVersion:  strings.TrimSpace(cfg.Target),
		ValidateResult: cfg.Validate,
	})
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	var encoded []byte
	if strings.EqualFold(filepath.Ext(out), ".json") {
		encoded, err = json.MarshalIndent(converted, "", "  ")
	} else {
		encoded, err = yaml.Marshal(converted)
	}
	if err != nil {
		return fmt.Errorf("convert: encode output: %w", err)
	}

	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("convert: resolve output path: %w", err)
	}
	if st, err := os.Stat(absPath); err == nil && st.Mode().IsRegular() && !cfg.Force {
		return newUsageError(fmt.Sprintf("convert: %q already exists (use --force to overwrite)", absPath))
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return newUsageError(fmt.Sprintf("convert: cannot create parent directory: %v", err))
	}

	// Atomic write via temp + rename
	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("convert: cannot write temp file: %w", err)
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("convert: cannot place file at %s: %w", absPath, err)
	}
	fmt.Fprintf(os.Stdout, "Wrote converted document to %s\n", absPath)
	return nil
}
