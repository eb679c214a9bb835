package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/akhanna222/email2kg/internal/layout"
	"github.com/akhanna222/email2kg/internal/model"
)

var (
	templatesType       string
	templatesActiveOnly bool
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage extraction templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		dt, err := parseTypeFlag()
		if err != nil {
			return err
		}
		templates, err := e.Templates.List(ctx, dt, templatesActiveOnly)
		if err != nil {
			return err
		}

		fmt.Printf("%-36s  %-32s  %-15s  %5s  %5s  %6s  %s\n",
			"ID", "NAME", "TYPE", "USES", "HITS", "CONF", "ACTIVE")
		for _, t := range templates {
			fmt.Printf("%-36s  %-32s  %-15s  %5d  %5d  %.2f  %v\n",
				t.ID, truncateName(t.Name, 32), t.DocumentType,
				t.UsageCount, t.SuccessCount, t.ConfidenceScore, t.IsActive)
		}
		return nil
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one template as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		t, err := e.Templates.Get(ctx, args[0])
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(templateToSpec(t))
		if err != nil {
			return eris.Wrap(err, "marshal template")
		}
		fmt.Print(string(out))
		return nil
	},
}

var templatesImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import an operator-authored template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		t, err := loadTemplateSpec(args[0])
		if err != nil {
			return err
		}
		if err := e.Templates.Import(ctx, t); err != nil {
			return err
		}
		fmt.Printf("imported template %s (%s)\n", t.ID, t.Name)
		return nil
	},
}

var templatesDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Deactivate a template (kept for audit, excluded from matching)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()
		return e.Templates.Deactivate(ctx, args[0])
	},
}

var templatesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a template permanently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()
		return e.Templates.Delete(ctx, args[0])
	},
}

func init() {
	templatesCmd.PersistentFlags().StringVar(&templatesType, "type", "", "filter by document type (e.g. invoice)")
	templatesListCmd.Flags().BoolVar(&templatesActiveOnly, "active", false, "active templates only")
	templatesCmd.AddCommand(templatesListCmd, templatesShowCmd, templatesImportCmd, templatesDeactivateCmd, templatesDeleteCmd)
	rootCmd.AddCommand(templatesCmd)
}

func parseTypeFlag() (model.DocumentType, error) {
	if templatesType == "" {
		return "", nil
	}
	return parseKnownType(templatesType)
}

// parseKnownType rejects inputs that only map to "other" by fallback.
func parseKnownType(s string) (model.DocumentType, error) {
	dt := model.ParseDocumentType(s)
	if string(dt) != strings.ToLower(strings.TrimSpace(s)) {
		return "", eris.Errorf("unknown document type %q", s)
	}
	return dt, nil
}

func truncateName(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// templateSpec is the YAML shape for authored and exported templates.
type templateSpec struct {
	Name          string                `yaml:"name"`
	DocumentType  string                `yaml:"document_type"`
	Fields        []model.TemplateField `yaml:"fields"`
	Keywords      []string              `yaml:"keywords,omitempty"`
	VendorPattern string                `yaml:"vendor_pattern,omitempty"`
	SampleText    string                `yaml:"sample_text,omitempty"`
}

func templateToSpec(t *model.Template) templateSpec {
	return templateSpec{
		Name:          t.Name,
		DocumentType:  string(t.DocumentType),
		Fields:        t.Fields,
		Keywords:      t.Keywords,
		VendorPattern: t.VendorPattern,
	}
}

// loadTemplateSpec reads a YAML template definition. When sample_text is
// given, the layout signature is computed from it so the template can win
// the layout sub-score on matching documents.
func loadTemplateSpec(path string) (*model.Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}

	var spec templateSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, eris.Wrap(err, "parse template yaml")
	}

	dt, err := parseKnownType(spec.DocumentType)
	if err != nil {
		return nil, err
	}
	if spec.Name == "" {
		return nil, eris.New("template name is required")
	}
	if len(spec.Fields) == 0 {
		return nil, eris.New("template must define at least one field")
	}

	now := time.Now()
	t := &model.Template{
		ID:            uuid.NewString(),
		Name:          spec.Name,
		DocumentType:  dt,
		Fields:        spec.Fields,
		Keywords:      spec.Keywords,
		VendorPattern: spec.VendorPattern,
		IsActive:      true,
		CreatedAt:     now,
		LastUpdated:   now,
	}
	if spec.SampleText != "" {
		t.LayoutSignature = layout.Signature(spec.SampleText)
	}
	return t, nil
}
