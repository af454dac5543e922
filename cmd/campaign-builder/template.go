package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lunaticom/campaign-builder/internal/campaign"
	"github.com/lunaticom/campaign-builder/internal/config"
	"github.com/lunaticom/campaign-builder/internal/template"
)

var (
	templateType        string
	templateDescription string
	templateHTMLFile    string
	templateOutputDir   string
	templateSeedDir     string
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Template management commands",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored templates",
	RunE:  runTemplateList,
}

var templateShowCmd = &cobra.Command{
	Use:   "show <type>",
	Short: "Show template details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateShow,
}

var templateImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a template from an HTML file",
	Long:  `Import an HTML file as the template of a campaign type, replacing any existing one.`,
	RunE:  runTemplateImport,
}

var templateExportCmd = &cobra.Command{
	Use:   "export <type>",
	Short: "Export a template to <output>/<type>.html",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateExport,
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete <type>",
	Short: "Delete a template",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateDelete,
}

var templateSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import every <type>.html found in a directory",
	RunE:  runTemplateSeed,
}

func init() {
	templateImportCmd.Flags().StringVar(&templateType, "type", "", "Campaign type (required)")
	templateImportCmd.Flags().StringVar(&templateHTMLFile, "html", "", "HTML template file (required)")
	templateImportCmd.Flags().StringVar(&templateDescription, "description", "", "Template description")
	templateImportCmd.MarkFlagRequired("type")
	templateImportCmd.MarkFlagRequired("html")

	templateExportCmd.Flags().StringVar(&templateOutputDir, "output", "./", "Output directory")

	templateSeedCmd.Flags().StringVar(&templateSeedDir, "dir", "templates", "Directory of <type>.html files")

	templateCmd.AddCommand(
		templateListCmd,
		templateShowCmd,
		templateImportCmd,
		templateExportCmd,
		templateDeleteCmd,
		templateSeedCmd,
	)
	rootCmd.AddCommand(templateCmd)
}

// getTemplateStorage opens the bolt template store named by the config
func getTemplateStorage() (*template.BoltStore, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Templates.Source != config.TemplateSourceBolt {
		return nil, nil, fmt.Errorf("template management needs templates.source %q, config uses %q",
			config.TemplateSourceBolt, cfg.Templates.Source)
	}

	store, err := template.OpenBoltStore(cfg.Templates.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open template storage: %w", err)
	}

	cleanup := func() {
		store.Close()
	}
	return store, cleanup, nil
}

// findTemplate resolves a type argument to its stored template
func findTemplate(cmd *cobra.Command, store *template.BoltStore, arg string) (*template.Template, error) {
	tt, err := campaign.ParseTemplateType(arg)
	if err != nil {
		return nil, err
	}

	tmpl, err := store.GetByName(cmd.Context(), tt.Key())
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if tmpl == nil {
		return nil, fmt.Errorf("template not found: %s", tt.Key())
	}
	return tmpl, nil
}

func runTemplateList(cmd *cobra.Command, args []string) error {
	store, cleanup, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	templates, err := store.List(cmd.Context(), template.ListFilter{})
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(templates) == 0 {
		fmt.Fprintln(out, "No templates found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tID\tVERSION\tPLACEHOLDERS\tUPDATED")
	for _, tmpl := range templates {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			strings.ToUpper(tmpl.Name),
			tmpl.ID[:8],
			tmpl.Version,
			len(tmpl.Placeholders),
			tmpl.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal: %d templates\n", len(templates))
	return nil
}

func runTemplateShow(cmd *cobra.Command, args []string) error {
	store, cleanup, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	tmpl, err := findTemplate(cmd, store, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:           %s\n", tmpl.ID)
	fmt.Fprintf(out, "Type:         %s\n", strings.ToUpper(tmpl.Name))
	fmt.Fprintf(out, "Description:  %s\n", tmpl.Description)
	fmt.Fprintf(out, "Version:      %d\n", tmpl.Version)
	fmt.Fprintf(out, "Created:      %s\n", tmpl.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Updated:      %s\n", tmpl.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Placeholders: %s\n", strings.Join(tmpl.Placeholders, ", "))

	fmt.Fprintf(out, "\nHTML Template:\n")
	lines := strings.Split(tmpl.HTML, "\n")
	if len(lines) > 20 {
		for _, line := range lines[:20] {
			fmt.Fprintf(out, "  %s\n", line)
		}
		fmt.Fprintf(out, "  ... (%d more lines)\n", len(lines)-20)
	} else {
		for _, line := range lines {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}

	return nil
}

func runTemplateImport(cmd *cobra.Command, args []string) error {
	tt, err := campaign.ParseTemplateType(templateType)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(templateHTMLFile)
	if err != nil {
		return fmt.Errorf("failed to read HTML file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return fmt.Errorf("HTML file %s is empty", templateHTMLFile)
	}

	store, cleanup, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	tmpl := &template.Template{
		Name:        tt.Key(),
		Description: templateDescription,
		HTML:        string(data),
	}
	if err := store.Put(cmd.Context(), tmpl); err != nil {
		return fmt.Errorf("failed to store template: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Template imported successfully\n")
	fmt.Fprintf(out, "  Type:         %s\n", tt)
	fmt.Fprintf(out, "  Version:      %d\n", tmpl.Version)
	fmt.Fprintf(out, "  Placeholders: %s\n", strings.Join(tmpl.Placeholders, ", "))
	return nil
}

func runTemplateExport(cmd *cobra.Command, args []string) error {
	store, cleanup, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	tmpl, err := findTemplate(cmd, store, args[0])
	if err != nil {
		return err
	}

	if err := os.MkdirAll(templateOutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(templateOutputDir, tmpl.Name+".html")
	if err := os.WriteFile(path, []byte(tmpl.HTML), 0644); err != nil {
		return fmt.Errorf("failed to write HTML file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Template exported to %s\n", path)
	return nil
}

func runTemplateDelete(cmd *cobra.Command, args []string) error {
	store, cleanup, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	tmpl, err := findTemplate(cmd, store, args[0])
	if err != nil {
		return err
	}

	if err := store.DeleteByName(cmd.Context(), tmpl.Name); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Template deleted: %s\n", strings.ToUpper(tmpl.Name))
	return nil
}

func runTemplateSeed(cmd *cobra.Command, args []string) error {
	store, cleanup, err := getTemplateStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	src := template.NewDirStore(templateSeedDir)
	out := cmd.OutOrStdout()
	imported := 0

	for _, tt := range campaign.Types() {
		tmpl, err := src.Load(cmd.Context(), tt.Key())
		if errors.Is(err, template.ErrNotFound) {
			fmt.Fprintf(out, "  %-8s skipped (no %s.html)\n", tt, tt.Key())
			continue
		}
		if err != nil {
			return err
		}

		if err := store.Put(cmd.Context(), &template.Template{Name: tmpl.Name, HTML: tmpl.HTML}); err != nil {
			return fmt.Errorf("failed to store %s: %w", tt, err)
		}
		fmt.Fprintf(out, "  %-8s imported\n", tt)
		imported++
	}

	fmt.Fprintf(out, "\nSeeded %d templates from %s\n", imported, templateSeedDir)
	return nil
}
