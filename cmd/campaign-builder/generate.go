package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lunaticom/campaign-builder/internal/campaign"
	"github.com/lunaticom/campaign-builder/internal/config"
	"github.com/lunaticom/campaign-builder/internal/document"
	"github.com/lunaticom/campaign-builder/internal/template"
)

var (
	generateInput  string
	generateOutput string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render campaign documents offline",
	Long:  `Render a campaign record (the JSON body the API accepts) to files without running the server.`,
}

var generateHTMLCmd = &cobra.Command{
	Use:   "html",
	Short: "Render the HTML email",
	RunE:  runGenerateHTML,
}

var generateBriefCmd = &cobra.Command{
	Use:   "brief",
	Short: "Render the plain-text brief",
	RunE:  runGenerateBrief,
}

func init() {
	for _, c := range []*cobra.Command{generateHTMLCmd, generateBriefCmd} {
		c.Flags().StringVar(&generateInput, "input", "", "Campaign record JSON file (required)")
		c.Flags().StringVar(&generateOutput, "output", ".", "Output directory")
		c.MarkFlagRequired("input")
	}

	generateCmd.AddCommand(generateHTMLCmd, generateBriefCmd)
	rootCmd.AddCommand(generateCmd)
}

// readRecord loads and normalizes a campaign payload file
func readRecord(path string) (campaign.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return campaign.Record{}, fmt.Errorf("failed to read input: %w", err)
	}

	var p campaign.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return campaign.Record{}, fmt.Errorf("invalid campaign JSON: %w", err)
	}
	return p.Record()
}

// newGenerator builds the document generator the server would use
func newGenerator(cfg *config.Config) (*document.Generator, func(), error) {
	opts := []document.Option{
		document.WithLayout(cfg.Output.BriefLayout),
		document.WithFilenamePolicy(cfg.Output.FilenamePolicy),
	}

	if cfg.Templates.Source == config.TemplateSourceDir {
		return document.NewGenerator(template.NewDirStore(cfg.Templates.Dir), opts...), func() {}, nil
	}

	store, err := template.OpenBoltStore(cfg.Templates.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open template storage: %w", err)
	}
	return document.NewGenerator(store, opts...), func() { store.Close() }, nil
}

// writeDocument saves doc under dir and returns its path
func writeDocument(dir string, doc *document.Document) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, doc.Filename)
	if err := os.WriteFile(path, []byte(doc.Body), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", doc.Filename, err)
	}
	return path, nil
}

func runGenerateHTML(cmd *cobra.Command, args []string) error {
	rec, err := readRecord(generateInput)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	gen, cleanup, err := newGenerator(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	doc, err := gen.HTML(cmd.Context(), rec)
	if err != nil {
		return err
	}

	path, err := writeDocument(generateOutput, doc)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "HTML written to %s\n", path)
	return nil
}

func runGenerateBrief(cmd *cobra.Command, args []string) error {
	rec, err := readRecord(generateInput)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	gen, cleanup, err := newGenerator(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	path, err := writeDocument(generateOutput, gen.Brief(rec))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Brief written to %s\n", path)
	return nil
}
