package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/lunaticom/campaign-builder/internal/app"
	"github.com/lunaticom/campaign-builder/internal/config"
)

var (
	cfgFile   string
	envFile   string
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "campaign-builder",
	Short:             "Campaign Builder - email campaign generator",
	Long:              `Campaign Builder renders marketing email campaigns from stored templates, uploads header images and hands finished campaigns to the automation hook.`,
	PersistentPreRunE: loadEnvFile,
	SilenceUsage:      true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Start the Campaign Builder HTTP API and, when enabled, the metrics server.`,
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "campaign-builder version %s\n", version)
		if commit != "unknown" {
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
		}
		if buildTime != "unknown" {
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", buildTime)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file with IMGBB_API_KEY, ZAPIER_HOOK_URL, CAMPAIGN_API_KEY")

	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(serveCmd, configCmd, versionCmd)
}

// loadEnvFile loads --env-file, or ./.env when present
func loadEnvFile(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// loadConfig reads the config file, or the defaults without one. An env_file
// named in the config is loaded and the config re-read so it can fill credentials.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default()
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.EnvFile != "" && envFile == "" {
		if err := godotenv.Load(cfg.EnvFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", cfg.EnvFile, err)
		}
		return config.Load(cfgFile)
	}

	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	undo, _ := maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))
	defer undo()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	application, err := app.New(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	return application.Run(context.Background())
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration is valid\n")
	fmt.Fprintf(out, "  API:       %s\n", cfg.API.ListenAddr)
	switch cfg.Templates.Source {
	case config.TemplateSourceDir:
		fmt.Fprintf(out, "  Templates: dir %s\n", cfg.Templates.Dir)
	default:
		fmt.Fprintf(out, "  Templates: bolt %s\n", cfg.Templates.Path)
	}
	switch {
	case cfg.API.TLS.ACME.Enabled:
		fmt.Fprintf(out, "  TLS:       acme %v\n", cfg.API.TLS.ACME.Domains)
	case cfg.API.TLS.Enabled():
		fmt.Fprintf(out, "  TLS:       %s\n", cfg.API.TLS.CertFile)
	default:
		fmt.Fprintf(out, "  TLS:       disabled\n")
	}
	fmt.Fprintf(out, "  Filenames: %s\n", cfg.Output.FilenamePolicy)
	fmt.Fprintf(out, "  Brief:     %s\n", cfg.Output.BriefLayout)
	fmt.Fprintf(out, "  ImgBB:     %s\n", configured(cfg.ImgBB.APIKey != ""))
	fmt.Fprintf(out, "  Webhook:   %s\n", configured(cfg.Webhook.URL != ""))
	fmt.Fprintf(out, "  Proof:     %s\n", enabled(cfg.Proof.Enabled))
	fmt.Fprintf(out, "  Metrics:   %s\n", enabled(cfg.Metrics.Enabled))

	return nil
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func enabled(ok bool) string {
	if ok {
		return "enabled"
	}
	return "disabled"
}
