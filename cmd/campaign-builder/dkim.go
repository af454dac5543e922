package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lunaticom/campaign-builder/internal/dkim"
	"github.com/lunaticom/campaign-builder/internal/dnscheck"
)

// txtResolver is replaced in tests
var txtResolver dnscheck.Resolver

var (
	dkimDomain   string
	dkimSelector string
	dkimKeyFile  string
	dkimOutDir   string
)

var dkimCmd = &cobra.Command{
	Use:   "dkim",
	Short: "DKIM key management for proof mail",
}

var dkimGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new DKIM key pair",
	Long:  `Generate a new RSA 2048-bit DKIM key for proof mail and print the DNS record to publish.`,
	RunE:  runDKIMGenerate,
}

var dkimShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the DKIM DNS record of an existing key",
	RunE:  runDKIMShow,
}

var dkimVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the SPF, DKIM and DMARC records of the proof sender domain",
	Long: `Check the DNS records of the proof sender domain. With --key the published
DKIM public key must match the local signing key.`,
	RunE: runDKIMVerify,
}

func init() {
	dkimGenerateCmd.Flags().StringVar(&dkimDomain, "domain", "", "Domain name (required)")
	dkimGenerateCmd.Flags().StringVar(&dkimSelector, "selector", "campaign", "DKIM selector")
	dkimGenerateCmd.Flags().StringVar(&dkimOutDir, "out", ".", "Output directory for key file")
	dkimGenerateCmd.MarkFlagRequired("domain")

	dkimShowCmd.Flags().StringVar(&dkimKeyFile, "key", "", "Path to private key file (required)")
	dkimShowCmd.Flags().StringVar(&dkimDomain, "domain", "", "Domain name (required)")
	dkimShowCmd.Flags().StringVar(&dkimSelector, "selector", "campaign", "DKIM selector")
	dkimShowCmd.MarkFlagRequired("key")
	dkimShowCmd.MarkFlagRequired("domain")

	dkimVerifyCmd.Flags().StringVar(&dkimKeyFile, "key", "", "Path to private key file")
	dkimVerifyCmd.Flags().StringVar(&dkimDomain, "domain", "", "Domain name (required)")
	dkimVerifyCmd.Flags().StringVar(&dkimSelector, "selector", "campaign", "DKIM selector")
	dkimVerifyCmd.MarkFlagRequired("domain")

	dkimCmd.AddCommand(dkimGenerateCmd, dkimShowCmd, dkimVerifyCmd)
	rootCmd.AddCommand(dkimCmd)
}

func runDKIMGenerate(cmd *cobra.Command, args []string) error {
	key, err := dkim.GenerateKey(dkimDomain, dkimSelector)
	if err != nil {
		return err
	}

	keyPath := filepath.Join(dkimOutDir, fmt.Sprintf("%s.key", dkimDomain))
	if err := key.Save(keyPath); err != nil {
		return fmt.Errorf("failed to save private key: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "DKIM key generated successfully\n\n")
	fmt.Fprintf(out, "Private key saved to: %s\n\n", keyPath)
	return printDKIMRecord(cmd, key)
}

func runDKIMShow(cmd *cobra.Command, args []string) error {
	key, err := dkim.LoadKey(dkimKeyFile, dkimDomain, dkimSelector)
	if err != nil {
		return err
	}
	return printDKIMRecord(cmd, key)
}

func printDKIMRecord(cmd *cobra.Command, key *dkim.Key) error {
	value, err := key.RecordValue()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "DNS Record:\n")
	fmt.Fprintf(out, "  Name: %s\n", key.RecordName())
	fmt.Fprintf(out, "  Type: TXT\n")
	fmt.Fprintf(out, "  Value: %s\n", value)
	return nil
}

func runDKIMVerify(cmd *cobra.Command, args []string) error {
	var publicKey string
	if dkimKeyFile != "" {
		key, err := dkim.LoadKey(dkimKeyFile, dkimDomain, dkimSelector)
		if err != nil {
			return err
		}
		if publicKey, err = key.PublicKey(); err != nil {
			return err
		}
	}

	report, err := dnscheck.NewChecker(txtResolver).Check(cmd.Context(), dkimDomain, dkimSelector, publicKey)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "DNS check for %s:\n", report.Domain)
	for _, r := range report.Results {
		fmt.Fprintf(out, "  [%s] %s\n", r.Status, r.Type)
		if r.Message != "" {
			fmt.Fprintf(out, "      %s\n", r.Message)
		}
	}
	fmt.Fprintf(out, "\nOK: %d, Warnings: %d, Errors: %d, Not found: %d\n",
		report.Summary.OK, report.Summary.Warnings, report.Summary.Errors, report.Summary.NotFound)

	if report.Summary.Errors > 0 {
		return fmt.Errorf("%d DNS check(s) failed", report.Summary.Errors)
	}
	return nil
}
