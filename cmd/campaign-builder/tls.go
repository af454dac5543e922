package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lunaticom/campaign-builder/internal/certs"
)

var tlsCmd = &cobra.Command{
	Use:   "tls",
	Short: "API TLS certificate management",
}

var tlsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the API certificate status",
	Long:  `Show the manual certificate or the cached ACME certificates without contacting the CA.`,
	RunE:  runTLSStatus,
}

func init() {
	tlsCmd.AddCommand(tlsStatusCmd)
	rootCmd.AddCommand(tlsCmd)
}

func runTLSStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	now := time.Now()
	t := cfg.API.TLS

	if !t.Enabled() {
		fmt.Fprintln(out, "TLS is not configured")
		return nil
	}

	if !t.ACME.Enabled {
		info, err := certs.ReadInfo(t.CertFile)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "TLS Certificate (manual):")
		fmt.Fprintf(out, "  File: %s\n", t.CertFile)
		fmt.Fprintf(out, "  Subject: %s\n", info.Subject)
		fmt.Fprintf(out, "  Issuer: %s\n", info.Issuer)
		fmt.Fprintf(out, "  Valid until: %s\n", info.NotAfter.Format(time.RFC3339))
		fmt.Fprintf(out, "  Days left: %d\n", info.DaysLeft(now))
		return nil
	}

	manager := certs.NewManager(certs.ACMEConfig{
		Email:    t.ACME.Email,
		Domains:  t.ACME.Domains,
		CacheDir: t.ACME.CacheDir,
	})
	cached, err := manager.Cached(cmd.Context())
	if err != nil {
		return err
	}

	if len(cached) == 0 {
		fmt.Fprintln(out, "ACME certificates not found in cache.")
		fmt.Fprintln(out, "They are obtained on the first HTTPS request after 'campaign-builder serve'.")
		return nil
	}

	fmt.Fprintln(out, "ACME Certificates:")
	for _, info := range cached {
		status := "OK"
		if info.NeedsRenewal(now) {
			status = "RENEWAL NEEDED"
		}
		fmt.Fprintf(out, "  %s:\n", info.Domain)
		fmt.Fprintf(out, "    Valid until: %s\n", info.NotAfter.Format(time.RFC3339))
		fmt.Fprintf(out, "    Days left: %d\n", info.DaysLeft(now))
		fmt.Fprintf(out, "    Status: %s\n", status)
	}

	return nil
}
