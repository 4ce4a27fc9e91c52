// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/blog-importer/internal/ledger"
	"github.com/pdiddy/blog-importer/pkg/types"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the import ledger",
	Long: `Ledger lists or exports the pages recorded by import: what was imported,
when, and where it was written, plus pages that redirected or failed.`,
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, status, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		recs, err := l.List(cmd.Context(), status)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STATUS\tDATE\tURL\tPATH")
		for _, r := range recs {
			detail := r.Path
			if r.Error != "" {
				detail = r.Error
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Status, r.Date, r.URL, detail)
		}
		return tw.Flush()
	},
}

var ledgerExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write recorded pages as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, status, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer l.Close()

		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			return l.ExportYAML(cmd.Context(), cmd.OutOrStdout(), status)
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating %s: %w", out, err)
		}
		if err := l.ExportYAML(cmd.Context(), f, status); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
}

func init() {
	for _, c := range []*cobra.Command{ledgerListCmd, ledgerExportCmd} {
		c.Flags().String("ledger", "", "import ledger database")
		c.Flags().String("status", "", "only records with this status: imported, redirect, or failed")
	}
	ledgerExportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")

	ledgerCmd.AddCommand(ledgerListCmd, ledgerExportCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func openLedger(cmd *cobra.Command) (*ledger.Ledger, types.ImportStatus, error) {
	cfg, err := loadConfig(viper.GetViper(), cmd)
	if err != nil {
		return nil, "", err
	}
	status, _ := cmd.Flags().GetString("status")
	switch s := types.ImportStatus(status); s {
	case "", types.ImportDone, types.ImportRedirect, types.ImportFailed:
	default:
		return nil, "", fmt.Errorf("unknown status %q", status)
	}
	if _, err := os.Stat(cfg.Import.LedgerPath); err != nil {
		return nil, "", fmt.Errorf("no ledger at %s: %w", cfg.Import.LedgerPath, err)
	}
	l, err := ledger.Open(cfg.Import.LedgerPath)
	if err != nil {
		return nil, "", err
	}
	return l, types.ImportStatus(status), nil
}
