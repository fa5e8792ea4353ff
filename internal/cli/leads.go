package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vkuzmenko/dexleads/internal/dedup"
)

var leadsCount int

// leadsCmd represents the leads command
var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Show recently finalized pairs from the ledger",
	Long: `Leads prints the most recent entries of the dedup ledger: which pairs
were notified, which were skipped, and why.

Example:
  dexleads leads
  dexleads leads -n 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if _, err := os.Stat(cfg.Store.Path); os.IsNotExist(err) {
			fmt.Printf("No ledger yet at %s\n", cfg.Store.Path)
			return nil
		}

		store, err := dedup.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer func() { _ = store.Close() }()

		entries := store.Recent(leadsCount)
		if len(entries) == 0 {
			fmt.Println("Ledger is empty")
			return nil
		}

		fmt.Printf("%-12s  %-28s  %-16s  %s\n", "WHEN", "OUTCOME", "SYMBOL", "PAIR")
		for _, e := range entries {
			symbol := "-"
			if e.Lead != nil {
				symbol = e.Lead.TokenSymbol
			}
			fmt.Printf("%-12s  %-28s  %-16s  %s\n",
				e.LastUpdatedAt.Format("Jan 02 15:04"),
				truncate(string(e.Outcome), 28),
				truncate(symbol, 16),
				e.Key)
		}
		fmt.Printf("\n%d of %d finalized pairs\n", len(entries), store.Len())
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max-1]) + "…"
}

func init() {
	rootCmd.AddCommand(leadsCmd)

	leadsCmd.Flags().IntVarP(&leadsCount, "count", "n", 20, "number of entries to show")
}
