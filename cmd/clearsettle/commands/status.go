package commands

import (
	"fmt"

	"github.com/clearsettle/clearsettle/internal/auditchain"
	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/clearsettle/clearsettle/internal/txn"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store contents and audit chain health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadOrDefaults(cfgFile)
			logger := quietLogger()

			st, err := openStore(cfg, logger)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			records, err := st.StreamAll()
			if err != nil {
				return err
			}

			var flagged, failed int
			byStatus := make(map[string]int)
			for _, r := range records {
				byStatus[r.Status()]++
				if r.Status() == "failed" {
					failed++
				}
				if f, _ := r[txn.FieldAnomalyDetected].(bool); f {
					flagged++
				}
			}

			fmt.Println()
			fmt.Println("  clearsettle status")
			fmt.Println("  ────────────────────────────────────────")
			fmt.Printf("  Config:        %s\n", cfgFile)
			fmt.Printf("  Store:         %s\n", cfg.Store.Path)
			fmt.Printf("  Settlements:   %d\n", len(records))
			fmt.Printf("  Failed:        %d\n", failed)
			fmt.Printf("  Flagged:       %d\n", flagged)

			if len(byStatus) > 0 {
				fmt.Println("  ────────────────────────────────────────")
				for _, status := range []string{"settled", "failed", "pending", "cancelled"} {
					if n, ok := byStatus[status]; ok {
						fmt.Printf("  %-14s %d\n", status+":", n)
						delete(byStatus, status)
					}
				}
				for status, n := range byStatus {
					fmt.Printf("  %-14s %d\n", status+":", n)
				}
			}

			entries, err := st.AuditChain()
			if err != nil {
				return err
			}

			fmt.Println("  ────────────────────────────────────────")
			fmt.Printf("  Audit entries: %d\n", len(entries))
			res := auditchain.Verify(entries)
			if res.OK {
				fmt.Printf("  Chain:         %s\n", color.GreenString("intact"))
			} else {
				fmt.Printf("  Chain:         %s (entry %d)\n", color.RedString("BROKEN"), res.Broken)
			}
			fmt.Println()
			return nil
		},
	}
}
