package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/clearsettle/clearsettle/internal/store"
	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var txnID, since string
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query the audit log",
		Example: `  clearsettle logs
  clearsettle logs --txn TXN123
  clearsettle logs --since 24h
  clearsettle logs --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadOrDefaults(cfgFile)
			logger := quietLogger()

			st, err := openStore(cfg, logger)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			var sinceTime string
			if since != "" {
				dur, err := time.ParseDuration(since)
				if err != nil {
					return fmt.Errorf("invalid duration %q: %w", since, err)
				}
				sinceTime = time.Now().Add(-dur).UTC().Format(time.RFC3339)
			}

			entries, err := st.QueryAudit(store.AuditQuery{
				TransactionID: txnID,
				Since:         sinceTime,
				Limit:         limit,
			})
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No audit entries found.")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "TIME\tTRANSACTION\tACTION\tACTOR\tHASH\n") //nolint:errcheck // CLI output
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.8s\n", //nolint:errcheck // CLI output
					e.Timestamp, e.TransactionID, e.Action, e.Actor, e.Hash)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&txnID, "txn", "", "filter by transaction ID")
	cmd.Flags().StringVar(&since, "since", "", "show entries since duration (e.g. 1h, 30m)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")
	return cmd
}
