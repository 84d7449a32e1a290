package commands

import (
	"fmt"

	"github.com/clearsettle/clearsettle/internal/auditchain"
	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the integrity of the hash-chained audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadOrDefaults(cfgFile)
			logger := quietLogger()

			st, err := openStore(cfg, logger)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			entries, err := st.AuditChain()
			if err != nil {
				return err
			}

			res := auditchain.Verify(entries)
			if res.OK {
				color.Green("Audit chain intact: %d entries verified", res.Entries)
				return nil
			}

			color.Red("Audit chain BROKEN at entry %d of %d", res.Broken, res.Entries)
			fmt.Printf("  %s\n", res.Reason)
			return fmt.Errorf("audit chain verification failed")
		},
	}
}
