package commands

import (
	"fmt"

	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/clearsettle/clearsettle/internal/pipeline"
	"github.com/spf13/cobra"
)

func newChainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chain",
		Short: "Extend the hash-chained audit log from the current settlements",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadOrDefaults(cfgFile)
			logger := newLogger(cfg)

			st, err := openStore(cfg, logger)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			runner := pipeline.NewRunner(cfg, st, logger)
			n, err := runner.Chain()
			if err != nil {
				return err
			}

			fmt.Printf("Appended %d audit entries\n", n)
			return nil
		},
	}
}
