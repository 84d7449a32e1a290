package commands

import (
	"fmt"

	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/clearsettle/clearsettle/internal/pipeline"
	"github.com/spf13/cobra"
)

func newPipelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline <transactions.json>",
		Short: "Run the full monitoring pipeline on a transactions file",
		Long: `Runs every stage in order: upload, isolation forest detection,
autoencoder detection, repair recommendations, audit chain. The first
failing stage aborts the run; an unavailable autoencoder model only
skips that detector.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadOrDefaults(cfgFile)
			logger := newLogger(cfg)

			st, err := openStore(cfg, logger)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			runner := pipeline.NewRunner(cfg, st, logger)
			if err := runner.Run(args[0]); err != nil {
				return err
			}

			fmt.Println("Pipeline completed")
			return nil
		},
	}
}
