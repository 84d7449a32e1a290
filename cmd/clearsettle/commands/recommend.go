package commands

import (
	"fmt"

	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/clearsettle/clearsettle/internal/pipeline"
	"github.com/spf13/cobra"
)

func newRecommendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recommend",
		Short: "Assign repair recommendations to stored settlements",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadOrDefaults(cfgFile)
			logger := newLogger(cfg)

			st, err := openStore(cfg, logger)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			runner := pipeline.NewRunner(cfg, st, logger)
			n, err := runner.Recommend()
			if err != nil {
				return err
			}

			fmt.Printf("Recommendations written for %d settlements\n", n)
			return nil
		},
	}
}
