package commands

import (
	"fmt"

	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/clearsettle/clearsettle/internal/pipeline"
	"github.com/spf13/cobra"
)

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <transactions.json>",
		Short: "Upload settlement transactions into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadOrDefaults(cfgFile)
			logger := newLogger(cfg)

			st, err := openStore(cfg, logger)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			runner := pipeline.NewRunner(cfg, st, logger)
			n, err := runner.Upload(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Uploaded %d settlement transactions\n", n)
			return nil
		},
	}
}
