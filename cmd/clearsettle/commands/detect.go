package commands

import (
	"errors"
	"fmt"

	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/clearsettle/clearsettle/internal/detector"
	"github.com/clearsettle/clearsettle/internal/pipeline"
	"github.com/spf13/cobra"
)

func newDetectCmd() *cobra.Command {
	var forestOnly, autoencoderOnly bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run anomaly detection over stored settlements",
		Example: `  clearsettle detect
  clearsettle detect --forest-only
  clearsettle detect --autoencoder-only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if forestOnly && autoencoderOnly {
				return errors.New("--forest-only and --autoencoder-only are mutually exclusive")
			}

			cfg := config.LoadOrDefaults(cfgFile)
			logger := newLogger(cfg)

			st, err := openStore(cfg, logger)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			runner := pipeline.NewRunner(cfg, st, logger)

			if !autoencoderOnly {
				ids, err := runner.DetectForest()
				if err != nil {
					return err
				}
				fmt.Printf("Isolation forest flagged %d settlements\n", len(ids))
			}

			if !forestOnly {
				ids, err := runner.DetectAutoencoder()
				switch {
				case errors.Is(err, detector.ErrModelUnavailable):
					if autoencoderOnly {
						return err
					}
					fmt.Printf("Autoencoder skipped: %v\n", err)
				case err != nil:
					return err
				default:
					fmt.Printf("Autoencoder flagged %d settlements\n", len(ids))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&forestOnly, "forest-only", false, "run only the isolation forest detector")
	cmd.Flags().BoolVar(&autoencoderOnly, "autoencoder-only", false, "run only the autoencoder detector")
	return cmd
}
