package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/imu_telemetry/internal/app"
)

func main() {
	cmd := &cobra.Command{
		Use:   "replay <recording.csv>",
		Short: "run a recorded CSV through a fresh session and print the final state",
		Long: `replay reads a CSV written by telemetry (RECORD_PATH), feeds the samples
through a session in order and prints the final orientation, velocity,
position and counters. Estimator settings come from the config file.`,
		Example:      `  replay --config=telemetry.conf walk.csv`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.InitConfig(cmd); err != nil {
				return err
			}
			return app.RunReplay(args[0], cmd.OutOrStdout())
		},
	}
	app.ConfigFlags(cmd)

	if err := cmd.Execute(); err != nil {
		log.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}
