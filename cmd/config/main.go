package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/imu_telemetry/internal/app"
	"github.com/relabs-tech/imu_telemetry/internal/config"
)

func main() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration as YAML",
		Long: `config loads the configuration file, applies TELEMETRY_* environment
overrides and defaults, validates the result and prints it.`,
		Example: `  config --config=telemetry.conf
  TELEMETRY_QUEUE_CAPACITY=1000 config`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.InitConfig(cmd); err != nil {
				return err
			}
			out, err := config.Get().Dump()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	app.ConfigFlags(cmd)

	if err := cmd.Execute(); err != nil {
		log.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}
