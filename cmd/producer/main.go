package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/imu_telemetry/internal/app"
)

func main() {
	cmd := &cobra.Command{
		Use:   "producer",
		Short: "publish IMU samples from the mock or serial source to MQTT",
		Long: `producer reads samples from the source selected by SOURCE (mock or serial)
and publishes each one as JSON on TOPIC_SAMPLES.`,
		Example:      `  producer --config=telemetry.conf`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.InitConfig(cmd); err != nil {
				return err
			}
			return app.RunProducer()
		},
	}
	app.ConfigFlags(cmd)

	if err := cmd.Execute(); err != nil {
		log.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}
