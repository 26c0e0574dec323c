package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/imu_telemetry/internal/app"
)

func main() {
	cmd := &cobra.Command{
		Use:   "telemetry",
		Short: "run a dead-reckoning session on the MQTT sample stream",
		Long: `telemetry subscribes to TOPIC_SAMPLES, integrates samples every DRAIN_INTERVAL
and publishes the state on TOPIC_STATE. The state is also served on
WEB_SERVER_PORT:
  GET /api/state        full snapshot including the trajectory
  GET /api/orientation  roll/pitch/yaw in degrees
  GET /ws/state         websocket stream of state summaries
If RECORD_PATH is set, all received samples are written there as CSV on exit.`,
		Example:      `  telemetry --config=telemetry.conf --debug`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.InitConfig(cmd); err != nil {
				return err
			}
			return app.RunTelemetry()
		},
	}
	app.ConfigFlags(cmd)

	if err := cmd.Execute(); err != nil {
		log.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}
