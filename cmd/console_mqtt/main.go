package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/imu_telemetry/internal/app"
)

func main() {
	cmd := &cobra.Command{
		Use:          "console_mqtt",
		Short:        "print state summaries published on TOPIC_STATE",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Println("starting imu-telemetry console (MQTT subscriber)")
			if err := app.InitConfig(cmd); err != nil {
				return err
			}
			return app.RunConsoleMQTT()
		},
	}
	app.ConfigFlags(cmd)

	if err := cmd.Execute(); err != nil {
		log.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}
