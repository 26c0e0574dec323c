// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/imu_telemetry/internal/config"
	"github.com/relabs-tech/imu_telemetry/internal/telemetry"
)

// RunConsoleMQTT prints every state summary published on TOPIC_STATE.
func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := dialMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	token := client.Subscribe(cfg.TopicState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var sum telemetry.Summary
		if err := json.Unmarshal(msg.Payload(), &sum); err != nil {
			log.Printf("console: state unmarshal error: %v", err)
			return
		}
		fmt.Println(formatSummary(sum))
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicState)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	return nil
}

// formatSummary renders a summary as one console line.
func formatSummary(s telemetry.Summary) string {
	zupt := "MOVE"
	if s.Stationary {
		zupt = "ZUPT"
	}
	return fmt.Sprintf(
		"[%s] ts=%d  ROLL=%7.2f PITCH=%7.2f YAW=%7.2f  v=(%6.3f %6.3f %6.3f) m/s  p=(%7.3f %7.3f %7.3f) m  n=%d dropped=%d",
		zupt, s.LastTimestamp,
		s.Euler.Roll, s.Euler.Pitch, s.Euler.Yaw,
		s.Velocity.X, s.Velocity.Y, s.Velocity.Z,
		s.Position.X, s.Position.Y, s.Position.Z,
		s.Counters.Integrated, s.Queue.Dropped,
	)
}
