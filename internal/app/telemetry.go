// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/imu_telemetry/internal/config"
	"github.com/relabs-tech/imu_telemetry/internal/imu"
	"github.com/relabs-tech/imu_telemetry/internal/recorder"
	"github.com/relabs-tech/imu_telemetry/internal/telemetry"
)

// RunTelemetry hosts a session: samples arrive on TOPIC_SAMPLES, a timer
// drains them into the estimator, and the state goes out on TOPIC_STATE,
// over HTTP and over a websocket. With RECORD_PATH set, every received
// sample is written there as CSV on shutdown.
func RunTelemetry() error {
	log.Println("starting imu-telemetry session host")

	cfg := config.Get()

	var (
		rec  *recorder.Log
		sink telemetry.Sink
	)
	if cfg.RecordPath != "" {
		rec = recorder.NewLog(cfg.TimeScale)
		sink = rec
	}

	session := telemetry.New(cfg.Session(sink))
	log.Printf("telemetry: session %s, queue capacity %d (%s)",
		session.ID(), cfg.QueueCapacity, cfg.QueueOverflowPolicy)

	client, err := dialMQTT(cfg.MQTTBroker, cfg.MQTTClientIDTelemetry)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	// paho delivers messages in order from a single goroutine, which makes
	// it the session's only producer
	token := client.Subscribe(cfg.TopicSamples, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handleSamplePayload(session, msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("telemetry: subscribed to %s", cfg.TopicSamples)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler: newWebHandler(session, millis(cfg.StreamInterval)),
	}
	go func() {
		log.Printf("web server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("web server: %v", err)
			stop()
		}
	}()

	runDrainLoop(ctx, session, millis(cfg.DrainInterval), mqttPublisher{client: client, retained: true}, cfg.TopicState)

	log.Println("telemetry: shutting down")
	client.Unsubscribe(cfg.TopicSamples).Wait()
	session.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("web server shutdown: %v", err)
	}

	sum := session.Summary()
	log.Printf("telemetry: final %s", formatSummary(sum))

	if rec != nil {
		if err := rec.SaveCSV(cfg.RecordPath); err != nil {
			return err
		}
		log.Printf("telemetry: saved %d samples to %s", rec.Len(), cfg.RecordPath)
	}
	return nil
}

// handleSamplePayload decodes one MQTT payload (JSON or a CSV line) and
// publishes it to the session.
func handleSamplePayload(session *telemetry.Session, payload []byte) {
	s, err := imu.ParseLine(string(payload))
	if err != nil {
		log.Debugf("telemetry: dropping payload: %v", err)
		return
	}
	session.Publish(s)
}

// runDrainLoop drains the session every interval until ctx is done.
func runDrainLoop(ctx context.Context, session *telemetry.Session, interval time.Duration, pub publisher, topic string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			drainOnce(session, pub, topic)
		}
	}
}

// drainOnce integrates whatever is queued and, if anything was, publishes
// the resulting summary.
func drainOnce(session *telemetry.Session, pub publisher, topic string) int {
	n := session.DrainAndIntegrate()
	if n == 0 {
		return 0
	}

	payload, err := json.Marshal(session.Summary())
	if err != nil {
		log.Warnf("telemetry: json marshal error: %v", err)
		return n
	}
	if err := pub.Publish(topic, payload); err != nil {
		log.Warnf("telemetry: MQTT publish error (%s): %v", topic, err)
	}
	return n
}
