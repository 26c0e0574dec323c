// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/imu_telemetry/internal/config"
	"github.com/relabs-tech/imu_telemetry/internal/imu"
)

// RunProducer reads samples from the configured source and publishes each
// one as JSON on TOPIC_SAMPLES until interrupted.
func RunProducer() error {
	log.Println("starting imu-telemetry producer")

	cfg := config.Get()

	var (
		src      imu.Source
		closeSrc func() error
		tick     <-chan time.Time
	)
	switch cfg.Source {
	case "serial":
		ls, err := imu.NewSerialSource(cfg.SerialPort, cfg.SerialBaudRate)
		if err != nil {
			return err
		}
		src, closeSrc = ls, ls.Close
		log.Printf("producer: reading %s at %d baud", cfg.SerialPort, cfg.SerialBaudRate)
	default:
		src, closeSrc = imu.NewMockSource(), func() error { return nil }
		ticker := time.NewTicker(millis(cfg.SampleInterval))
		defer ticker.Stop()
		tick = ticker.C
		log.Printf("producer: using mock source every %d ms", cfg.SampleInterval)
	}

	client, err := dialMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		closeSrc()
		return err
	}
	defer client.Disconnect(250)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// a blocking serial read only returns once the port is closed
	go func() {
		<-ctx.Done()
		if err := closeSrc(); err != nil {
			log.Warnf("producer: close source: %v", err)
		}
	}()

	n, err := pumpSamples(ctx, src, tick, mqttPublisher{client: client}, cfg.TopicSamples)
	log.Printf("producer: published %d samples", n)
	return err
}

// pumpSamples moves samples from src to pub until ctx is done or the source
// is exhausted. With a nil tick it reads as fast as the source delivers.
func pumpSamples(ctx context.Context, src imu.Source, tick <-chan time.Time, pub publisher, topic string) (int, error) {
	published := 0
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return published, nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return published, nil
		}

		s, err := src.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return published, nil
			}
			return published, fmt.Errorf("producer: %w", err)
		}

		payload, err := json.Marshal(s)
		if err != nil {
			log.Warnf("producer: json marshal error: %v", err)
			continue
		}
		if err := pub.Publish(topic, payload); err != nil {
			log.Warnf("producer: MQTT publish error (%s): %v", topic, err)
			continue
		}
		published++
		log.Debugf("producer: published sample ts=%d", s.Timestamp)
	}
}
