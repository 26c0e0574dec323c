// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// dialMQTT is replaced in tests.
var dialMQTT = connectMQTT

// connectMQTT connects to the broker. The client id gets a random suffix:
// the broker disconnects the older of two clients sharing an id.
func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID + "-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	log.Printf("connected to MQTT broker at %s", broker)
	return client, nil
}

// publisher is the outbound half of the broker, swapped out in tests.
type publisher interface {
	Publish(topic string, payload []byte) error
}

type mqttPublisher struct {
	client   mqtt.Client
	qos      byte
	retained bool
}

func (p mqttPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, p.retained, payload)
	token.Wait()
	return token.Error()
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
