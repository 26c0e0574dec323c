// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/imu_telemetry/internal/telemetry"
)

const wsWriteWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// stateReader is the read side of a telemetry session.
type stateReader interface {
	Snapshot() telemetry.Snapshot
	Summary() telemetry.Summary
}

// newWebHandler serves the session state:
//
//	GET /api/state        full snapshot, trajectory included
//	GET /api/orientation  yaw/pitch/roll in degrees
//	GET /ws/state         summary pushed every streamInterval
func newWebHandler(state stateReader, streamInterval time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		snap := state.Snapshot()
		if !snap.State.HasTimestamp {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, snap)
	})

	mux.HandleFunc("/api/orientation", func(w http.ResponseWriter, r *http.Request) {
		sum := state.Summary()
		if !sum.HasTimestamp {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, sum.Euler)
	})

	mux.HandleFunc("/ws/state", func(w http.ResponseWriter, r *http.Request) {
		streamState(w, r, state, streamInterval)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// streamState pushes one summary right away and then one per tick until
// the client goes away or a write fails.
func streamState(w http.ResponseWriter, r *http.Request, state stateReader, interval time.Duration) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// clients never send anything; reading only surfaces the close frame
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(state.Summary()); err != nil {
			log.Debugf("web: websocket write error: %v", err)
			return
		}

		select {
		case <-gone:
			return
		case <-ticker.C:
		}
	}
}
