// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry ties the ingress queue to the dead-reckoning estimator.
// The acquisition side calls Publish; the consumer calls DrainAndIntegrate
// on its own timer and reads Snapshot or Summary.
package telemetry

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/imu_telemetry/internal/estimator"
	"github.com/relabs-tech/imu_telemetry/internal/imu"
	"github.com/relabs-tech/imu_telemetry/internal/orientation"
	"github.com/relabs-tech/imu_telemetry/internal/queue"
)

// Sink receives every published sample before it reaches the queue.
// It must not drop.
type Sink interface {
	Append(imu.Sample)
}

// Config wires a session.
type Config struct {
	Queue     queue.Config
	Estimator estimator.Config
	Sink      Sink // optional
}

// QueueStats describes the ingress queue at snapshot time.
type QueueStats struct {
	Length   int          `json:"length"`
	Capacity int          `json:"capacity"`
	Policy   queue.Policy `json:"policy"`
	Dropped  uint64       `json:"dropped"`
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	SessionID string           `json:"session_id"`
	State     estimator.State  `json:"state"`
	Euler     orientation.Pose `json:"euler"`
	Queue     QueueStats       `json:"queue"`
	Published uint64           `json:"published"`
}

// Summary is a Snapshot without the trajectory.
type Summary struct {
	SessionID     string                 `json:"session_id"`
	Orientation   orientation.Quaternion `json:"orientation"`
	Euler         orientation.Pose       `json:"euler"`
	Velocity      r3.Vec                 `json:"velocity"`
	Position      r3.Vec                 `json:"position"`
	Stationary    bool                   `json:"stationary"`
	LastTimestamp uint64                 `json:"last_timestamp"`
	HasTimestamp  bool                   `json:"has_timestamp"`
	TrajectoryLen int                    `json:"trajectory_len"`
	Counters      estimator.Counters     `json:"counters"`
	Queue         QueueStats             `json:"queue"`
}

// Session owns one queue and one estimator.
type Session struct {
	id    string
	queue *queue.Queue
	sink  Sink

	// drainMu serializes drains and lets Close wait for one in flight.
	drainMu sync.Mutex
	closed  atomic.Bool

	// mu guards est; it is held for a whole per-sample transition and for
	// the copy taken by Snapshot.
	mu  sync.Mutex
	est *estimator.Estimator

	published atomic.Uint64
}

// New creates a session with a fresh estimator and an empty queue.
func New(cfg Config) *Session {
	return &Session{
		id:    uuid.NewString(),
		queue: queue.New(cfg.Queue),
		sink:  cfg.Sink,
		est:   estimator.New(cfg.Estimator),
	}
}

// ID identifies this session in published state.
func (s *Session) ID() string { return s.id }

// Publish hands a sample from the acquisition side to the session. It never
// blocks; a sample rejected by a full queue is dropped silently. After
// Close it does nothing.
func (s *Session) Publish(sample imu.Sample) {
	if s.closed.Load() {
		return
	}
	s.published.Add(1)
	if s.sink != nil {
		s.sink.Append(sample)
	}
	s.queue.Put(sample)
}

// DrainAndIntegrate feeds every sample queued at call time to the estimator
// in arrival order and returns how many were processed. Work per call is
// bounded by the queue capacity.
func (s *Session) DrainAndIntegrate() int {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()
	if s.closed.Load() {
		return 0
	}

	n := s.queue.Len()
	processed := 0
	for ; processed < n; processed++ {
		sample, ok := s.queue.TryGet()
		if !ok {
			break
		}
		s.mu.Lock()
		err := s.est.Update(sample)
		s.mu.Unlock()
		if err != nil {
			log.Debugf("telemetry: %v", err)
		}
	}
	return processed
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	st := s.est.State()
	s.mu.Unlock()

	return Snapshot{
		SessionID: s.id,
		State:     st,
		Euler:     orientation.ToEuler(st.Orientation),
		Queue:     s.queueStats(),
		Published: s.published.Load(),
	}
}

// Summary is Snapshot without copying the trajectory.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	st := s.est.Current()
	n := s.est.TrajectoryLen()
	s.mu.Unlock()

	return Summary{
		SessionID:     s.id,
		Orientation:   st.Orientation,
		Euler:         orientation.ToEuler(st.Orientation),
		Velocity:      st.Velocity,
		Position:      st.Position,
		Stationary:    st.Stationary,
		LastTimestamp: st.LastTimestamp,
		HasTimestamp:  st.HasTimestamp,
		TrajectoryLen: n,
		Counters:      st.Counters,
		Queue:         s.queueStats(),
	}
}

// Euler returns the current orientation as yaw/pitch/roll degrees.
func (s *Session) Euler() orientation.Pose {
	s.mu.Lock()
	q := s.est.Current().Orientation
	s.mu.Unlock()
	return orientation.ToEuler(q)
}

func (s *Session) queueStats() QueueStats {
	return QueueStats{
		Length:   s.queue.Len(),
		Capacity: s.queue.Cap(),
		Policy:   s.queue.Policy(),
		Dropped:  s.queue.Dropped(),
	}
}

// Close waits for an in-flight drain to finish. Afterwards Publish and
// DrainAndIntegrate are no-ops; Snapshot keeps returning the final state.
func (s *Session) Close() {
	s.drainMu.Lock()
	s.closed.Store(true)
	s.drainMu.Unlock()
}
