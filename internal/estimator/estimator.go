// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package estimator implements strapdown dead reckoning with zero-velocity
// updates. Orientation comes straight from the sensor quaternion; specific
// force is rotated to the world frame, gravity is removed and the result is
// integrated twice with forward Euler. Velocity is forced to zero whenever
// the sensor looks stationary, which is the only drift correction.
package estimator

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/imu_telemetry/internal/imu"
	"github.com/relabs-tech/imu_telemetry/internal/orientation"
)

// ErrInvalidTimeDelta marks a sample whose dt is non-positive or above
// Config.DtMax. Orientation and timestamp still advance.
var ErrInvalidTimeDelta = errors.New("invalid time delta")

// ErrNonFiniteSample marks a sample carrying NaN or ±Inf. It is skipped
// without touching the state.
var ErrNonFiniteSample = errors.New("non-finite sample")

// Config holds the integration constants.
type Config struct {
	Gravity            float64 // m/s²
	AccelThreshold     float64 // ZUPT: max | |a| - g |, m/s²
	GyroThreshold      float64 // ZUPT: max |ω|, rad/s
	DtMax              float64 // seconds
	TimeScale          float64 // device clock ticks per second
	TrajectoryCapacity int
}

// DefaultConfig matches the Movella DOT stream: microsecond clock, 2000
// trajectory points.
func DefaultConfig() Config {
	return Config{
		Gravity:            9.81,
		AccelThreshold:     0.15,
		GyroThreshold:      0.05,
		DtMax:              0.1,
		TimeScale:          1e6,
		TrajectoryCapacity: 2000,
	}
}

// Counters tally what happened to every sample handed to Update.
type Counters struct {
	Samples           uint64 `json:"samples"`
	Integrated        uint64 `json:"integrated"`
	Stationary        uint64 `json:"stationary"`
	SkippedDegenerate uint64 `json:"skipped_degenerate"`
	SkippedTimeDelta  uint64 `json:"skipped_time_delta"`
	SkippedNonFinite  uint64 `json:"skipped_non_finite"`
}

// State is a copy of the estimator state. Trajectory is oldest first.
type State struct {
	Orientation   orientation.Quaternion `json:"orientation"`
	Velocity      r3.Vec                 `json:"velocity"`
	Position      r3.Vec                 `json:"position"`
	Trajectory    []r3.Vec               `json:"trajectory"`
	LastTimestamp uint64                 `json:"last_timestamp"`
	HasTimestamp  bool                   `json:"has_timestamp"`
	Stationary    bool                   `json:"stationary"`
	Counters      Counters               `json:"counters"`
}

// Estimator is not safe for concurrent use; the owner serializes Update
// and State.
type Estimator struct {
	cfg Config

	orientation   orientation.Quaternion
	velocity      r3.Vec
	position      r3.Vec
	trajectory    *ring
	lastTimestamp uint64
	hasTimestamp  bool
	stationary    bool
	counters      Counters
}

// New returns an estimator at rest at the origin with identity orientation.
// Zero-valued config fields fall back to DefaultConfig. A negative ZUPT
// threshold is kept and disables ZUPT; non-positive Gravity, DtMax,
// TimeScale and TrajectoryCapacity are replaced by their defaults.
func New(cfg Config) *Estimator {
	def := DefaultConfig()
	if cfg.Gravity <= 0 {
		cfg.Gravity = def.Gravity
	}
	if cfg.AccelThreshold == 0 {
		cfg.AccelThreshold = def.AccelThreshold
	}
	if cfg.GyroThreshold == 0 {
		cfg.GyroThreshold = def.GyroThreshold
	}
	if cfg.DtMax <= 0 {
		cfg.DtMax = def.DtMax
	}
	if cfg.TimeScale <= 0 {
		cfg.TimeScale = def.TimeScale
	}
	if cfg.TrajectoryCapacity <= 0 {
		cfg.TrajectoryCapacity = def.TrajectoryCapacity
	}

	return &Estimator{
		cfg:         cfg,
		orientation: orientation.Identity,
		trajectory:  newRing(cfg.TrajectoryCapacity),
	}
}

// Config returns the effective configuration.
func (e *Estimator) Config() Config { return e.cfg }

// Update applies one sample. The steps run in a fixed order: normalize,
// dt gate, rotate to world, ZUPT test, integrate, append trajectory, then
// commit orientation and timestamp.
//
// The returned errors are recoverable: ErrNonFiniteSample and
// ErrDegenerateQuaternion leave the state untouched, ErrInvalidTimeDelta
// only advances orientation and timestamp.
func (e *Estimator) Update(s imu.Sample) error {
	e.counters.Samples++

	if !s.Finite() {
		e.counters.SkippedNonFinite++
		return fmt.Errorf("sample %d: %w", s.Timestamp, ErrNonFiniteSample)
	}

	q, err := orientation.Normalize(s.Quaternion())
	if err != nil {
		e.counters.SkippedDegenerate++
		return fmt.Errorf("sample %d: %w", s.Timestamp, err)
	}

	if !e.hasTimestamp {
		e.commit(q, s.Timestamp)
		return nil
	}

	dt := float64(int64(s.Timestamp-e.lastTimestamp)) / e.cfg.TimeScale
	if dt <= 0 || dt > e.cfg.DtMax {
		e.counters.SkippedTimeDelta++
		e.commit(q, s.Timestamp)
		return fmt.Errorf("sample %d: dt=%.6fs: %w", s.Timestamp, dt, ErrInvalidTimeDelta)
	}

	accel := s.Accel()
	accelWorld := r3.Sub(orientation.RotationMatrix(q).MulVec(accel), r3.Vec{Z: e.cfg.Gravity})

	e.stationary = e.isStationary(accel, s.Gyro())
	if e.stationary {
		e.velocity = r3.Vec{}
		e.counters.Stationary++
	} else {
		e.velocity = r3.Add(e.velocity, r3.Scale(dt, accelWorld))
		e.position = r3.Add(e.position, r3.Scale(dt, e.velocity))
	}
	e.counters.Integrated++

	e.trajectory.push(e.position)
	e.commit(q, s.Timestamp)
	return nil
}

// isStationary is the ZUPT detector: specific force close to gravity and
// negligible angular rate, both at once.
func (e *Estimator) isStationary(accel, gyro r3.Vec) bool {
	return math.Abs(r3.Norm(accel)-e.cfg.Gravity) < e.cfg.AccelThreshold &&
		r3.Norm(gyro) < e.cfg.GyroThreshold
}

func (e *Estimator) commit(q orientation.Quaternion, ts uint64) {
	e.orientation = q
	e.lastTimestamp = ts
	e.hasTimestamp = true
}

// State returns a deep copy of the current state.
func (e *Estimator) State() State {
	st := e.Current()
	st.Trajectory = e.trajectory.points()
	return st
}

// Current is State without the trajectory copy.
func (e *Estimator) Current() State {
	return State{
		Orientation:   e.orientation,
		Velocity:      e.velocity,
		Position:      e.position,
		LastTimestamp: e.lastTimestamp,
		HasTimestamp:  e.hasTimestamp,
		Stationary:    e.stationary,
		Counters:      e.counters,
	}
}

// TrajectoryLen is the number of stored trajectory points.
func (e *Estimator) TrajectoryLen() int { return e.trajectory.len() }

// Reset returns the estimator to its initial state, keeping the config.
func (e *Estimator) Reset() {
	*e = *New(e.cfg)
}
