// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/imu_telemetry/internal/orientation"
)

// Sample is one immutable IMU measurement as pushed by the device bridge.
// Fields missing from a JSON payload decode as 0.
type Sample struct {
	Timestamp uint64 `json:"timestamp"` // device clock, microseconds

	Qw float64 `json:"qw"` // orientation quaternion
	Qx float64 `json:"qx"`
	Qy float64 `json:"qy"`
	Qz float64 `json:"qz"`

	Ax float64 `json:"ax"` // accel, sensor frame, m/s²
	Ay float64 `json:"ay"`
	Az float64 `json:"az"`

	Gx float64 `json:"gx"` // gyro, sensor frame, rad/s
	Gy float64 `json:"gy"`
	Gz float64 `json:"gz"`
}

// Finite reports whether every measurement is a finite number.
func (s Sample) Finite() bool {
	for _, v := range []float64{s.Qw, s.Qx, s.Qy, s.Qz, s.Ax, s.Ay, s.Az, s.Gx, s.Gy, s.Gz} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s Sample) Quaternion() orientation.Quaternion {
	return orientation.Quaternion{W: s.Qw, X: s.Qx, Y: s.Qy, Z: s.Qz}
}

func (s Sample) Accel() r3.Vec {
	return r3.Vec{X: s.Ax, Y: s.Ay, Z: s.Az}
}

func (s Sample) Gyro() r3.Vec {
	return r3.Vec{X: s.Gx, Y: s.Gy, Z: s.Gz}
}

// Source is anything that can provide samples over time: the mock
// generator, a serial bridge, a replayed recording.
type Source interface {
	Next() (Sample, error)
}
