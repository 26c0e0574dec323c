// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"math"
	"time"
)

const (
	mockGravity   = 9.81
	mockPhase     = 2 * time.Second // length of each still / moving phase
	mockYawRate   = 30.0            // deg/s while moving
	mockSurgeAmpl = 0.5             // m/s², forward push while moving
)

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a source that alternates between a still phase
// and a phase of slow yaw plus a forward push, so both ZUPT and
// integration paths are exercised without hardware.
func NewMockSource() Source {
	return newMockSource(time.Now)
}

func newMockSource(now func() time.Time) *mockSource {
	return &mockSource{start: now(), now: now}
}

func (m *mockSource) Next() (Sample, error) {
	elapsed := m.now().Sub(m.start)
	cycle := elapsed % (2 * mockPhase)
	moving := cycle >= mockPhase

	// yaw accumulated over all completed moving phases plus the current one
	movingTime := time.Duration(elapsed/(2*mockPhase)) * mockPhase
	if moving {
		movingTime += cycle - mockPhase
	}
	yaw := mockYawRate * movingTime.Seconds() * math.Pi / 180
	half := yaw / 2

	s := Sample{
		Timestamp: uint64(elapsed.Microseconds()),
		Qw:        math.Cos(half),
		Qz:        math.Sin(half),
		Az:        mockGravity,
	}
	if moving {
		t := (cycle - mockPhase).Seconds()
		s.Ax = mockSurgeAmpl * math.Sin(2*math.Pi*t/mockPhase.Seconds())
		s.Gz = mockYawRate * math.Pi / 180
	}
	return s, nil
}
