// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package queue is the bounded hand-off between the acquisition producer
// and the telemetry consumer. Neither side ever blocks.
package queue

import (
	"fmt"
	"sync/atomic"

	"github.com/relabs-tech/imu_telemetry/internal/imu"
)

// Policy decides what happens to a sample published into a full queue.
type Policy int

const (
	// RejectNew silently discards the incoming sample.
	RejectNew Policy = iota
	// EvictOldest discards the oldest queued sample to make room.
	EvictOldest
)

func (p Policy) String() string {
	switch p {
	case RejectNew:
		return "reject_new"
	case EvictOldest:
		return "evict_oldest"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy maps a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "reject_new":
		return RejectNew, nil
	case "evict_oldest":
		return EvictOldest, nil
	}
	return 0, fmt.Errorf("unknown overflow policy %q (want reject_new or evict_oldest)", s)
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(text []byte) error {
	v, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Config sizes the queue and picks its overflow policy.
type Config struct {
	Capacity int
	Policy   Policy
}

// Queue is a bounded FIFO of samples, safe for one producer and one
// consumer running concurrently.
type Queue struct {
	ch      chan imu.Sample
	policy  Policy
	dropped atomic.Uint64
}

// New returns an empty queue. Capacity below 1 is raised to 1.
func New(cfg Config) *Queue {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	return &Queue{
		ch:     make(chan imu.Sample, cfg.Capacity),
		policy: cfg.Policy,
	}
}

// Put enqueues s according to the overflow policy and reports whether s
// was enqueued. It never blocks.
func (q *Queue) Put(s imu.Sample) bool {
	for {
		select {
		case q.ch <- s:
			return true
		default:
		}

		if q.policy == RejectNew {
			q.dropped.Add(1)
			return false
		}

		// full: make room by discarding the head, then retry
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// TryGet pops the oldest sample, if any. It never blocks.
func (q *Queue) TryGet() (imu.Sample, bool) {
	select {
	case s := <-q.ch:
		return s, true
	default:
		return imu.Sample{}, false
	}
}

// Len is the number of queued samples.
func (q *Queue) Len() int { return len(q.ch) }

// Cap is the configured capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

// Policy returns the overflow policy.
func (q *Queue) Policy() Policy { return q.policy }

// Dropped counts samples lost to overflow under either policy.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
