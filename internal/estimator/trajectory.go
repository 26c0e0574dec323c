// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package estimator

import "gonum.org/v1/gonum/spatial/r3"

// ring is a fixed-capacity FIFO of positions; pushing into a full ring
// overwrites the oldest entry.
type ring struct {
	buf  []r3.Vec
	head int // index of the oldest entry
	n    int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]r3.Vec, capacity)}
}

func (r *ring) push(p r3.Vec) {
	if r.n < len(r.buf) {
		r.buf[(r.head+r.n)%len(r.buf)] = p
		r.n++
		return
	}
	r.buf[r.head] = p
	r.head = (r.head + 1) % len(r.buf)
}

func (r *ring) len() int { return r.n }

// points copies the contents, oldest first.
func (r *ring) points() []r3.Vec {
	out := make([]r3.Vec, r.n)
	for i := range out {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}
