// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"
)

// ErrMalformedLine is returned by ParseLine for lines that are neither a
// JSON sample nor an 11-field CSV sample.
var ErrMalformedLine = errors.New("malformed sample line")

// csvFields is the column order of a CSV line on the serial bridge.
var csvFields = []string{"timestamp", "qw", "qx", "qy", "qz", "ax", "ay", "az", "gx", "gy", "gz"}

// LineSource reads newline-delimited samples from a byte stream.
type LineSource struct {
	name   string
	closer io.Closer
	reader *bufio.Reader
}

// NewSerialSource opens a serial port carrying one sample per line, either
// as a JSON object or as "timestamp,qw,qx,qy,qz,ax,ay,az,gx,gy,gz".
func NewSerialSource(portName string, baudRate int) (*LineSource, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", portName, err)
	}
	log.Printf("serial source opened on %s at %d baud", portName, baudRate)

	return newLineSource(portName, port, port), nil
}

func newLineSource(name string, r io.Reader, c io.Closer) *LineSource {
	return &LineSource{name: name, closer: c, reader: bufio.NewReader(r)}
}

// Next blocks until a well-formed line arrives. Noise and partial lines are
// skipped; read errors (including io.EOF) are returned.
func (s *LineSource) Next() (Sample, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			sample, perr := ParseLine(line)
			if perr == nil {
				return sample, nil
			}
			log.Debugf("%s: skipping line: %v", s.name, perr)
		}
		if err != nil {
			return Sample{}, fmt.Errorf("%s read: %w", s.name, err)
		}
	}
}

func (s *LineSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// ParseLine decodes one bridge line.
func ParseLine(line string) (Sample, error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "{") {
		var s Sample
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return Sample{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
		}
		return s, nil
	}

	parts := strings.Split(line, ",")
	if len(parts) != len(csvFields) {
		return Sample{}, fmt.Errorf("%w: %d fields, want %d", ErrMalformedLine, len(parts), len(csvFields))
	}

	ts, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedLine, err)
	}
	vals := make([]float64, len(parts)-1)
	for i, p := range parts[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Sample{}, fmt.Errorf("%w: %s: %v", ErrMalformedLine, csvFields[i+1], err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Sample{}, fmt.Errorf("%w: %s: non-finite value %q", ErrMalformedLine, csvFields[i+1], p)
		}
		vals[i] = v
	}

	return Sample{
		Timestamp: ts,
		Qw:        vals[0], Qx: vals[1], Qy: vals[2], Qz: vals[3],
		Ax: vals[4], Ay: vals[5], Az: vals[6],
		Gx: vals[7], Gy: vals[8], Gz: vals[9],
	}, nil
}
