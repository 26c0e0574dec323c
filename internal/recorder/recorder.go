// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package recorder keeps every published sample for later export. Unlike
// the ingress queue it is unbounded and never drops.
package recorder

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"sync"

	"github.com/relabs-tech/imu_telemetry/internal/imu"
)

// Header is the CSV column order.
var Header = []string{"timestamp", "dt", "qw", "qx", "qy", "qz", "ax", "ay", "az", "gx", "gy", "gz"}

// Row is a recorded sample plus its spacing from the previous one, in
// seconds (0 for the first row).
type Row struct {
	imu.Sample
	Dt float64
}

// Log is an append-only, concurrency-safe sample log.
type Log struct {
	mu        sync.Mutex
	timeScale float64
	rows      []Row
	last      uint64
	haveLast  bool
}

// NewLog returns an empty log. timeScale converts device ticks to seconds
// for the dt column.
func NewLog(timeScale float64) *Log {
	if timeScale <= 0 {
		timeScale = 1e6
	}
	return &Log{timeScale: timeScale}
}

// Append records s.
func (l *Log) Append(s imu.Sample) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var dt float64
	if l.haveLast {
		dt = float64(int64(s.Timestamp-l.last)) / l.timeScale
	}
	l.last, l.haveLast = s.Timestamp, true
	l.rows = append(l.rows, Row{Sample: s, Dt: dt})
}

// Len is the number of recorded samples.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

// Rows returns a copy of the recorded rows.
func (l *Log) Rows() []Row {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Row, len(l.rows))
	copy(out, l.rows)
	return out
}

// WriteCSV writes a header and one row per recorded sample.
func (l *Log) WriteCSV(w io.Writer) error {
	rows := l.Rows()

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("csv write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(formatRow(r)); err != nil {
			return fmt.Errorf("csv write row %d: %w", r.Timestamp, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the log to path, replacing any existing file.
func (l *Log) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv create %s: %w", path, err)
	}
	bw := bufio.NewWriterSize(f, 256*1024)
	if err := l.WriteCSV(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("csv flush %s: %w", path, err)
	}
	return f.Close()
}

func formatRow(r Row) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return []string{
		strconv.FormatUint(r.Timestamp, 10),
		f(r.Dt),
		f(r.Qw), f(r.Qx), f(r.Qy), f(r.Qz),
		f(r.Ax), f(r.Ay), f(r.Az),
		f(r.Gx), f(r.Gy), f(r.Gz),
	}
}

// ReadCSV parses a recording produced by WriteCSV. Columns are matched by
// header name, so extra or reordered columns are tolerated; absent sample
// columns read as 0.
func ReadCSV(r io.Reader) ([]imu.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("csv read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	if _, ok := col["timestamp"]; !ok {
		return nil, fmt.Errorf("csv header has no timestamp column")
	}

	var out []imu.Sample
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}

		s, err := parseRecord(rec, col)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		out = append(out, s)
	}
}

func parseRecord(rec []string, col map[string]int) (imu.Sample, error) {
	get := func(name string) (float64, error) {
		i, ok := col[name]
		if !ok || i >= len(rec) || rec[i] == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(rec[i], 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%s: non-finite value %q", name, rec[i])
		}
		return v, nil
	}

	var s imu.Sample
	i := col["timestamp"]
	if i >= len(rec) {
		return s, fmt.Errorf("missing timestamp")
	}
	ts, err := strconv.ParseUint(rec[i], 10, 64)
	if err != nil {
		// pandas exports integer columns as floats once a NaN appears
		f, ferr := strconv.ParseFloat(rec[i], 64)
		if ferr != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return s, fmt.Errorf("timestamp: %w", err)
		}
		ts = uint64(f)
	}
	s.Timestamp = ts

	fields := []struct {
		name string
		dst  *float64
	}{
		{"qw", &s.Qw}, {"qx", &s.Qx}, {"qy", &s.Qy}, {"qz", &s.Qz},
		{"ax", &s.Ax}, {"ay", &s.Ay}, {"az", &s.Az},
		{"gx", &s.Gx}, {"gy", &s.Gy}, {"gz", &s.Gz},
	}
	for _, fd := range fields {
		v, err := get(fd.name)
		if err != nil {
			return s, err
		}
		*fd.dst = v
	}
	return s, nil
}
