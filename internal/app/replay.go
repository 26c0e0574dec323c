// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/imu_telemetry/internal/config"
	"github.com/relabs-tech/imu_telemetry/internal/imu"
	"github.com/relabs-tech/imu_telemetry/internal/recorder"
	"github.com/relabs-tech/imu_telemetry/internal/telemetry"
)

// RunReplay feeds a recorded CSV through a fresh session and prints the
// final state to out.
func RunReplay(path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	samples, err := recorder.ReadCSV(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	log.Printf("replay: %d samples from %s", len(samples), path)

	sum := replay(config.Get().Session(nil), samples)
	fmt.Fprintln(out, formatSummary(sum))
	fmt.Fprintf(out, "samples=%d integrated=%d stationary=%d skipped_degenerate=%d skipped_time_delta=%d trajectory=%d\n",
		sum.Counters.Samples, sum.Counters.Integrated, sum.Counters.Stationary,
		sum.Counters.SkippedDegenerate, sum.Counters.SkippedTimeDelta, sum.TrajectoryLen)
	return nil
}

// replay publishes and drains one sample at a time, so the queue never
// overflows and the result does not depend on its capacity.
func replay(cfg telemetry.Config, samples []imu.Sample) telemetry.Summary {
	session := telemetry.New(cfg)
	defer session.Close()

	for _, s := range samples {
		session.Publish(s)
		session.DrainAndIntegrate()
	}
	return session.Summary()
}
