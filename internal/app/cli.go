// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/imu_telemetry/internal/config"
)

// ConfigFlags registers the flags every tool shares.
func ConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", config.DefaultPath, "path to the KEY=VALUE configuration file")
	cmd.Flags().Bool("debug", false, "toggle debug logging")
}

// InitConfig loads the file named by --config into the global config.
// --debug overrides LOG_LEVEL.
func InitConfig(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	if err := config.InitGlobal(path); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		log.SetLevel(log.DebugLevel)
	}
	return nil
}
