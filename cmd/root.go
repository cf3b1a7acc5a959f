// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string

	// Bridge connection flags
	bridgeURL     string
	bridgeUser    string
	bridgeNoSSL   bool
	useSimulator  bool
	deviceAddress string

	// Logging flags
	verbose   bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "DS2431 1-Wire EEPROM programmer",
	Long: `Scribe - A CLI tool for reading and programming DS2431 1-Wire EEPROMs.

Every write is staged in the chip's scratchpad, read back, and only copied to
EEPROM when the staged row checks out. Commands cover single reads and writes,
full image dump and load, an interactive editor, and a bridge that shares a
local bus over WebSocket.

Connection modes:
  Serial:    --port /dev/ttyUSB0   (UART 1-Wire master, TX and RX joined)
  Bridge:    --url ws://host/path [--username user]
  Simulator: --sim

With several devices on the bus, pick one with --rom 2d-00000a1b2c3d.

For bridge authentication, the password is read from the SCRIBE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")

	// Bridge connection flags
	rootCmd.PersistentFlags().StringVarP(&bridgeURL, "url", "u", "", "Bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&bridgeUser, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&bridgeNoSSL, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
	rootCmd.PersistentFlags().BoolVar(&useSimulator, "sim", false, "Use an in-memory simulated DS2431")

	// Device selection
	rootCmd.PersistentFlags().StringVar(&deviceAddress, "rom", "", "ROM code of the device to address (default: skip ROM)")

	// Logging
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log protocol phases at debug level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format on stderr (text, json)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
