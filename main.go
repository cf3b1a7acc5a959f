// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad
//
// Scribe - DS2431 1-Wire EEPROM programmer
//
// A CLI tool for reading, verifying and programming DS2431 EEPROMs over a
// UART 1-Wire master, a WebSocket bridge, or a built-in simulator.

package main

import (
	"os"

	"github.com/Thermoquad/scribe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
