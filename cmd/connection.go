// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/Thermoquad/scribe/pkg/ds2431"
	"github.com/Thermoquad/scribe/pkg/onewire"
	"golang.org/x/term"
)

// Connection is an open 1-Wire bus that must be closed after use
type Connection interface {
	onewire.Bus
	Close() error
}

// simConnection wraps the simulator, which has nothing to release
type simConnection struct {
	*ds2431.Simulator
}

func (simConnection) Close() error {
	return nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("SCRIBE_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens the simulator, a bridge or a serial port based on flags
func OpenConnection() (Connection, string, error) {
	if useSimulator {
		sim := ds2431.NewDefaultSimulator()
		return simConnection{sim}, fmt.Sprintf("Simulator: %s", sim.ROM), nil
	}

	if bridgeURL != "" {
		password := ""
		if bridgeUser != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		bus, err := onewire.DialBridge(bridgeURL, bridgeUser, password, bridgeNoSSL)
		if err != nil {
			return nil, "", err
		}

		return bus, fmt.Sprintf("Bridge: %s", bridgeURL), nil
	}

	if portName != "" {
		bus, err := onewire.OpenSerial(portName)
		if err != nil {
			return nil, "", err
		}

		return bus, fmt.Sprintf("Serial: %s", portName), nil
	}

	return nil, "", fmt.Errorf("one of --port, --url or --sim must be specified")
}

// NewLogger builds the stderr logger selected by --verbose and --log-format.
// Records below level are dropped unless --verbose is set.
func NewLogger(level slog.Level) (*slog.Logger, error) {
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch logFormat {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (use text or json)", logFormat)
	}
}

// OpenDevice opens the connection and wraps it in a DS2431 device. The
// returned statistics collect every write made through the device.
func OpenDevice() (*ds2431.Device, Connection, string, *ds2431.Statistics, error) {
	logger, err := NewLogger(slog.LevelWarn)
	if err != nil {
		return nil, nil, "", nil, err
	}

	stats := ds2431.NewStatistics()
	opts, err := deviceOptions(stats)
	if err != nil {
		return nil, nil, "", nil, err
	}
	opts = append(opts, ds2431.WithLogger(logger))

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return nil, nil, "", nil, err
	}

	return ds2431.New(conn, opts...), conn, connInfo, stats, nil
}

// deviceOptions returns the device options selected by flags
func deviceOptions(stats *ds2431.Statistics) ([]ds2431.Option, error) {
	opts := []ds2431.Option{ds2431.WithStatistics(stats)}
	if deviceAddress != "" {
		addr, err := onewire.ParseAddress(deviceAddress)
		if err != nil {
			return nil, fmt.Errorf("invalid --rom: %w", err)
		}
		opts = append(opts, ds2431.WithAddress(addr))
	}
	return opts, nil
}

// parseMemoryAddress parses a memory address given in decimal, 0x hex, 0o
// octal or 0b binary
func parseMemoryAddress(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if v >= ds2431.MemorySize {
		return 0, fmt.Errorf("address 0x%02X outside memory (0x00-0x%02X)", v, ds2431.MemorySize-1)
	}
	return uint16(v), nil
}

// parseHexData parses bytes written as hex, with optional spaces, colons
// or a 0x prefix
func parseHexData(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no data given")
	}
	return data, nil
}
