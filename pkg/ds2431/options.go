// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package ds2431

import (
	"io"
	"log/slog"
	"time"

	"github.com/Thermoquad/scribe/pkg/onewire"
)

// Option configures a Device
type Option func(*Device)

// WithAddress addresses one device by ROM code instead of assuming it is
// alone on the bus.
//
// Example:
//
//	addr, _ := onewire.ParseAddress("2d-00000a1b2c3d")
//	dev := ds2431.New(bus, ds2431.WithAddress(addr))
func WithAddress(addr onewire.Address) Option {
	return func(d *Device) {
		d.SetAddress(addr)
	}
}

// WithLogger sets the logger for protocol tracing. Records are emitted at
// debug level, except failed writes which log at warn.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Device) {
		if logger != nil {
			d.logger = logger.With("component", "ds2431")
		}
	}
}

// WithSleep replaces time.Sleep for the programming delay, for targets with
// their own delay primitive and for tests
func WithSleep(sleep func(time.Duration)) Option {
	return func(d *Device) {
		if sleep != nil {
			d.sleep = sleep
		}
	}
}

// WithStatistics records every write outcome into stats
func WithStatistics(stats *Statistics) Option {
	return func(d *Device) {
		d.stats = stats
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
