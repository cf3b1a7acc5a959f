// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package onewire

import (
	"errors"
	"fmt"
)

// Bus errors
var (
	// ErrNoPresence is returned by Reset when no device answers with a presence pulse
	ErrNoPresence = errors.New("onewire: no presence pulse")

	// ErrCollision is returned when a written bit does not echo back as sent
	ErrCollision = errors.New("onewire: bus collision")

	// ErrTimeout is returned when the bus adapter stops answering
	ErrTimeout = errors.New("onewire: adapter timeout")

	// ErrCRC is returned when a CRC read from the bus does not match
	ErrCRC = errors.New("onewire: CRC mismatch")

	// ErrBusClosed is returned when using a bus after Close
	ErrBusClosed = errors.New("onewire: bus closed")
)

// Bus is a single 1-Wire segment.
//
// Every command sequence starts with Reset, followed by a ROM command
// (see Skip and Select) and the device function command. Implementations
// are not safe for concurrent use; a caller owns the bus for the whole
// sequence.
type Bus interface {
	// Reset issues a reset pulse and returns ErrNoPresence if nothing answers
	Reset() error

	// Write transmits p, least significant bit first
	Write(p []byte) error

	// Read fills p with bytes read from the bus
	Read(p []byte) error

	// Depower releases any strong pull-up held after a write
	Depower() error
}

// Skip addresses the sole device on the bus (Skip ROM)
func Skip(bus Bus) error {
	return bus.Write([]byte{CmdSkipROM})
}

// Select addresses the device with the given ROM code (Match ROM)
func Select(bus Bus, addr Address) error {
	frame := make([]byte, 0, 1+AddressSize)
	frame = append(frame, CmdMatchROM)
	frame = append(frame, addr[:]...)
	return bus.Write(frame)
}

// ReadROM resets the bus and reads the ROM code of the sole device on it.
// With more than one device present the wired-AND of all codes comes back
// and fails the CRC check.
func ReadROM(bus Bus) (Address, error) {
	if err := bus.Reset(); err != nil {
		return Address{}, err
	}
	if err := bus.Write([]byte{CmdReadROM}); err != nil {
		return Address{}, fmt.Errorf("read ROM command: %w", err)
	}
	buf := make([]byte, AddressSize)
	if err := bus.Read(buf); err != nil {
		return Address{}, fmt.Errorf("read ROM: %w", err)
	}
	return AddressFromBytes(buf)
}
