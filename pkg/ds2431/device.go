// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package ds2431

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Thermoquad/scribe/pkg/onewire"
)

// ErrWrongFamily is returned by Identify when the device is not a DS2431
var ErrWrongFamily = errors.New("ds2431: unexpected family code")

// ErrUnstableRead is returned when repeated reads of a row never agree
var ErrUnstableRead = errors.New("ds2431: row reads disagree")

// Device is a DS2431 on a 1-Wire bus. It holds no chip state; every call is
// a self-contained exchange. A Device is not safe for concurrent use and the
// caller must own the bus for the duration of each call.
type Device struct {
	bus     onewire.Bus
	address onewire.Address
	skipROM bool
	logger  *slog.Logger
	sleep   func(time.Duration)
	stats   *Statistics
}

// New creates a Device talking to the sole device on bus, unless
// WithAddress is given
func New(bus onewire.Bus, opts ...Option) *Device {
	d := &Device{
		bus:     bus,
		skipROM: true,
		logger:  discardLogger(),
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetAddress selects the device by ROM code on subsequent calls
func (d *Device) SetAddress(addr onewire.Address) {
	d.address = addr
	d.skipROM = false
}

// Address returns the selected ROM code and whether one is set
func (d *Device) Address() (onewire.Address, bool) {
	return d.address, !d.skipROM
}

// Identify reads the ROM code of the sole device on the bus and checks that
// it is a DS2431. The address is not stored; use SetAddress for that.
func (d *Device) Identify() (onewire.Address, error) {
	addr, err := onewire.ReadROM(d.bus)
	d.depower()
	if err != nil {
		return onewire.Address{}, err
	}
	if addr.Family() != FamilyCode {
		return addr, fmt.Errorf("%w: 0x%02X (want 0x%02X)", ErrWrongFamily, addr.Family(), FamilyCode)
	}
	return addr, nil
}

// startTransmission resets the bus and addresses the device
func (d *Device) startTransmission() error {
	if err := d.bus.Reset(); err != nil {
		return err
	}
	if d.skipROM {
		return onewire.Skip(d.bus)
	}
	return onewire.Select(d.bus, d.address)
}

func (d *Device) depower() {
	if err := d.bus.Depower(); err != nil {
		d.logger.Debug("depower failed", "err", err)
	}
}

// Read fills buf from memory starting at address. Reads are not CRC
// protected; integrity rests on the verified write path.
func (d *Device) Read(address uint16, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	defer d.depower()

	if err := d.startTransmission(); err != nil {
		return fmt.Errorf("read 0x%02X: %w", address, err)
	}

	cmd := make([]byte, commandSize)
	cmd[0] = CmdReadMemory
	binary.LittleEndian.PutUint16(cmd[1:], address)
	if err := d.bus.Write(cmd); err != nil {
		return fmt.Errorf("read 0x%02X: %w", address, err)
	}

	if err := d.bus.Read(buf); err != nil {
		return fmt.Errorf("read 0x%02X: %w", address, err)
	}

	d.logger.Debug("read memory", "address", address, "length", len(buf))
	return nil
}

// ReadByte reads a single byte of memory
func (d *Device) ReadByte(address uint16) (byte, error) {
	var b [1]byte
	if err := d.Read(address, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadAll reads the complete EEPROM
func (d *Device) ReadAll() ([]byte, error) {
	buf := make([]byte, MemorySize)
	if err := d.Read(0, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
