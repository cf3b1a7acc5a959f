// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package onewire

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// UART timing for a 1-Wire bus driven through a serial port with TX and RX
// joined (open-drain buffer or diode). A reset pulse is one 0xF0 byte at
// 9600 baud; every data time slot is one byte at 115200 baud.
const (
	resetBaudRate = 9600
	dataBaudRate  = 115200

	resetByte = 0xF0
	slotOne   = 0xFF
	slotZero  = 0x00

	serialReadTimeout = 100 * time.Millisecond
)

// uartPort is the part of serial.Port used by SerialBus
type uartPort interface {
	io.ReadWriteCloser
	SetMode(mode *serial.Mode) error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// SerialBus drives a 1-Wire segment from a plain UART
type SerialBus struct {
	port     uartPort
	name     string
	baudRate int
	closed   bool
}

// OpenSerial opens a serial port and prepares it as a 1-Wire master
func OpenSerial(portName string) (*SerialBus, error) {
	mode := uartMode(dataBaudRate)
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	bus, err := newSerialBus(port, portName)
	if err != nil {
		port.Close()
		return nil, err
	}
	return bus, nil
}

func newSerialBus(port uartPort, name string) (*SerialBus, error) {
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}
	return &SerialBus{port: port, name: name, baudRate: dataBaudRate}, nil
}

func uartMode(baudRate int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Name returns the serial device name
func (s *SerialBus) Name() string {
	return s.name
}

func (s *SerialBus) setBaudRate(baudRate int) error {
	if s.baudRate == baudRate {
		return nil
	}
	if err := s.port.SetMode(uartMode(baudRate)); err != nil {
		return fmt.Errorf("failed to set %d baud: %w", baudRate, err)
	}
	s.baudRate = baudRate
	return nil
}

// Reset sends a reset pulse and samples the presence pulse
func (s *SerialBus) Reset() error {
	if s.closed {
		return ErrBusClosed
	}
	if err := s.setBaudRate(resetBaudRate); err != nil {
		return err
	}
	if err := s.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to flush input: %w", err)
	}

	echo, err := s.exchange([]byte{resetByte})
	if berr := s.setBaudRate(dataBaudRate); berr != nil && err == nil {
		err = berr
	}
	if err != nil {
		return err
	}

	// A device pulling the line low during the stop bits changes the echo
	if echo[0] == resetByte {
		return ErrNoPresence
	}
	return nil
}

// Write sends p, one time slot per bit
func (s *SerialBus) Write(p []byte) error {
	if s.closed {
		return ErrBusClosed
	}
	echo, err := s.exchange(encodeSlots(p))
	if err != nil {
		return err
	}
	for i, b := range decodeSlots(echo) {
		if b != p[i] {
			return fmt.Errorf("%w: wrote 0x%02X, read back 0x%02X", ErrCollision, p[i], b)
		}
	}
	return nil
}

// Read issues read time slots and fills p from the sampled bits
func (s *SerialBus) Read(p []byte) error {
	if s.closed {
		return ErrBusClosed
	}
	slots := make([]byte, len(p)*8)
	for i := range slots {
		slots[i] = slotOne
	}
	echo, err := s.exchange(slots)
	if err != nil {
		return err
	}
	copy(p, decodeSlots(echo))
	return nil
}

// Depower is a no-op; a UART master has no strong pull-up to release
func (s *SerialBus) Depower() error {
	return nil
}

// Close closes the serial port
func (s *SerialBus) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.port.Close()
}

// exchange writes out and reads back the same number of echoed bytes
func (s *SerialBus) exchange(out []byte) ([]byte, error) {
	if len(out) == 0 {
		return nil, nil
	}
	if _, err := s.port.Write(out); err != nil {
		return nil, fmt.Errorf("serial write: %w", err)
	}

	echo := make([]byte, len(out))
	read := 0
	for read < len(echo) {
		n, err := s.port.Read(echo[read:])
		if err != nil {
			return nil, fmt.Errorf("serial read: %w", err)
		}
		// go.bug.st/serial returns 0, nil when the read timeout expires
		if n == 0 {
			return nil, fmt.Errorf("%w: %d of %d echo bytes", ErrTimeout, read, len(echo))
		}
		read += n
	}
	return echo, nil
}

// encodeSlots expands each byte into eight UART bytes, LSB first
func encodeSlots(p []byte) []byte {
	slots := make([]byte, 0, len(p)*8)
	for _, b := range p {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) != 0 {
				slots = append(slots, slotOne)
			} else {
				slots = append(slots, slotZero)
			}
		}
	}
	return slots
}

// decodeSlots folds echoed time slots back into bytes. Only an untouched
// 0xFF echo reads as a one.
func decodeSlots(echo []byte) []byte {
	out := make([]byte, len(echo)/8)
	for i := range out {
		var b byte
		for bit := 0; bit < 8; bit++ {
			if echo[i*8+bit] == slotOne {
				b |= 1 << bit
			}
		}
		out[i] = b
	}
	return out
}
