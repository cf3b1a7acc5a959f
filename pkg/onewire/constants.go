// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

// Package onewire provides the bus layer used to talk to 1-Wire devices.
//
// It defines a minimal Bus interface (reset, byte write, byte read, depower),
// the ROM-layer commands every 1-Wire slave understands, device addresses,
// the Dallas/Maxim CRC-8 and CRC-16, and concrete Bus implementations:
// a UART adapter for a local serial port and a WebSocket bridge for buses
// attached to a remote host.
package onewire

// ROM command bytes, sent right after a reset
const (
	CmdReadROM  = 0x33
	CmdMatchROM = 0x55
	CmdSkipROM  = 0xCC
)

// AddressSize is the length of a ROM address on the wire
const AddressSize = 8

// CRC-8 (Dallas/Maxim, x^8 + x^5 + x^4 + 1), reflected
const (
	crc8Polynomial = 0x8C
	crc8Initial    = 0x00
)

// CRC-16 (x^16 + x^15 + x^2 + 1), reflected
const (
	crc16Polynomial = 0xA001
	crc16Initial    = 0x0000
)

// CRC16Size is the number of CRC bytes a device sends after a data block
const CRC16Size = 2
