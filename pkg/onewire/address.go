// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package onewire

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Address is the 64-bit ROM code of a 1-Wire device in wire order:
//
//	byte 0     bytes 1-6                 byte 7
//	+--------+-------------------------+--------+
//	| family | 48-bit serial (LSB 1st) | crc8   |
//	+--------+-------------------------+--------+
type Address [AddressSize]byte

// Family returns the device family code
func (a Address) Family() byte {
	return a[0]
}

// Serial returns the 48-bit serial number
func (a Address) Serial() uint64 {
	var sn uint64
	for i := 6; i >= 1; i-- {
		sn = sn<<8 | uint64(a[i])
	}
	return sn
}

// CRC returns the CRC byte stored in the address
func (a Address) CRC() byte {
	return a[7]
}

// Valid reports whether the stored CRC matches the family and serial bytes
func (a Address) Valid() bool {
	return CalculateCRC8(a[:7]) == a[7]
}

// IsZero reports whether the address is unset
func (a Address) IsZero() bool {
	return a == Address{}
}

// Uint64 returns the address as a number with the CRC in the most
// significant byte and the family code in the least significant byte
func (a Address) Uint64() uint64 {
	return binary.LittleEndian.Uint64(a[:])
}

// String formats the address the way the Linux w1 subsystem names devices
// (family-serial, e.g. "2d-00000a1b2c3d")
func (a Address) String() string {
	return fmt.Sprintf("%02x-%012x", a.Family(), a.Serial())
}

// NewAddress builds an address from a family code and serial number,
// computing the CRC byte
func NewAddress(family byte, serial uint64) (Address, error) {
	if serial > 0xFFFFFFFFFFFF {
		return Address{}, fmt.Errorf("serial number 0x%X exceeds 48 bits", serial)
	}
	var a Address
	a[0] = family
	for i := 1; i <= 6; i++ {
		a[i] = byte(serial)
		serial >>= 8
	}
	a[7] = CalculateCRC8(a[:7])
	return a, nil
}

// AddressFromBytes validates an address read from the bus in wire order
func AddressFromBytes(buf []byte) (Address, error) {
	if len(buf) != AddressSize {
		return Address{}, fmt.Errorf("invalid address length %d (want %d)", len(buf), AddressSize)
	}
	var a Address
	copy(a[:], buf)
	if !a.Valid() {
		return Address{}, fmt.Errorf("%w: address %X has crc 0x%02X, computed 0x%02X",
			ErrCRC, buf, a.CRC(), CalculateCRC8(a[:7]))
	}
	return a, nil
}

// ParseAddress parses either the w1 form "ff-ssssssssssss" (CRC computed)
// or 16 hex digits holding the full ROM code with the CRC byte first and the
// family code last (CRC verified).
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)

	if family, serial, ok := strings.Cut(s, "-"); ok {
		f, err := hex.DecodeString(family)
		if err != nil || len(f) != 1 {
			return Address{}, fmt.Errorf("invalid family code %q", family)
		}
		if len(serial) != 12 {
			return Address{}, fmt.Errorf("invalid serial %q (want 12 hex digits)", serial)
		}
		sn, err := strconv.ParseUint(serial, 16, 64)
		if err != nil {
			return Address{}, fmt.Errorf("invalid serial %q: %w", serial, err)
		}
		return NewAddress(f[0], sn)
	}

	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != AddressSize {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	// Printed most significant byte first; reverse into wire order
	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		raw[i], raw[j] = raw[j], raw[i]
	}
	return AddressFromBytes(raw)
}
