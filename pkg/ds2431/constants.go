// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

// Package ds2431 reads and programs DS2431-class 1-Wire EEPROMs.
//
// The chip never writes memory directly. Data is staged in an 8-byte
// scratchpad, read back and checked, and only then copied into EEPROM with
// an authorization that echoes the scratchpad's target address and status.
// Device.Write runs that stage/verify/commit sequence and refuses to commit
// a scratchpad it cannot vouch for.
package ds2431

import "time"

// FamilyCode is the ROM family code of the DS2431
const FamilyCode = 0x2D

// Memory layout
const (
	MemorySize = 128
	RowSize    = 8
	RowCount   = MemorySize / RowSize
)

// Memory function commands
const (
	CmdWriteScratchpad = 0x0F
	CmdReadScratchpad  = 0xAA
	CmdCopyScratchpad  = 0x55
	CmdReadMemory      = 0xF0
)

// StatusPass is the E/S byte of a scratchpad holding a complete, uncopied row:
// ending offset 7, PF and AA clear
const StatusPass = 0x07

// E/S register bits
const (
	statusOffsetMask = 0x07
	statusPartial    = 0x20 // PF: partial byte or incomplete transfer
	statusCopied     = 0x80 // AA: scratchpad already copied
)

// WriteAck is the byte the chip returns once a copy has been programmed
const WriteAck = 0xAA

// ReadRetries bounds read-scratchpad verification attempts on CRC errors
const ReadRetries = 2

// ProgramDelay covers the EEPROM programming time (12.5 ms worst case)
const ProgramDelay = 15 * time.Millisecond

// Frame sizes
const (
	commandSize = 3 // command + TA1 + TA2
	crcSize     = 2
)
