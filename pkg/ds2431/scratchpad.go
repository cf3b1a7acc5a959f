// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package ds2431

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/scribe/pkg/onewire"
)

// Scratchpad is the chip's staging buffer as returned by Read Scratchpad
type Scratchpad struct {
	TargetAddress uint16
	Status        byte
	Data          []byte
	CRC           [crcSize]byte // inverted CRC-16 as sent by the chip
}

// StatusOK reports whether the chip accepted a complete row that has not
// been copied yet
func (s Scratchpad) StatusOK() bool {
	return s.Status == StatusPass
}

// EndingOffset returns the offset within the row of the last staged byte
func (s Scratchpad) EndingOffset() int {
	return int(s.Status & statusOffsetMask)
}

// Partial reports whether the last transfer did not end on a whole byte
func (s Scratchpad) Partial() bool {
	return s.Status&statusPartial != 0
}

// Copied reports whether the scratchpad was already copied to EEPROM
func (s Scratchpad) Copied() bool {
	return s.Status&statusCopied != 0
}

// Authorization returns the TA1, TA2, E/S bytes the copy command must echo
func (s Scratchpad) Authorization() []byte {
	return []byte{byte(s.TargetAddress), byte(s.TargetAddress >> 8), s.Status}
}

// CRCValid checks the chip's CRC over the command, header and data
func (s Scratchpad) CRCValid() bool {
	return onewire.CheckCRC16(s.crcFrame(), s.CRC[:])
}

func (s Scratchpad) crcFrame() []byte {
	frame := make([]byte, 0, 1+commandSize+len(s.Data))
	frame = append(frame, CmdReadScratchpad)
	frame = append(frame, s.Authorization()...)
	frame = append(frame, s.Data...)
	return frame
}

// describeStatus explains why an E/S byte fails the pass check
func describeStatus(status byte) string {
	reasons := []string{}
	if status&statusCopied != 0 {
		reasons = append(reasons, "already copied")
	}
	if status&statusPartial != 0 {
		reasons = append(reasons, "partial transfer")
	}
	if status&statusOffsetMask != statusOffsetMask {
		reasons = append(reasons, fmt.Sprintf("ending offset %d", status&statusOffsetMask))
	}
	if len(reasons) == 0 {
		return fmt.Sprintf("E/S 0x%02X", status)
	}
	return fmt.Sprintf("E/S 0x%02X (%s)", status, strings.Join(reasons, ", "))
}
