// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package ds2431

import (
	"fmt"
	"strings"
)

// FormatRow formats one row as "0x10: 01 02 03 04 05 06 07 08 |........|"
func FormatRow(address uint16, data []byte) string {
	return formatLine(address, 0, data)
}

// FormatMemory formats data starting at base as a hex dump, one line per
// row. Lines are aligned to row boundaries.
func FormatMemory(base uint16, data []byte) string {
	var b strings.Builder
	address := int(base)
	for offset := 0; offset < len(data); {
		lead := address % RowSize
		n := min(RowSize-lead, len(data)-offset)
		b.WriteString(formatLine(uint16(address-lead), lead, data[offset:offset+n]))
		b.WriteString("\n")
		offset += n
		address += n
	}
	return b.String()
}

// formatLine formats data placed lead bytes into the row at rowAddress
func formatLine(rowAddress uint16, lead int, data []byte) string {
	var hexPart strings.Builder
	for i := 0; i < RowSize; i++ {
		if i >= lead && i-lead < len(data) {
			fmt.Fprintf(&hexPart, "%02X ", data[i-lead])
		} else {
			hexPart.WriteString("   ")
		}
	}
	return fmt.Sprintf("0x%02X: %s|%s%s|", rowAddress, hexPart.String(),
		strings.Repeat(" ", lead), printable(data))
}

// FormatScratchpad formats a scratchpad read-back
func FormatScratchpad(s Scratchpad) string {
	crcState := "OK"
	if !s.CRCValid() {
		crcState = "BAD"
	}
	return fmt.Sprintf("TA=0x%04X %s data=% X crc=%02X%02X (%s)",
		s.TargetAddress, describeStatus(s.Status), s.Data, s.CRC[1], s.CRC[0], crcState)
}

func printable(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		if c >= 0x20 && c < 0x7F {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}
