// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package ds2431

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Thermoquad/scribe/pkg/onewire"
)

// Write programs data into the row starting at address.
//
// The address must be row aligned and inside the memory, and data must hold
// 1 to RowSize bytes; shorter data is merged with the row's current
// contents. Memory reads carry no CRC, so the row is read until two
// consecutive reads agree before it is merged. The row is staged in the scratchpad, read back, and copied to
// EEPROM. A CRC error on staging or a bad status on read-back forces full
// verification even when verify is false. Nothing is copied unless every
// check that ran passed.
func (d *Device) Write(address uint16, data []byte, verify bool) error {
	err := d.write(address, data, verify)
	d.stats.recordWrite(ResultOf(err))
	if err != nil {
		d.logger.Warn("write failed", "address", address, "result", ResultOf(err).String(), "err", err)
	} else {
		d.logger.Debug("write committed", "address", address)
	}
	return err
}

func (d *Device) write(address uint16, data []byte, verify bool) error {
	if err := checkWrite(address, data); err != nil {
		return err
	}
	defer d.depower()

	row := data
	if len(data) < RowSize {
		merged, err := d.mergeRow(address, 0, data)
		if err != nil {
			return busFault(address, "read row for merge", err)
		}
		row = merged
	}

	crcOK, err := d.stage(address, row)
	if err != nil {
		return busFault(address, "write scratchpad", err)
	}
	if !crcOK {
		d.logger.Debug("write scratchpad CRC mismatch, forcing verification", "address", address)
		d.stats.recordForcedVerify()
		verify = true
	}

	pad, err := d.checkScratchpad(address, row, verify)
	if err != nil {
		return err
	}

	return d.commit(address, pad)
}

func checkWrite(address uint16, data []byte) error {
	if address >= MemorySize || address%RowSize != 0 {
		return writeErr(ResultPreconditionViolation, address,
			fmt.Sprintf("address must be a multiple of %d below %d", RowSize, MemorySize))
	}
	if len(data) == 0 || len(data) > RowSize {
		return writeErr(ResultPreconditionViolation, address,
			fmt.Sprintf("data length %d (want 1-%d)", len(data), RowSize))
	}
	return nil
}

// mergeRow reads the row at rowAddress and overlays data at offset. The
// row is accepted once two consecutive reads match, within ReadRetries
// extra reads.
func (d *Device) mergeRow(rowAddress uint16, offset int, data []byte) ([]byte, error) {
	row := make([]byte, RowSize)
	if err := d.Read(rowAddress, row); err != nil {
		return nil, err
	}

	next := make([]byte, RowSize)
	for attempt := 1; ; attempt++ {
		if err := d.Read(rowAddress, next); err != nil {
			return nil, err
		}
		if bytes.Equal(row, next) {
			break
		}
		d.logger.Debug("row reads disagree", "address", rowAddress, "attempt", attempt)
		if attempt >= ReadRetries {
			return nil, fmt.Errorf("%w: % X then % X", ErrUnstableRead, row, next)
		}
		row, next = next, row
	}

	copy(row[offset:], data)
	return row, nil
}

// stage writes the row into the scratchpad and reports whether the CRC the
// chip computed over the transfer matches ours
func (d *Device) stage(address uint16, row []byte) (bool, error) {
	frame := make([]byte, commandSize, commandSize+len(row))
	frame[0] = CmdWriteScratchpad
	binary.LittleEndian.PutUint16(frame[1:], address)
	frame = append(frame, row...)

	if err := d.startTransmission(); err != nil {
		return false, err
	}
	if err := d.bus.Write(frame); err != nil {
		return false, err
	}

	crc := make([]byte, crcSize)
	if err := d.bus.Read(crc); err != nil {
		return false, err
	}

	d.logger.Debug("staged scratchpad", "address", address, "crc", fmt.Sprintf("%02X%02X", crc[1], crc[0]))
	return onewire.CheckCRC16(frame, crc), nil
}

// checkScratchpad reads the scratchpad header and, when verification is
// required, the staged data and CRC. CRC errors on read-back are retried up
// to ReadRetries attempts.
func (d *Device) checkScratchpad(address uint16, row []byte, verify bool) (Scratchpad, error) {
	errorCount := 0
	for {
		if err := d.startTransmission(); err != nil {
			return Scratchpad{}, busFault(address, "read scratchpad", err)
		}
		if err := d.bus.Write([]byte{CmdReadScratchpad}); err != nil {
			return Scratchpad{}, busFault(address, "read scratchpad", err)
		}

		header := make([]byte, commandSize)
		if err := d.bus.Read(header); err != nil {
			return Scratchpad{}, busFault(address, "read scratchpad", err)
		}
		pad := Scratchpad{
			TargetAddress: binary.LittleEndian.Uint16(header[0:2]),
			Status:        header[2],
		}

		if !pad.StatusOK() && !verify {
			d.logger.Debug("scratchpad status not passing, forcing verification",
				"address", address, "status", fmt.Sprintf("0x%02X", pad.Status))
			d.stats.recordForcedVerify()
			verify = true
		}
		if !verify {
			return pad, nil
		}

		pad.Data = make([]byte, len(row))
		if err := d.bus.Read(pad.Data); err != nil {
			return Scratchpad{}, busFault(address, "read scratchpad data", err)
		}
		if err := d.bus.Read(pad.CRC[:]); err != nil {
			return Scratchpad{}, busFault(address, "read scratchpad CRC", err)
		}

		if !pad.CRCValid() {
			errorCount++
			d.stats.recordCRCRetry()
			d.logger.Debug("read scratchpad CRC mismatch", "address", address, "attempt", errorCount)
			if errorCount >= ReadRetries {
				return Scratchpad{}, writeErr(ResultRetryExhausted, address,
					fmt.Sprintf("scratchpad CRC failed %d times", errorCount))
			}
			continue
		}

		if pad.TargetAddress != address {
			return Scratchpad{}, writeErr(ResultStagingMismatch, address,
				fmt.Sprintf("target address echoed as 0x%04X", pad.TargetAddress))
		}
		if !pad.StatusOK() {
			return Scratchpad{}, writeErr(ResultStagingMismatch, address, describeStatus(pad.Status))
		}
		if !bytes.Equal(pad.Data, row) {
			return Scratchpad{}, writeErr(ResultStagingMismatch, address,
				fmt.Sprintf("staged data % X differs from % X", pad.Data, row))
		}

		d.logger.Debug("scratchpad verified", "address", address)
		return pad, nil
	}
}

// commit copies the scratchpad to EEPROM and checks the acknowledgement.
// Programming is not retried; a failed copy needs a fresh staging.
func (d *Device) commit(address uint16, pad Scratchpad) error {
	if err := d.startTransmission(); err != nil {
		return busFault(address, "copy scratchpad", err)
	}

	frame := append([]byte{CmdCopyScratchpad}, pad.Authorization()...)
	if err := d.bus.Write(frame); err != nil {
		return busFault(address, "copy scratchpad", err)
	}

	d.sleep(ProgramDelay)

	ack := make([]byte, 1)
	if err := d.bus.Read(ack); err != nil {
		return busFault(address, "read copy status", err)
	}
	if ack[0] != WriteAck {
		return writeErr(ResultCommitFailure, address,
			fmt.Sprintf("copy status 0x%02X (want 0x%02X)", ack[0], WriteAck))
	}
	return nil
}

// WriteMemory programs an arbitrary span of memory row by row. Rows only
// partly covered by data keep their other bytes. It stops at the first row
// that fails and returns that row's error.
func (d *Device) WriteMemory(address uint16, data []byte, verify bool) error {
	if len(data) == 0 {
		return nil
	}
	if int(address)+len(data) > MemorySize {
		return writeErr(ResultPreconditionViolation, address,
			fmt.Sprintf("%d bytes at 0x%02X run past the end of memory", len(data), address))
	}

	for offset := 0; offset < len(data); {
		addr := int(address) + offset
		rowStart := uint16(addr - addr%RowSize)
		inRow := addr % RowSize
		n := min(RowSize-inRow, len(data)-offset)
		chunk := data[offset : offset+n]

		row := chunk
		if inRow != 0 {
			merged, err := d.mergeRow(rowStart, inRow, chunk)
			if err != nil {
				return busFault(rowStart, "read row for merge", err)
			}
			row = merged
		}

		if err := d.Write(rowStart, row, verify); err != nil {
			return err
		}
		offset += n
	}
	return nil
}
