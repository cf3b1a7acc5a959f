// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package ds2431

import (
	"bytes"
	"fmt"

	"github.com/Thermoquad/scribe/pkg/onewire"
	"github.com/fxamacker/cbor/v2"
)

// Image is a snapshot of the whole EEPROM, optionally tagged with the ROM
// code of the chip it came from
type Image struct {
	Address    onewire.Address
	HasAddress bool
	Data       [MemorySize]byte
	Comment    string
}

// imageFile is the CBOR document layout: {1: rom, 2: data, 3: comment}
type imageFile struct {
	Address []byte `cbor:"1,keyasint,omitempty"`
	Data    []byte `cbor:"2,keyasint"`
	Comment string `cbor:"3,keyasint,omitempty"`
}

// NewImage creates an image from a full memory read
func NewImage(data []byte) (*Image, error) {
	if len(data) != MemorySize {
		return nil, fmt.Errorf("image must be %d bytes, got %d", MemorySize, len(data))
	}
	img := &Image{}
	copy(img.Data[:], data)
	return img, nil
}

// EncodeImage encodes an image as CBOR
func EncodeImage(img *Image) ([]byte, error) {
	f := imageFile{
		Data:    img.Data[:],
		Comment: img.Comment,
	}
	if img.HasAddress {
		f.Address = img.Address[:]
	}

	data, err := cbor.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return data, nil
}

// DecodeImage decodes an image file. Files of exactly MemorySize bytes are
// taken as raw binary dumps; anything else must be a CBOR image.
func DecodeImage(data []byte) (*Image, error) {
	if len(data) == MemorySize {
		return NewImage(data)
	}

	var f imageFile
	if err := cbor.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR image: %w", err)
	}

	img, err := NewImage(f.Data)
	if err != nil {
		return nil, err
	}
	img.Comment = f.Comment

	if len(f.Address) > 0 {
		addr, err := onewire.AddressFromBytes(f.Address)
		if err != nil {
			return nil, fmt.Errorf("image address: %w", err)
		}
		img.Address = addr
		img.HasAddress = true
	}
	return img, nil
}

// Row returns the bytes of the row starting at address
func (img *Image) Row(address uint16) []byte {
	return img.Data[address : address+RowSize]
}

// ChangedRows returns the addresses of rows whose contents differ from
// current, a full memory read
func (img *Image) ChangedRows(current []byte) ([]uint16, error) {
	if len(current) != MemorySize {
		return nil, fmt.Errorf("memory read must be %d bytes, got %d", MemorySize, len(current))
	}
	rows := []uint16{}
	for addr := uint16(0); addr < MemorySize; addr += RowSize {
		if !bytes.Equal(img.Row(addr), current[addr:addr+RowSize]) {
			rows = append(rows, addr)
		}
	}
	return rows, nil
}

// AllRows returns the address of every row
func AllRows() []uint16 {
	rows := make([]uint16, 0, RowCount)
	for addr := uint16(0); addr < MemorySize; addr += RowSize {
		rows = append(rows, addr)
	}
	return rows
}
