package ds2431

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func testImage(t *testing.T) *Image {
	t.Helper()
	data := make([]byte, MemorySize)
	for i := range data {
		data[i] = byte(i * 3)
	}
	img, err := NewImage(data)
	if err != nil {
		t.Fatalf("NewImage() error = %v", err)
	}
	return img
}

func TestNewImage_WrongSize(t *testing.T) {
	for _, size := range []int{0, RowSize, MemorySize - 1, MemorySize + 1} {
		if _, err := NewImage(make([]byte, size)); err == nil {
			t.Errorf("NewImage(%d bytes) error = nil, want error", size)
		}
	}
}

func TestEncodeImage_Decode(t *testing.T) {
	tests := []struct {
		name       string
		hasAddress bool
		comment    string
	}{
		{name: "data only"},
		{name: "with address", hasAddress: true},
		{name: "with comment", hasAddress: true, comment: "burner calibration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := testImage(t)
			img.Comment = tt.comment
			if tt.hasAddress {
				img.Address = DefaultSimulatorAddress
				img.HasAddress = true
			}

			encoded, err := EncodeImage(img)
			if err != nil {
				t.Fatalf("EncodeImage() error = %v", err)
			}
			decoded, err := DecodeImage(encoded)
			if err != nil {
				t.Fatalf("DecodeImage() error = %v", err)
			}
			if !reflect.DeepEqual(decoded, img) {
				t.Errorf("DecodeImage() = %+v, want %+v", decoded, img)
			}
		})
	}
}

func TestDecodeImage_RawBinary(t *testing.T) {
	raw := bytes.Repeat([]byte{0xA5}, MemorySize)
	img, err := DecodeImage(raw)
	if err != nil {
		t.Fatalf("DecodeImage() error = %v", err)
	}
	if img.HasAddress {
		t.Error("raw image has an address")
	}
	if !bytes.Equal(img.Data[:], raw) {
		t.Error("raw image data mismatch")
	}
}

func TestDecodeImage_Invalid(t *testing.T) {
	badAddress := DefaultSimulatorAddress
	badAddress[7] ^= 0xFF
	badCRC, err := cbor.Marshal(imageFile{Address: badAddress[:], Data: make([]byte, MemorySize)})
	if err != nil {
		t.Fatal(err)
	}
	shortData, err := cbor.Marshal(imageFile{Data: make([]byte, RowSize)})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "not cbor", data: []byte{0xFF, 0xFF, 0xFF}},
		{name: "address CRC", data: badCRC},
		{name: "short data", data: shortData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeImage(tt.data); err == nil {
				t.Error("DecodeImage() error = nil, want error")
			}
		})
	}
}

func TestImage_ChangedRows(t *testing.T) {
	img := testImage(t)
	current := make([]byte, MemorySize)
	copy(current, img.Data[:])

	rows, err := img.ChangedRows(current)
	if err != nil {
		t.Fatalf("ChangedRows() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("ChangedRows() = %v, want none", rows)
	}

	current[0x09] ^= 0xFF
	current[0x7F] ^= 0xFF
	rows, err = img.ChangedRows(current)
	if err != nil {
		t.Fatalf("ChangedRows() error = %v", err)
	}
	want := []uint16{0x08, 0x78}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("ChangedRows() = %v, want %v", rows, want)
	}

	if _, err := img.ChangedRows(current[:RowSize]); err == nil {
		t.Error("ChangedRows() on a partial read error = nil, want error")
	}
}

func TestImage_LoadThroughDevice(t *testing.T) {
	img := testImage(t)
	sim := NewDefaultSimulator()
	dev, _ := newTestDevice(sim)

	current, err := dev.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	rows, err := img.ChangedRows(current)
	if err != nil {
		t.Fatalf("ChangedRows() error = %v", err)
	}
	for _, addr := range rows {
		if err := dev.Write(addr, img.Row(addr), true); err != nil {
			t.Fatalf("Write(0x%02X) error = %v", addr, err)
		}
	}
	if sim.Memory != img.Data {
		t.Error("memory does not match image after load")
	}
}

func TestAllRows(t *testing.T) {
	rows := AllRows()
	if len(rows) != RowCount {
		t.Fatalf("AllRows() returned %d rows, want %d", len(rows), RowCount)
	}
	for i, addr := range rows {
		if addr != uint16(i*RowSize) {
			t.Errorf("AllRows()[%d] = 0x%02X, want 0x%02X", i, addr, i*RowSize)
		}
	}
}
