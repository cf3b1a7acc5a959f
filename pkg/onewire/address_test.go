package onewire

import (
	"errors"
	"testing"
)

var testAddress = Address{0x2D, 0x3D, 0x2C, 0x1B, 0x0A, 0x00, 0x00, 0x6F}

func TestNewAddress(t *testing.T) {
	addr, err := NewAddress(0x2D, 0x00000A1B2C3D)
	if err != nil {
		t.Fatalf("NewAddress() error = %v", err)
	}
	if addr != testAddress {
		t.Errorf("NewAddress() = % X, want % X", addr[:], testAddress[:])
	}
	if !addr.Valid() {
		t.Error("Valid() = false, want true")
	}
	if addr.Family() != 0x2D {
		t.Errorf("Family() = 0x%02X, want 0x2D", addr.Family())
	}
	if addr.Serial() != 0x00000A1B2C3D {
		t.Errorf("Serial() = 0x%X, want 0xA1B2C3D", addr.Serial())
	}
	if addr.CRC() != 0x6F {
		t.Errorf("CRC() = 0x%02X, want 0x6F", addr.CRC())
	}
	if addr.Uint64() != 0x6F00000A1B2C3D2D {
		t.Errorf("Uint64() = 0x%016X, want 0x6F00000A1B2C3D2D", addr.Uint64())
	}

	if _, err := NewAddress(0x2D, 1<<48); err == nil {
		t.Error("NewAddress() with 49-bit serial error = nil, want error")
	}
}

func TestAddress_String(t *testing.T) {
	if got := testAddress.String(); got != "2d-00000a1b2c3d" {
		t.Errorf("String() = %q, want %q", got, "2d-00000a1b2c3d")
	}
}

func TestAddress_IsZero(t *testing.T) {
	var zero Address
	if !zero.IsZero() {
		t.Error("zero address IsZero() = false")
	}
	if testAddress.IsZero() {
		t.Error("test address IsZero() = true")
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Address
		wantErr bool
	}{
		{name: "w1 form", input: "2d-00000a1b2c3d", want: testAddress},
		{name: "w1 form upper case", input: "2D-00000A1B2C3D", want: testAddress},
		{name: "w1 form padded", input: "  2d-00000a1b2c3d\n", want: testAddress},
		{name: "full ROM code", input: "6f00000a1b2c3d2d", want: testAddress},
		{name: "full ROM code with prefix", input: "0x6F00000A1B2C3D2D", want: testAddress},
		{name: "full ROM code bad CRC", input: "6e00000a1b2c3d2d", wantErr: true},
		{name: "short serial", input: "2d-0a1b2c3d", wantErr: true},
		{name: "trailing garbage", input: "2d-00000a1b2c3g", wantErr: true},
		{name: "bad family", input: "2-00000a1b2c3d", wantErr: true},
		{name: "too short", input: "6f00000a1b2c3d", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseAddress(%q) = %s, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddress(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAddress(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseAddress_StringRoundTrip(t *testing.T) {
	got, err := ParseAddress(testAddress.String())
	if err != nil {
		t.Fatalf("ParseAddress() error = %v", err)
	}
	if got != testAddress {
		t.Errorf("ParseAddress(String()) = %s, want %s", got, testAddress)
	}
}

func TestAddressFromBytes(t *testing.T) {
	if _, err := AddressFromBytes(testAddress[:7]); err == nil {
		t.Error("AddressFromBytes() with 7 bytes error = nil, want error")
	}

	bad := testAddress
	bad[3] ^= 0x01
	if _, err := AddressFromBytes(bad[:]); !errors.Is(err, ErrCRC) {
		t.Errorf("AddressFromBytes() error = %v, want ErrCRC", err)
	}

	got, err := AddressFromBytes(testAddress[:])
	if err != nil {
		t.Fatalf("AddressFromBytes() error = %v", err)
	}
	if got != testAddress {
		t.Errorf("AddressFromBytes() = %s, want %s", got, testAddress)
	}
}
