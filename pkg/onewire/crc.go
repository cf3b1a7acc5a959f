// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package onewire

// CalculateCRC8 computes the Dallas/Maxim CRC-8 used by ROM addresses
func CalculateCRC8(data []byte) uint8 {
	crc := uint8(crc8Initial)
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x01 != 0 {
				crc = (crc >> 1) ^ crc8Polynomial
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// CalculateCRC16 computes the 1-Wire CRC-16 over data, starting from crc.
// Pass 0 to start a new computation.
func CalculateCRC16(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ crc16Polynomial
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// InvertedCRC16 returns the two bytes a device transmits for data: the
// complemented CRC-16, least significant byte first
func InvertedCRC16(data []byte) [CRC16Size]byte {
	crc := ^CalculateCRC16(crc16Initial, data)
	return [CRC16Size]byte{byte(crc), byte(crc >> 8)}
}

// CheckCRC16 reports whether inverted holds the complemented CRC-16 of data,
// as read back from a device
func CheckCRC16(data []byte, inverted []byte) bool {
	if len(inverted) != CRC16Size {
		return false
	}
	want := InvertedCRC16(data)
	return inverted[0] == want[0] && inverted[1] == want[1]
}
