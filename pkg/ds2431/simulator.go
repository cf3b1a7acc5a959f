// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package ds2431

import (
	"bytes"

	"github.com/Thermoquad/scribe/pkg/onewire"
)

// Simulator is an in-memory DS2431 sitting alone on a 1-Wire bus. It
// implements onewire.Bus, answers the ROM commands and the four memory
// function commands, and can inject the faults a noisy bus produces.
type Simulator struct {
	ROM    onewire.Address
	Memory [MemorySize]byte

	// Absent makes Reset report no presence pulse
	Absent bool

	// CorruptWriteCRC corrupts the CRC returned by this many Write
	// Scratchpad transfers
	CorruptWriteCRC int

	// CorruptReadCRC corrupts the CRC returned by this many Read
	// Scratchpad transfers
	CorruptReadCRC int

	// CorruptMemoryReads flips a bit in the first byte returned by this many
	// Read Memory transfers. The flipped bit differs between transfers.
	CorruptMemoryReads int

	// StagingFault, when set, runs once after every Write Scratchpad and may
	// alter the staged target address, status and data. The CRC sent for
	// the transfer still covers what was received, as on a chip whose
	// scratchpad is disturbed after the transfer.
	StagingFault func(pad *Scratchpad)

	// FailCommit makes Copy Scratchpad return a bad status without programming
	FailCommit bool

	// Transactions logs every bus transaction since the last ClearLog
	Transactions []Transaction

	// Depowers counts Depower calls
	Depowers int

	state     simState
	romBuf    []byte
	readQueue []byte
	readPos   int
	crcPos    int // index of the first CRC byte in readQueue, or -1

	memAddress uint16
	memFault   byte // XOR mask for the next memory byte read

	scratch     [RowSize]byte
	ta          uint16
	es          byte
	staged      int
	stagedFinal bool
	stagingCRC  []byte
}

// Transaction is one reset-delimited exchange as seen by the chip
type Transaction struct {
	ROM     byte   // ROM command
	Command byte   // memory function command, 0 if none was reached
	Written []byte // bytes written after the function command
	Read    int    // bytes read by the master
}

type simState int

const (
	simIdle simState = iota
	simROM
	simMatch
	simFunction
	simReadMemoryArgs
	simWriteScratchpad
	simCopyArgs
	simReading
	simIgnore
)

// NewSimulator creates a simulated chip with the given ROM code and erased
// (0xFF) memory
func NewSimulator(rom onewire.Address) *Simulator {
	s := &Simulator{ROM: rom, crcPos: -1}
	for i := range s.Memory {
		s.Memory[i] = 0xFF
	}
	// Power-up scratchpad status: nothing staged
	s.es = statusPartial
	return s
}

// DefaultSimulatorAddress is the ROM code used by NewDefaultSimulator
var DefaultSimulatorAddress, _ = onewire.NewAddress(FamilyCode, 0x00000A1B2C3D)

// NewDefaultSimulator creates a simulator with DefaultSimulatorAddress
func NewDefaultSimulator() *Simulator {
	return NewSimulator(DefaultSimulatorAddress)
}

// Reset starts a new transaction
func (s *Simulator) Reset() error {
	s.finishStaging()
	if s.Absent {
		s.state = simIdle
		return onewire.ErrNoPresence
	}
	s.Transactions = append(s.Transactions, Transaction{})
	s.state = simROM
	s.romBuf = s.romBuf[:0]
	s.readQueue = nil
	s.readPos = 0
	s.crcPos = -1
	return nil
}

// Write feeds bytes written by the master
func (s *Simulator) Write(p []byte) error {
	for _, b := range p {
		s.writeByte(b)
	}
	return nil
}

// Read returns bytes driven by the chip. Idle slots read as 0xFF.
func (s *Simulator) Read(p []byte) error {
	for i := range p {
		p[i] = s.readByte()
	}
	if tx := s.current(); tx != nil {
		tx.Read += len(p)
	}
	return nil
}

// Depower counts the call; the simulator has no pull-up
func (s *Simulator) Depower() error {
	s.Depowers++
	return nil
}

// ClearLog forgets recorded transactions
func (s *Simulator) ClearLog() {
	s.Transactions = nil
	s.Depowers = 0
}

// Commands returns the function command of every logged transaction
func (s *Simulator) Commands() []byte {
	cmds := make([]byte, 0, len(s.Transactions))
	for _, tx := range s.Transactions {
		cmds = append(cmds, tx.Command)
	}
	return cmds
}

// CountCommand returns how many logged transactions issued cmd
func (s *Simulator) CountCommand(cmd byte) int {
	n := 0
	for _, tx := range s.Transactions {
		if tx.Command == cmd {
			n++
		}
	}
	return n
}

func (s *Simulator) current() *Transaction {
	if len(s.Transactions) == 0 || s.state == simIdle {
		return nil
	}
	return &s.Transactions[len(s.Transactions)-1]
}

func (s *Simulator) writeByte(b byte) {
	tx := s.current()
	if tx == nil {
		return
	}

	switch s.state {
	case simROM:
		tx.ROM = b
		switch b {
		case onewire.CmdSkipROM:
			s.state = simFunction
		case onewire.CmdMatchROM:
			s.state = simMatch
		case onewire.CmdReadROM:
			s.queue(s.ROM[:], -1)
		default:
			s.state = simIgnore
		}

	case simMatch:
		s.romBuf = append(s.romBuf, b)
		if len(s.romBuf) == onewire.AddressSize {
			if bytes.Equal(s.romBuf, s.ROM[:]) {
				s.state = simFunction
			} else {
				s.state = simIgnore
			}
		}

	case simFunction:
		tx.Command = b
		switch b {
		case CmdReadMemory:
			s.state = simReadMemoryArgs
		case CmdWriteScratchpad:
			s.state = simWriteScratchpad
			s.staged = 0
			s.stagedFinal = false
			s.stagingCRC = []byte{b}
			// Incomplete until data arrives
			s.es = statusPartial
		case CmdReadScratchpad:
			s.queueScratchpad()
		case CmdCopyScratchpad:
			s.state = simCopyArgs
		default:
			s.state = simIgnore
		}

	case simReadMemoryArgs:
		tx.Written = append(tx.Written, b)
		if len(tx.Written) == 2 {
			s.memAddress = uint16(tx.Written[0]) | uint16(tx.Written[1])<<8
			s.state = simReading
			s.readQueue = nil
			s.memFault = 0
			if s.CorruptMemoryReads > 0 {
				s.memFault = 1 << (s.CorruptMemoryReads % 8)
				s.CorruptMemoryReads--
			}
		}

	case simWriteScratchpad:
		tx.Written = append(tx.Written, b)
		s.stagingCRC = append(s.stagingCRC, b)
		switch len(tx.Written) {
		case 1:
			s.ta = uint16(b)
		case 2:
			s.ta |= uint16(b) << 8
		default:
			offset := int(s.ta&statusOffsetMask) + s.staged
			if offset < RowSize {
				s.scratch[offset] = b
				s.staged++
				s.es = byte(offset)
			}
		}

	case simCopyArgs:
		tx.Written = append(tx.Written, b)
		if len(tx.Written) == 3 {
			s.copyScratchpad(tx.Written)
		}

	default:
		tx.Written = append(tx.Written, b)
	}
}

func (s *Simulator) readByte() byte {
	switch s.state {
	case simWriteScratchpad:
		// Master reading after the data: the chip sends the inverted CRC
		s.finishStaging()
		crc := onewire.InvertedCRC16(s.stagingCRC)
		if s.CorruptWriteCRC > 0 {
			s.CorruptWriteCRC--
			crc[0] ^= 0xFF
		}
		s.queue(crc[:], -1)
		return s.readByte()

	case simReading:
		if s.readQueue == nil {
			if s.memAddress >= MemorySize {
				return 0xFF
			}
			b := s.Memory[s.memAddress] ^ s.memFault
			s.memFault = 0
			s.memAddress++
			return b
		}
	}

	if s.readPos >= len(s.readQueue) {
		return 0xFF
	}
	b := s.readQueue[s.readPos]
	if s.readPos == s.crcPos && s.CorruptReadCRC > 0 {
		s.CorruptReadCRC--
		b ^= 0xFF
	}
	s.readPos++
	return b
}

// queue makes data the next bytes read by the master
func (s *Simulator) queue(data []byte, crcPos int) {
	s.state = simReading
	s.readQueue = append([]byte{}, data...)
	s.readPos = 0
	s.crcPos = crcPos
}

func (s *Simulator) queueScratchpad() {
	offset := int(s.ta & statusOffsetMask)
	frame := []byte{CmdReadScratchpad, byte(s.ta), byte(s.ta >> 8), s.es}
	frame = append(frame, s.scratch[offset:]...)
	crc := onewire.InvertedCRC16(frame)

	data := append(frame[1:], crc[:]...)
	s.queue(data, len(frame)-1)
}

// finishStaging closes a Write Scratchpad transfer and applies StagingFault
func (s *Simulator) finishStaging() {
	if s.state != simWriteScratchpad || s.stagedFinal {
		return
	}
	s.stagedFinal = true
	if s.staged == 0 {
		s.es = statusPartial
	}
	if s.StagingFault != nil {
		pad := Scratchpad{TargetAddress: s.ta, Status: s.es, Data: s.scratch[:]}
		s.StagingFault(&pad)
		s.ta = pad.TargetAddress
		s.es = pad.Status
	}
}

func (s *Simulator) copyScratchpad(auth []byte) {
	ack := byte(0xFF)
	authorized := auth[0] == byte(s.ta) && auth[1] == byte(s.ta>>8) && auth[2] == s.es
	if authorized && s.es == StatusPass && s.ta < MemorySize && !s.FailCommit {
		row := s.ta &^ (RowSize - 1)
		copy(s.Memory[row:row+RowSize], s.scratch[:])
		s.es |= statusCopied
		ack = WriteAck
	}
	// The chip keeps driving the status pattern until the next reset
	s.queue([]byte{ack, ack, ack, ack}, -1)
}
