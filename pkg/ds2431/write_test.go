package ds2431

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/scribe/pkg/onewire"
)

// newTestDevice returns a device on sim that records programming delays
// instead of sleeping
func newTestDevice(sim *Simulator, opts ...Option) (*Device, *[]time.Duration) {
	delays := []time.Duration{}
	opts = append([]Option{WithSleep(func(d time.Duration) {
		delays = append(delays, d)
	})}, opts...)
	return New(sim, opts...), &delays
}

func row(start byte) []byte {
	data := make([]byte, RowSize)
	for i := range data {
		data[i] = start + byte(i)
	}
	return data
}

func TestWrite_PreconditionViolation(t *testing.T) {
	tests := []struct {
		name    string
		address uint16
		data    []byte
	}{
		{name: "unaligned address", address: 0x01, data: row(0)},
		{name: "unaligned last byte", address: 0x7F, data: row(0)},
		{name: "unaligned mid row", address: 0x0C, data: row(0)},
		{name: "address past memory", address: MemorySize, data: row(0)},
		{name: "address far out", address: 0xFFF8, data: row(0)},
		{name: "empty data", address: 0x00, data: nil},
		{name: "data longer than row", address: 0x00, data: make([]byte, RowSize+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewDefaultSimulator()
			dev, delays := newTestDevice(sim)

			err := dev.Write(tt.address, tt.data, true)
			if ResultOf(err) != ResultPreconditionViolation {
				t.Fatalf("Write() result = %v, want %v (err %v)", ResultOf(err), ResultPreconditionViolation, err)
			}
			if len(sim.Transactions) != 0 {
				t.Errorf("bus saw %d transactions, want none", len(sim.Transactions))
			}
			if sim.Depowers != 0 {
				t.Errorf("Depower called %d times, want 0", sim.Depowers)
			}
			if len(*delays) != 0 {
				t.Errorf("programming delay used %d times, want 0", len(*delays))
			}
		})
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	for _, verify := range []bool{false, true} {
		sim := NewDefaultSimulator()
		dev, _ := newTestDevice(sim)

		for addr := uint16(0); addr < MemorySize; addr += RowSize {
			data := row(byte(addr))
			if err := dev.Write(addr, data, verify); err != nil {
				t.Fatalf("Write(0x%02X, verify=%v) error = %v", addr, verify, err)
			}

			got := make([]byte, RowSize)
			if err := dev.Read(addr, got); err != nil {
				t.Fatalf("Read(0x%02X) error = %v", addr, err)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("Read(0x%02X) = % X, want % X", addr, got, data)
			}
		}
	}
}

func TestWrite_TransactionSequence(t *testing.T) {
	tests := []struct {
		name     string
		verify   bool
		wantRead int // bytes read from the scratchpad transaction
	}{
		{name: "header only", verify: false, wantRead: 3},
		{name: "verified", verify: true, wantRead: 3 + RowSize + 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewDefaultSimulator()
			dev, delays := newTestDevice(sim)

			if err := dev.Write(0x20, row(0x40), tt.verify); err != nil {
				t.Fatalf("Write() error = %v", err)
			}

			want := []byte{CmdWriteScratchpad, CmdReadScratchpad, CmdCopyScratchpad}
			if !bytes.Equal(sim.Commands(), want) {
				t.Fatalf("commands = % X, want % X", sim.Commands(), want)
			}
			if got := sim.Transactions[1].Read; got != tt.wantRead {
				t.Errorf("read scratchpad read %d bytes, want %d", got, tt.wantRead)
			}
			copyTx := sim.Transactions[2]
			wantAuth := []byte{0x20, 0x00, StatusPass}
			if !bytes.Equal(copyTx.Written, wantAuth) {
				t.Errorf("copy authorization = % X, want % X", copyTx.Written, wantAuth)
			}
			if len(*delays) != 1 || (*delays)[0] != ProgramDelay {
				t.Errorf("delays = %v, want [%v]", *delays, ProgramDelay)
			}
			if sim.Depowers == 0 {
				t.Error("bus was not depowered")
			}
		})
	}
}

func TestWrite_StagingCRCErrorForcesVerification(t *testing.T) {
	sim := NewDefaultSimulator()
	sim.CorruptWriteCRC = 1
	stats := NewStatistics()
	dev, _ := newTestDevice(sim, WithStatistics(stats))

	data := row(0x10)
	if err := dev.Write(0x08, data, false); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	want := []byte{CmdWriteScratchpad, CmdReadScratchpad, CmdCopyScratchpad}
	if !bytes.Equal(sim.Commands(), want) {
		t.Fatalf("commands = % X, want % X", sim.Commands(), want)
	}
	if got := sim.Transactions[1].Read; got != 3+RowSize+2 {
		t.Errorf("read scratchpad read %d bytes, want full verification", got)
	}
	if !bytes.Equal(sim.Memory[0x08:0x10], data) {
		t.Errorf("memory = % X, want % X", sim.Memory[0x08:0x10], data)
	}
	if stats.ForcedVerifies != 1 {
		t.Errorf("ForcedVerifies = %d, want 1", stats.ForcedVerifies)
	}
}

func TestWrite_BadStatusForcesVerification(t *testing.T) {
	sim := NewDefaultSimulator()
	sim.StagingFault = func(pad *Scratchpad) {
		pad.Status |= statusPartial
	}
	dev, _ := newTestDevice(sim)

	err := dev.Write(0x00, row(0), false)
	if ResultOf(err) != ResultStagingMismatch {
		t.Fatalf("Write() result = %v, want %v (err %v)", ResultOf(err), ResultStagingMismatch, err)
	}
	if got := sim.Transactions[1].Read; got != 3+RowSize+2 {
		t.Errorf("read scratchpad read %d bytes, want full verification", got)
	}
	if n := sim.CountCommand(CmdCopyScratchpad); n != 0 {
		t.Errorf("copy scratchpad issued %d times, want 0", n)
	}
}

func TestWrite_StagingMismatch(t *testing.T) {
	tests := []struct {
		name  string
		fault func(pad *Scratchpad)
	}{
		{
			name:  "data altered",
			fault: func(pad *Scratchpad) { pad.Data[3] ^= 0x01 },
		},
		{
			name:  "target address altered",
			fault: func(pad *Scratchpad) { pad.TargetAddress ^= RowSize },
		},
		{
			name:  "already copied",
			fault: func(pad *Scratchpad) { pad.Status |= statusCopied },
		},
		{
			name:  "short transfer",
			fault: func(pad *Scratchpad) { pad.Status = 0x05 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewDefaultSimulator()
			sim.StagingFault = tt.fault
			before := sim.Memory
			dev, delays := newTestDevice(sim)

			err := dev.Write(0x30, row(0xA0), true)
			if ResultOf(err) != ResultStagingMismatch {
				t.Fatalf("Write() result = %v, want %v (err %v)", ResultOf(err), ResultStagingMismatch, err)
			}
			if n := sim.CountCommand(CmdCopyScratchpad); n != 0 {
				t.Errorf("copy scratchpad issued %d times, want 0", n)
			}
			if sim.Memory != before {
				t.Error("memory changed after a staging mismatch")
			}
			if len(*delays) != 0 {
				t.Errorf("programming delay used %d times, want 0", len(*delays))
			}
			if sim.Depowers == 0 {
				t.Error("bus was not depowered")
			}
		})
	}
}

func TestWrite_CommitFailure(t *testing.T) {
	sim := NewDefaultSimulator()
	sim.FailCommit = true
	dev, _ := newTestDevice(sim)

	err := dev.Write(0x00, row(0), true)
	if ResultOf(err) != ResultCommitFailure {
		t.Fatalf("Write() result = %v, want %v (err %v)", ResultOf(err), ResultCommitFailure, err)
	}
	if n := sim.CountCommand(CmdCopyScratchpad); n != 1 {
		t.Errorf("copy scratchpad issued %d times, want exactly 1", n)
	}
	if sim.Depowers == 0 {
		t.Error("bus was not depowered")
	}
}

func TestWrite_ReadCRCRetry(t *testing.T) {
	tests := []struct {
		name        string
		corrupt     int
		wantResult  Result
		wantReads   int
		wantCopies  int
		wantRetries uint64
	}{
		{name: "clean", corrupt: 0, wantResult: ResultSuccess, wantReads: 1, wantCopies: 1},
		{name: "one bad read", corrupt: 1, wantResult: ResultSuccess, wantReads: 2, wantCopies: 1, wantRetries: 1},
		{name: "always bad", corrupt: 100, wantResult: ResultRetryExhausted, wantReads: ReadRetries, wantCopies: 0, wantRetries: ReadRetries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewDefaultSimulator()
			sim.CorruptReadCRC = tt.corrupt
			stats := NewStatistics()
			dev, _ := newTestDevice(sim, WithStatistics(stats))

			err := dev.Write(0x40, row(0x55), true)
			if ResultOf(err) != tt.wantResult {
				t.Fatalf("Write() result = %v, want %v (err %v)", ResultOf(err), tt.wantResult, err)
			}
			if n := sim.CountCommand(CmdReadScratchpad); n != tt.wantReads {
				t.Errorf("read scratchpad issued %d times, want %d", n, tt.wantReads)
			}
			if n := sim.CountCommand(CmdCopyScratchpad); n != tt.wantCopies {
				t.Errorf("copy scratchpad issued %d times, want %d", n, tt.wantCopies)
			}
			if stats.CRCRetries != tt.wantRetries {
				t.Errorf("CRCRetries = %d, want %d", stats.CRCRetries, tt.wantRetries)
			}
		})
	}
}

func TestWrite_ShortDataKeepsRow(t *testing.T) {
	sim := NewDefaultSimulator()
	copy(sim.Memory[0x10:0x18], row(0x80))
	dev, _ := newTestDevice(sim)

	if err := dev.Write(0x10, []byte{0x01, 0x02, 0x03}, true); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	want := []byte{0x01, 0x02, 0x03, 0x83, 0x84, 0x85, 0x86, 0x87}
	if !bytes.Equal(sim.Memory[0x10:0x18], want) {
		t.Errorf("memory = % X, want % X", sim.Memory[0x10:0x18], want)
	}
	if sim.Commands()[0] != CmdReadMemory {
		t.Errorf("first command = 0x%02X, want read memory", sim.Commands()[0])
	}
}

func TestWrite_ShortDataUnstableRead(t *testing.T) {
	tests := []struct {
		name       string
		corrupt    int
		wantResult Result
		wantReads  int
	}{
		{name: "clean reads", corrupt: 0, wantResult: ResultSuccess, wantReads: 2},
		{name: "first read corrupted", corrupt: 1, wantResult: ResultSuccess, wantReads: 3},
		{name: "reads never agree", corrupt: 2, wantResult: ResultBusFault, wantReads: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewDefaultSimulator()
			copy(sim.Memory[0x10:0x18], row(0x80))
			sim.CorruptMemoryReads = tt.corrupt
			dev, _ := newTestDevice(sim)

			err := dev.Write(0x10, []byte{0x01, 0x02}, false)
			if got := ResultOf(err); got != tt.wantResult {
				t.Fatalf("Write() result = %v, want %v (err %v)", got, tt.wantResult, err)
			}
			if n := sim.CountCommand(CmdReadMemory); n != tt.wantReads {
				t.Errorf("read memory issued %d times, want %d", n, tt.wantReads)
			}

			want := []byte{0x01, 0x02, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87}
			if tt.wantResult != ResultSuccess {
				if !errors.Is(err, ErrUnstableRead) {
					t.Errorf("Write() error = %v, want ErrUnstableRead in chain", err)
				}
				if n := sim.CountCommand(CmdWriteScratchpad); n != 0 {
					t.Errorf("write scratchpad issued %d times, want 0", n)
				}
				want = row(0x80)
			}
			if !bytes.Equal(sim.Memory[0x10:0x18], want) {
				t.Errorf("memory = % X, want % X", sim.Memory[0x10:0x18], want)
			}
		})
	}
}

func TestWrite_NoPresence(t *testing.T) {
	sim := NewDefaultSimulator()
	sim.Absent = true
	stats := NewStatistics()
	dev, _ := newTestDevice(sim, WithStatistics(stats))

	err := dev.Write(0x00, row(0), false)
	if ResultOf(err) != ResultBusFault {
		t.Fatalf("Write() result = %v, want %v (err %v)", ResultOf(err), ResultBusFault, err)
	}
	if !errors.Is(err, onewire.ErrNoPresence) {
		t.Errorf("Write() error = %v, want ErrNoPresence in chain", err)
	}
	if sim.Depowers == 0 {
		t.Error("bus was not depowered")
	}
	if stats.BusFaults != 1 {
		t.Errorf("BusFaults = %d, want 1", stats.BusFaults)
	}
}

func TestWrite_MatchROM(t *testing.T) {
	other, err := onewire.NewAddress(FamilyCode, 0x000000000001)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("selected device", func(t *testing.T) {
		sim := NewDefaultSimulator()
		dev, _ := newTestDevice(sim, WithAddress(sim.ROM))

		if err := dev.Write(0x00, row(7), true); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		for i, tx := range sim.Transactions {
			if tx.ROM != onewire.CmdMatchROM {
				t.Errorf("transaction %d ROM command = 0x%02X, want match ROM", i, tx.ROM)
			}
		}
		if !bytes.Equal(sim.Memory[0:8], row(7)) {
			t.Errorf("memory = % X, want % X", sim.Memory[0:8], row(7))
		}
	})

	t.Run("other device", func(t *testing.T) {
		sim := NewDefaultSimulator()
		dev, _ := newTestDevice(sim, WithAddress(other))

		err := dev.Write(0x00, row(7), false)
		if ResultOf(err) != ResultRetryExhausted {
			t.Fatalf("Write() result = %v, want %v (err %v)", ResultOf(err), ResultRetryExhausted, err)
		}
		if n := sim.CountCommand(CmdCopyScratchpad); n != 0 {
			t.Errorf("copy scratchpad reached the chip %d times, want 0", n)
		}
	})
}

func TestWrite_Statistics(t *testing.T) {
	sim := NewDefaultSimulator()
	stats := NewStatistics()
	dev, _ := newTestDevice(sim, WithStatistics(stats))

	_ = dev.Write(0x00, row(0), false)
	_ = dev.Write(0x03, row(0), false)
	sim.FailCommit = true
	_ = dev.Write(0x08, row(0), false)

	if stats.TotalWrites != 3 {
		t.Errorf("TotalWrites = %d, want 3", stats.TotalWrites)
	}
	if stats.Committed != 1 {
		t.Errorf("Committed = %d, want 1", stats.Committed)
	}
	if stats.Preconditions != 1 {
		t.Errorf("Preconditions = %d, want 1", stats.Preconditions)
	}
	if stats.CommitFailures != 1 {
		t.Errorf("CommitFailures = %d, want 1", stats.CommitFailures)
	}
	if stats.Failed() != 2 {
		t.Errorf("Failed() = %d, want 2", stats.Failed())
	}
}

func TestWriteMemory(t *testing.T) {
	sim := NewDefaultSimulator()
	dev, _ := newTestDevice(sim)

	data := []byte{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6, 0xA7, 0xA8, 0xA9}
	if err := dev.WriteMemory(0x05, data, true); err != nil {
		t.Fatalf("WriteMemory() error = %v", err)
	}

	want := bytes.Repeat([]byte{0xFF}, 0x18)
	copy(want[0x05:], data)
	if !bytes.Equal(sim.Memory[:0x18], want) {
		t.Errorf("memory = % X, want % X", sim.Memory[:0x18], want)
	}
	if n := sim.CountCommand(CmdCopyScratchpad); n != 2 {
		t.Errorf("copy scratchpad issued %d times, want 2", n)
	}
}

func TestWriteMemory_PastEnd(t *testing.T) {
	sim := NewDefaultSimulator()
	dev, _ := newTestDevice(sim)

	err := dev.WriteMemory(MemorySize-4, row(0), false)
	if ResultOf(err) != ResultPreconditionViolation {
		t.Fatalf("WriteMemory() result = %v, want %v", ResultOf(err), ResultPreconditionViolation)
	}
	if len(sim.Transactions) != 0 {
		t.Errorf("bus saw %d transactions, want none", len(sim.Transactions))
	}
}

func TestWriteMemory_StopsAtFirstFailure(t *testing.T) {
	sim := NewDefaultSimulator()
	sim.FailCommit = true
	dev, _ := newTestDevice(sim)

	err := dev.WriteMemory(0x00, make([]byte, 3*RowSize), false)
	if ResultOf(err) != ResultCommitFailure {
		t.Fatalf("WriteMemory() result = %v, want %v", ResultOf(err), ResultCommitFailure)
	}
	var we *WriteError
	if !errors.As(err, &we) || we.Address != 0x00 {
		t.Errorf("WriteMemory() error = %v, want failure at row 0x00", err)
	}
	if n := sim.CountCommand(CmdCopyScratchpad); n != 1 {
		t.Errorf("copy scratchpad issued %d times, want 1", n)
	}
}

func TestResultOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Result
	}{
		{name: "nil", err: nil, want: ResultSuccess},
		{name: "write error", err: writeErr(ResultCommitFailure, 0, ""), want: ResultCommitFailure},
		{name: "bus fault", err: busFault(0, "reset", onewire.ErrNoPresence), want: ResultBusFault},
		{name: "plain error", err: errors.New("boom"), want: ResultBusFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResultOf(tt.err); got != tt.want {
				t.Errorf("ResultOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteError_Error(t *testing.T) {
	err := busFault(0x18, "read scratchpad", onewire.ErrTimeout)
	want := "write 0x18: bus fault: read scratchpad: onewire: adapter timeout"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, onewire.ErrTimeout) {
		t.Error("errors.Is(ErrTimeout) = false, want true")
	}
}
