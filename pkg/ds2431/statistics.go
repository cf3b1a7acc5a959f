// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package ds2431

import (
	"fmt"
	"time"
)

// Statistics tracks write outcomes and how often the bus forced extra
// verification. A nil *Statistics ignores updates.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalWrites       uint64
	Committed         uint64
	Preconditions     uint64
	StagingMismatches uint64
	CommitFailures    uint64
	RetriesExhausted  uint64
	BusFaults         uint64
	ForcedVerifies    uint64
	CRCRetries        uint64

	// Rates (calculated)
	WriteRate float64 // writes/sec
	ErrorRate float64 // failed writes/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

func (s *Statistics) recordWrite(result Result) {
	if s == nil {
		return
	}
	s.TotalWrites++

	switch result {
	case ResultSuccess:
		s.Committed++
	case ResultPreconditionViolation:
		s.Preconditions++
	case ResultStagingMismatch:
		s.StagingMismatches++
	case ResultCommitFailure:
		s.CommitFailures++
	case ResultRetryExhausted:
		s.RetriesExhausted++
	default:
		s.BusFaults++
	}

	s.LastUpdateTime = time.Now()
}

func (s *Statistics) recordForcedVerify() {
	if s == nil {
		return
	}
	s.ForcedVerifies++
}

func (s *Statistics) recordCRCRetry() {
	if s == nil {
		return
	}
	s.CRCRetries++
}

// Failed returns the number of writes that did not commit
func (s *Statistics) Failed() uint64 {
	return s.TotalWrites - s.Committed
}

// CalculateRates calculates write and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.WriteRate = float64(s.TotalWrites) / elapsed
		s.ErrorRate = float64(s.Failed()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var committedPercent float64
	if s.TotalWrites > 0 {
		committedPercent = float64(s.Committed) * 100.0 / float64(s.TotalWrites)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Write Statistics (%.1f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Writes:    %8d\n", s.TotalWrites)
	result += fmt.Sprintf("Committed:       %8d (%.1f%%)\n", s.Committed, committedPercent)

	if s.Preconditions > 0 {
		result += fmt.Sprintf("Preconditions:   %8d\n", s.Preconditions)
	}
	if s.StagingMismatches > 0 {
		result += fmt.Sprintf("Staging Errors:  %8d\n", s.StagingMismatches)
	}
	if s.CommitFailures > 0 {
		result += fmt.Sprintf("Commit Failures: %8d\n", s.CommitFailures)
	}
	if s.RetriesExhausted > 0 {
		result += fmt.Sprintf("CRC Exhausted:   %8d\n", s.RetriesExhausted)
	}
	if s.BusFaults > 0 {
		result += fmt.Sprintf("Bus Faults:      %8d\n", s.BusFaults)
	}
	if s.ForcedVerifies > 0 || s.CRCRetries > 0 {
		result += fmt.Sprintf("Forced Verifies: %8d\n", s.ForcedVerifies)
		result += fmt.Sprintf("CRC Retries:     %8d\n", s.CRCRetries)
	}

	result += fmt.Sprintf("Write Rate:      %8.1f writes/sec\n", s.WriteRate)
	result += "======================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
