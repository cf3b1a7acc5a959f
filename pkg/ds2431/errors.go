// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package ds2431

import (
	"errors"
	"fmt"
)

// Result classifies the outcome of a write
type Result int

// Write results
const (
	ResultSuccess Result = iota
	ResultPreconditionViolation
	ResultStagingMismatch
	ResultCommitFailure
	ResultRetryExhausted
	ResultBusFault
)

// String returns the human-readable name of the result
func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultPreconditionViolation:
		return "precondition violation"
	case ResultStagingMismatch:
		return "staging mismatch"
	case ResultCommitFailure:
		return "commit failure"
	case ResultRetryExhausted:
		return "retry exhausted"
	case ResultBusFault:
		return "bus fault"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// WriteError describes a failed write. The chip's EEPROM is untouched for
// every result except ResultCommitFailure, where the programming state of
// the row is unknown and the whole write must be repeated.
type WriteError struct {
	Result  Result
	Address uint16
	Detail  string
	Err     error
}

func (e *WriteError) Error() string {
	msg := fmt.Sprintf("write 0x%02X: %s", e.Address, e.Result)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying bus error, if any
func (e *WriteError) Unwrap() error {
	return e.Err
}

// ResultOf maps an error returned by Device.Write to its Result. Errors that
// are not WriteErrors count as bus faults.
func ResultOf(err error) Result {
	if err == nil {
		return ResultSuccess
	}
	var we *WriteError
	if errors.As(err, &we) {
		return we.Result
	}
	return ResultBusFault
}

func writeErr(result Result, address uint16, detail string) *WriteError {
	return &WriteError{Result: result, Address: address, Detail: detail}
}

func busFault(address uint16, phase string, err error) *WriteError {
	return &WriteError{Result: ResultBusFault, Address: address, Detail: phase, Err: err}
}
