// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package onewire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Bridge protocol
//
// A bridge forwards bus primitives to a 1-Wire master attached to another
// host. Each primitive is one binary WebSocket message carrying a CBOR
// array; the bridge answers every request with exactly one response.
//
//	request:  [op, data, n]
//	response: [data, code, message]

// Bridge operations
const (
	opReset   = 0x01
	opWrite   = 0x02
	opRead    = 0x03
	opDepower = 0x04
)

// Bridge response codes, so sentinel errors survive the round trip
const (
	codeOK         = 0x00
	codeNoPresence = 0x01
	codeCollision  = 0x02
	codeTimeout    = 0x03
	codeBadRequest = 0x04
	codeFailure    = 0xFF
)

// MaxBridgeTransfer limits the bytes moved by a single bridge request
const MaxBridgeTransfer = 256

type bridgeRequest struct {
	_    struct{} `cbor:",toarray"`
	Op   uint8
	Data []byte
	N    uint16
}

type bridgeResponse struct {
	_       struct{} `cbor:",toarray"`
	Data    []byte
	Code    uint8
	Message string
}

func encodeBridgeRequest(op uint8, data []byte, n int) ([]byte, error) {
	if len(data) > MaxBridgeTransfer || n > MaxBridgeTransfer || n < 0 {
		return nil, fmt.Errorf("bridge transfer too large: %d bytes (max %d)", max(len(data), n), MaxBridgeTransfer)
	}
	return cbor.Marshal(bridgeRequest{Op: op, Data: data, N: uint16(n)})
}

func decodeBridgeRequest(data []byte) (bridgeRequest, error) {
	var req bridgeRequest
	if err := cbor.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if len(req.Data) > MaxBridgeTransfer || req.N > MaxBridgeTransfer {
		return req, fmt.Errorf("bridge transfer too large")
	}
	return req, nil
}

func encodeBridgeResponse(data []byte, err error) ([]byte, error) {
	resp := bridgeResponse{Data: data, Code: errorCode(err)}
	if err != nil {
		resp.Message = err.Error()
	}
	return cbor.Marshal(resp)
}

func decodeBridgeResponse(data []byte) ([]byte, error) {
	var resp bridgeResponse
	if err := cbor.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if resp.Code == codeOK {
		return resp.Data, nil
	}
	return nil, codeError(resp.Code, resp.Message)
}

func errorCode(err error) uint8 {
	switch {
	case err == nil:
		return codeOK
	case errors.Is(err, ErrNoPresence):
		return codeNoPresence
	case errors.Is(err, ErrCollision):
		return codeCollision
	case errors.Is(err, ErrTimeout):
		return codeTimeout
	case errors.Is(err, errBadRequest):
		return codeBadRequest
	default:
		return codeFailure
	}
}

func codeError(code uint8, message string) error {
	var base error
	switch code {
	case codeNoPresence:
		base = ErrNoPresence
	case codeCollision:
		base = ErrCollision
	case codeTimeout:
		base = ErrTimeout
	case codeBadRequest:
		base = errBadRequest
	default:
		return fmt.Errorf("bridge: %s", message)
	}
	if message == "" || message == base.Error() {
		return base
	}
	return fmt.Errorf("%w (bridge: %s)", base, message)
}

var errBadRequest = errors.New("onewire: bad bridge request")
