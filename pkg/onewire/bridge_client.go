// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package onewire

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	bridgeHandshakeTimeout = 10 * time.Second
	bridgeDialTimeout      = 15 * time.Second
	bridgeRequestTimeout   = 5 * time.Second
)

// BridgeBus is a Bus whose master lives behind a WebSocket bridge.
//
// A background reader receives responses and answers the server's
// keepalive pings. Any transport error or missed response closes the
// connection, which releases the remote bus for the next client.
type BridgeBus struct {
	conn    *websocket.Conn
	url     string
	timeout time.Duration
	closed  bool

	responses chan []byte
	stop      chan struct{} // closed by shutdown
	done      chan struct{} // closed when readLoop exits
	readErr   error         // set before done is closed
}

// DialBridge connects to a bridge, authenticating with HTTP Basic auth when
// a username and password are given
func DialBridge(bridgeURL, username, password string, skipSSLVerify bool) (*BridgeBus, error) {
	u, err := url.Parse(bridgeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: bridgeHandshakeTimeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), bridgeDialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, bridgeURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("bridge connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("bridge connection failed: %w", err)
	}

	b := &BridgeBus{
		conn:      conn,
		url:       bridgeURL,
		timeout:   bridgeRequestTimeout,
		responses: make(chan []byte, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go b.readLoop()
	return b, nil
}

// URL returns the bridge address
func (b *BridgeBus) URL() string {
	return b.url
}

// Reset resets the remote bus
func (b *BridgeBus) Reset() error {
	_, err := b.roundTrip(opReset, nil, 0)
	return err
}

// Write writes p to the remote bus
func (b *BridgeBus) Write(p []byte) error {
	for len(p) > 0 {
		n := min(len(p), MaxBridgeTransfer)
		if _, err := b.roundTrip(opWrite, p[:n], 0); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Read reads len(p) bytes from the remote bus
func (b *BridgeBus) Read(p []byte) error {
	for len(p) > 0 {
		n := min(len(p), MaxBridgeTransfer)
		data, err := b.roundTrip(opRead, nil, n)
		if err != nil {
			return err
		}
		if len(data) != n {
			return fmt.Errorf("bridge returned %d bytes, requested %d", len(data), n)
		}
		copy(p, data)
		p = p[n:]
	}
	return nil
}

// Depower releases the remote bus
func (b *BridgeBus) Depower() error {
	_, err := b.roundTrip(opDepower, nil, 0)
	return err
}

// Close closes the bridge connection, handing the bus to the next client
func (b *BridgeBus) Close() error {
	return b.shutdown()
}

func (b *BridgeBus) shutdown() error {
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.stop)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = b.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return b.conn.Close()
}

// readLoop delivers binary messages to roundTrip. Reading keeps the default
// ping handler running while the caller is idle.
func (b *BridgeBus) readLoop() {
	defer close(b.done)
	for {
		messageType, msg, err := b.conn.ReadMessage()
		if err != nil {
			b.readErr = err
			return
		}
		// Only binary messages carry responses
		if messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case b.responses <- msg:
		case <-b.stop:
			return
		}
	}
}

func (b *BridgeBus) roundTrip(op uint8, data []byte, n int) ([]byte, error) {
	if b.closed {
		return nil, ErrBusClosed
	}

	req, err := encodeBridgeRequest(op, data, n)
	if err != nil {
		return nil, err
	}

	b.conn.SetWriteDeadline(time.Now().Add(b.timeout))
	if err := b.conn.WriteMessage(websocket.BinaryMessage, req); err != nil {
		b.shutdown()
		return nil, fmt.Errorf("bridge write: %w", err)
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case msg := <-b.responses:
		return decodeBridgeResponse(msg)
	case <-b.done:
		b.shutdown()
		return nil, fmt.Errorf("bridge read: %w", b.readErr)
	case <-timer.C:
		// A late response would answer the wrong request
		b.shutdown()
		return nil, fmt.Errorf("%w: no bridge response within %s", ErrTimeout, b.timeout)
	}
}
