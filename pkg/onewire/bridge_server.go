// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package onewire

import (
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client liveness. The server pings an idle client and drops it when no
// request or pong arrives within bridgePongWait.
const (
	bridgePongWait  = 60 * time.Second
	bridgeWriteWait = 10 * time.Second

	// maxBridgeMessage fits one request carrying MaxBridgeTransfer bytes
	maxBridgeMessage = MaxBridgeTransfer + 16
)

// BridgeServer exposes a local Bus to BridgeBus clients over WebSocket.
//
// A client owns the bus for the lifetime of its connection, so multi-phase
// sequences such as an EEPROM write are never interleaved with another
// client's traffic. Connections arriving while the bus is owned are refused
// with 409 Conflict.
type BridgeServer struct {
	bus      Bus
	username string
	password string
	logger   *slog.Logger
	upgrader websocket.Upgrader
	owner    sync.Mutex
	pongWait time.Duration
}

// NewBridgeServer creates a bridge for bus. Basic auth is enforced when
// username is not empty. A nil logger discards log output.
func NewBridgeServer(bus Bus, username, password string, logger *slog.Logger) *BridgeServer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BridgeServer{
		bus:      bus,
		username: username,
		password: password,
		logger:   logger.With("component", "bridge"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pongWait: bridgePongWait,
	}
}

// ServeHTTP upgrades the request and serves bus requests until the client
// disconnects
func (s *BridgeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="onewire"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if !s.owner.TryLock() {
		s.logger.Warn("bus busy, refusing client", "remote", r.RemoteAddr)
		http.Error(w, "bus is owned by another client", http.StatusConflict)
		return
	}
	defer s.owner.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	s.logger.Info("client connected", "remote", r.RemoteAddr)
	requests := 0
	defer func() {
		// Never leave the strong pull-up on for the next owner
		if err := s.bus.Depower(); err != nil {
			s.logger.Warn("depower after session failed", "err", err)
		}
		s.logger.Info("client disconnected", "remote", r.RemoteAddr, "requests", requests)
	}()

	conn.SetReadLimit(maxBridgeMessage)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})
	stop := make(chan struct{})
	defer close(stop)
	go s.keepAlive(conn, stop)

	for {
		conn.SetReadDeadline(time.Now().Add(s.pongWait))
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("dropping client", "remote", r.RemoteAddr, "err", err)
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		requests++
		resp, err := s.handle(data)
		if err != nil {
			s.logger.Error("failed to encode response", "err", err)
			return
		}
		conn.SetWriteDeadline(time.Now().Add(bridgeWriteWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, resp); err != nil {
			return
		}
	}
}

// keepAlive pings the client until stop is closed. WriteControl may run
// alongside the serving loop's writes.
func (s *BridgeServer) keepAlive(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.pongWait / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(bridgeWriteWait)); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

func (s *BridgeServer) authorized(r *http.Request) bool {
	if s.username == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.password)) == 1
	return userOK && passOK
}

// handle executes one request against the bus and encodes the response
func (s *BridgeServer) handle(data []byte) ([]byte, error) {
	req, err := decodeBridgeRequest(data)
	if err != nil {
		return encodeBridgeResponse(nil, fmt.Errorf("%w: %v", errBadRequest, err))
	}

	var out []byte
	switch req.Op {
	case opReset:
		err = s.bus.Reset()
	case opWrite:
		err = s.bus.Write(req.Data)
	case opRead:
		out = make([]byte, req.N)
		err = s.bus.Read(out)
		if err != nil {
			out = nil
		}
	case opDepower:
		err = s.bus.Depower()
	default:
		err = fmt.Errorf("%w: unknown op 0x%02X", errBadRequest, req.Op)
	}

	if err != nil {
		s.logger.Debug("bus request failed", "op", req.Op, "err", err)
	}
	return encodeBridgeResponse(out, err)
}
