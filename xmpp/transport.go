// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package xmpp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport carries whole XML frames between the engine and the
// server. The production implementation is a WebSocket subprotocol
// connection (RFC 7395) where every WebSocket text message is exactly
// one framed element; tests substitute an in-memory implementation.
type Transport interface {
	// ReadFrame returns the next inbound frame. It blocks until a
	// frame arrives, the context deadline passes, or the transport
	// closes.
	ReadFrame(ctx context.Context) ([]byte, error)

	// WriteFrame sends one frame. Safe for concurrent use.
	WriteFrame(ctx context.Context, frame []byte) error

	// Close tears down the connection. Unblocks pending reads.
	Close() error
}

// wsSubprotocol is the registered WebSocket subprotocol name for XMPP.
const wsSubprotocol = "xmpp"

// defaultWriteTimeout bounds a single frame write when the caller's
// context carries no deadline.
const defaultWriteTimeout = 30 * time.Second

// DialTransport connects a WebSocket transport to the given ws:// or
// wss:// URL, negotiating the xmpp subprotocol.
func DialTransport(ctx context.Context, url string) (Transport, error) {
	dialer := websocket.Dialer{
		Subprotocols:     []string{wsSubprotocol},
		HandshakeTimeout: 30 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("xmpp: dialing %s: %w", url, err)
	}
	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn *websocket.Conn

	// writeMu serializes writes; gorilla connections support one
	// concurrent writer.
	writeMu sync.Mutex
}

func (t *wsTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("xmpp: setting read deadline: %w", err)
	}

	_, frame, err := t.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("xmpp: reading frame: %w", err)
	}
	return frame, nil
}

func (t *wsTransport) WriteFrame(ctx context.Context, frame []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("xmpp: setting write deadline: %w", err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("xmpp: writing frame: %w", err)
	}
	return nil
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
