package control

import (
	"context"
	"fmt"
	"log/slog"
	"net"
)

// Handler processes one incoming message. It does not return a value
// over the wire directly; outgoing messages are sent independently via
// Transport.Send (spec.md's transport is asymmetric: one inbound socket,
// one outbound socket, not a request/response RPC).
type Handler func(ctx context.Context, msg Message)

// Transport owns the inbound listen socket and the outbound send socket,
// running a read/decode/dispatch loop over UDP datagrams.
type Transport struct {
	listenConn *net.UDPConn
	sendAddr   *net.UDPAddr
	sendConn   *net.UDPConn
	handler    Handler
}

// NewTransport binds the listen socket and resolves the send address.
func NewTransport(listenIP string, listenPort int, sendIP string, sendPort int) (*Transport, error) {
	listenAddr := &net.UDPAddr{IP: net.ParseIP(listenIP), Port: listenPort}
	conn, err := net.ListenUDP("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s:%d: %w", listenIP, listenPort, err)
	}

	sendAddr := &net.UDPAddr{IP: net.ParseIP(sendIP), Port: sendPort}
	sendConn, err := net.DialUDP("udp", nil, sendAddr)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("dial send target %s:%d: %w", sendIP, sendPort, err)
	}

	return &Transport{listenConn: conn, sendAddr: sendAddr, sendConn: sendConn}, nil
}

// SetHandler registers the callback invoked for every decoded message.
func (t *Transport) SetHandler(h Handler) {
	t.handler = h
}

// ListenAddr returns the bound listen address, useful when the caller
// requested an ephemeral port (port 0) and needs to know what was chosen.
func (t *Transport) ListenAddr() *net.UDPAddr {
	return t.listenConn.LocalAddr().(*net.UDPAddr)
}

// Serve reads datagrams until ctx is cancelled. Each datagram is decoded
// and dispatched synchronously to the handler; the control surface has
// no concurrent-request semantics to preserve ordering of ingest and
// invoke commands against each other.
func (t *Transport) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		t.listenConn.Close()
	}()

	buf := make([]byte, 64*1024)
	for {
		n, _, err := t.listenConn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("control transport read error", slog.String("error", err.Error()))
			continue
		}

		msg, err := Decode(buf[:n])
		if err != nil {
			slog.Warn("control transport decode error", slog.String("error", err.Error()))
			continue
		}

		if t.handler != nil {
			t.handler(ctx, msg)
		}
	}
}

// Send encodes and sends a message to the configured outgoing address.
func (t *Transport) Send(m Message) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = t.sendConn.Write(data)
	return err
}

// Close releases both sockets.
func (t *Transport) Close() error {
	err1 := t.listenConn.Close()
	err2 := t.sendConn.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
