// PowerSNMP - SNMP library for Go
// Автор: Волков Олег, ООО "Пауэр Си"
// Author: Volkov Oleg, PowerC LLC
// License: MIT (commercial version with support available)
// Лицензия: MIT (доступна коммерческая версия с поддержкой)
package powersnmp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// Transport moves raw SNMP messages. Receive blocks until a datagram from
// the last destination arrives, the timeout expires (an error matching
// ErrTimeout) or ctx is done.
type Transport interface {
	Send(dest string, msg []byte) error
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
	Close() error
}

// UDPTransport is a Transport over one unconnected UDP socket.
type UDPTransport struct {
	conn net.PacketConn

	mu       sync.Mutex
	resolved map[string]*net.UDPAddr
	peer     *net.UDPAddr
	closed   bool

	rmu sync.Mutex
	buf []byte
}

// NewUDPTransport listens on localAddr ("" picks an ephemeral port).
func NewUDPTransport(localAddr string) (*UDPTransport, error) {
	if localAddr == "" {
		localAddr = ":0"
	}
	conn, err := net.ListenPacket("udp", localAddr)
	if err != nil {
		return nil, err
	}
	return &UDPTransport{
		conn:     conn,
		resolved: make(map[string]*net.UDPAddr),
		buf:      make([]byte, MaxDatagramSize),
	}, nil
}

func (t *UDPTransport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// Send resolves dest once, remembers it as the only accepted source of
// replies and writes msg.
func (t *UDPTransport) Send(dest string, msg []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	addr, ok := t.resolved[dest]
	if !ok {
		var err error
		//Разрешение имени может занять время
		addr, err = net.ResolveUDPAddr("udp", dest)
		if err != nil {
			t.mu.Unlock()
			return err
		}
		t.resolved[dest] = addr
	}
	t.peer = addr
	t.mu.Unlock()

	n, err := t.conn.WriteTo(msg, addr)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return fmt.Errorf("short write: %d of %d octets", n, len(msg))
	}
	return nil
}

func (t *UDPTransport) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	closed, peer := t.closed, t.peer
	t.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	t.rmu.Lock()
	defer t.rmu.Unlock()
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		n, src, err := t.conn.ReadFrom(t.buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				return nil, ErrTimeout
			}
			if errors.Is(err, net.ErrClosed) {
				return nil, ErrClosed
			}
			return nil, err
		}
		// Датаграммы от других источников пропускаем
		if ua, ok := src.(*net.UDPAddr); ok && peer != nil && (!ua.IP.Equal(peer.IP) || ua.Port != peer.Port) {
			continue
		}
		return copyBytes(t.buf[:n]), nil
	}
}

func (t *UDPTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return t.conn.Close()
}
