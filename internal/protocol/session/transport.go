package session

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"
)

// SocketState mirrors the datagram socket status register.
type SocketState int

const (
	SocketClosed SocketState = iota
	SocketBound
	SocketError
)

func (s SocketState) String() string {
	switch s {
	case SocketClosed:
		return "closed"
	case SocketBound:
		return "bound"
	case SocketError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport is a best-effort datagram channel owning one socket.
type Transport interface {
	Open(peer netip.AddrPort) error
	State() SocketState
	Send(b []byte, dst netip.AddrPort) (int, error)
	// ReceiveIfAvailable copies one pending datagram into b. ok is false
	// when nothing has arrived.
	ReceiveIfAvailable(b []byte) (n int, src netip.AddrPort, ok bool, err error)
	Close() error
}

var ErrTransportClosed = errors.New("session: transport closed")

// UDPTransport implements Transport over a net.UDPConn.
type UDPTransport struct {
	// LocalAddr is the bind address; ":0" picks an ephemeral port.
	LocalAddr string
	// PollWait bounds how long ReceiveIfAvailable waits for a datagram.
	PollWait time.Duration

	mu    sync.Mutex
	conn  *net.UDPConn
	state SocketState
}

func NewUDPTransport(localAddr string) *UDPTransport {
	return &UDPTransport{LocalAddr: localAddr, PollWait: time.Millisecond}
}

// Open binds the local socket. A failed open leaves the transport closed so
// the next attempt opens again.
func (t *UDPTransport) Open(peer netip.AddrPort) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}
	network := "udp4"
	if peer.Addr().Is6() && !peer.Addr().Is4In6() {
		network = "udp6"
	}
	laddr, err := net.ResolveUDPAddr(network, t.LocalAddr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", t.LocalAddr, err)
	}
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", t.LocalAddr, err)
	}
	t.conn = conn
	t.state = SocketBound
	return nil
}

func (t *UDPTransport) State() SocketState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LocalAddrPort returns the bound address, or the zero value when closed.
func (t *UDPTransport) LocalAddrPort() netip.AddrPort {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return netip.AddrPort{}
	}
	return t.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

func (t *UDPTransport) Send(b []byte, dst netip.AddrPort) (int, error) {
	conn := t.boundConn()
	if conn == nil {
		return 0, ErrTransportClosed
	}
	n, err := conn.WriteToUDPAddrPort(b, dst)
	if err != nil {
		t.fail()
		return n, err
	}
	return n, nil
}

func (t *UDPTransport) ReceiveIfAvailable(b []byte) (int, netip.AddrPort, bool, error) {
	conn := t.boundConn()
	if conn == nil {
		return 0, netip.AddrPort{}, false, ErrTransportClosed
	}
	wait := t.PollWait
	if wait <= 0 {
		wait = time.Millisecond
	}
	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return 0, netip.AddrPort{}, false, err
	}
	n, src, err := conn.ReadFromUDPAddrPort(b)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, netip.AddrPort{}, false, nil
		}
		t.fail()
		return 0, netip.AddrPort{}, false, err
	}
	return n, src, true, nil
}

func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = SocketClosed
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *UDPTransport) boundConn() *net.UDPConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != SocketBound {
		return nil
	}
	return t.conn
}

func (t *UDPTransport) fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		t.state = SocketError
	}
}
