package smtptest

import (
	"net"
	"sync"
)

// SilentServer accepts TCP connections and never writes a byte, like a
// firewall that lets SYNs through to a wedged daemon. Use it to exercise
// client deadlines.
type SilentServer struct {
	listener net.Listener

	mu     sync.Mutex
	conns  []net.Conn
	closed bool
}

// NewSilentServer starts accepting connections on a random loopback port.
// Callers must Close it.
func NewSilentServer() *SilentServer {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	s := &SilentServer{listener: l}
	go s.accept()
	return s
}

func (s *SilentServer) accept() {
	for {
		c, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			c.Close()
		} else {
			s.conns = append(s.conns, c)
		}
		s.mu.Unlock()
	}
}

// Accepted returns how many connections the server is holding open.
func (s *SilentServer) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close stops accepting and drops every held connection.
func (s *SilentServer) Close() {
	s.listener.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

// Address returns the host:port of the server.
func (s *SilentServer) Address() string {
	return s.listener.Addr().String()
}

// Port returns the port the server listens on.
func (s *SilentServer) Port() int {
	return portOf(s.listener.Addr())
}

// ClosedPort returns a loopback port that nothing listens on, so dialing it
// is refused.
func ClosedPort() int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	p := portOf(l.Addr())
	l.Close()
	return p
}
