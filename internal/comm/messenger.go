package comm

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"
)

// Messenger is the blocking typed channel the router core consumes. Receive
// suspends until the peer delivers a message; Send transmits exactly one
// reply. Implementations guarantee reliable, ordered delivery of discrete
// messages or surface an error.
type Messenger interface {
	Receive() (Message, error)
	Send(Message) error
}

// ConnMessenger frames Messages as newline-delimited JSON envelopes over a
// stream connection.
//
// Receive intentionally carries no deadline: the protocol is strict
// request/reply against a reliable peer, and a silent peer blocks forever.
// Writes are serialised by a mutex and bounded by writeTimeout when set.
type ConnMessenger struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex

	writeTimeout time.Duration
}

// NewConnMessenger wraps an open stream connection.
//
// Precondition: conn must be a valid, open connection.
// Postcondition: Returns a ConnMessenger ready for Receive and Send.
func NewConnMessenger(conn net.Conn, writeTimeout time.Duration) *ConnMessenger {
	return &ConnMessenger{
		conn:         conn,
		reader:       bufio.NewReaderSize(conn, 64*1024),
		writeTimeout: writeTimeout,
	}
}

// Receive blocks until the next frame arrives and decodes it.
//
// Postcondition: Returns the decoded message, or an error (including io.EOF
// when the peer disconnects).
func (m *ConnMessenger) Receive() (Message, error) {
	line, err := m.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	msg, err := Decode(line)
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return msg, nil
}

// Send encodes msg and writes it as a single frame.
//
// Postcondition: Exactly one frame is written, or an error is returned.
func (m *ConnMessenger) Send(msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeTimeout > 0 {
		_ = m.conn.SetWriteDeadline(time.Now().Add(m.writeTimeout))
	}
	if _, err := m.conn.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
//
// Postcondition: The messenger is no longer usable.
func (m *ConnMessenger) Close() error {
	return m.conn.Close()
}

// RemoteAddr returns the peer's network address.
func (m *ConnMessenger) RemoteAddr() net.Addr {
	return m.conn.RemoteAddr()
}

// Acceptor owns the channel's listening socket. The router serves one game
// server peer at a time; Accept blocks until the next peer connects.
type Acceptor struct {
	ln           net.Listener
	writeTimeout time.Duration
}

// Listen binds the channel listener on addr.
//
// Postcondition: Returns an Acceptor ready for Accept, or a non-nil error.
func Listen(addr string, writeTimeout time.Duration) (*Acceptor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return &Acceptor{ln: ln, writeTimeout: writeTimeout}, nil
}

// Accept blocks until a peer connects and returns its messenger.
func (a *Acceptor) Accept() (*ConnMessenger, error) {
	conn, err := a.ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("accepting peer: %w", err)
	}
	return NewConnMessenger(conn, a.writeTimeout), nil
}

// Addr returns the bound listen address.
func (a *Acceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// Close closes the listening socket. Accept unblocks with an error.
func (a *Acceptor) Close() error {
	return a.ln.Close()
}
