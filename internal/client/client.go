// Package client implements the TCP client session: connect, issue
// commands, and demultiplex results back to their originating callback by
// command id. Grounded on original_source/common/ClientSession.cpp's
// resolve/connect/strand-serialized send and receive flow, adapted to Go's
// net.Dial plus the shared transport.Sender/Receiver pair.
package client

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"kvstore/internal/protocol"
	"kvstore/internal/transport"
)

// ErrAlreadyConnected is returned by Connect when called on a session that
// already has an open socket.
var ErrAlreadyConnected = errors.New("client: already connected")

// ErrCommandIDInUse is returned by SendCommand when the given command id
// already has a result callback pending.
var ErrCommandIDInUse = errors.New("client: command id already in processing")

// ErrNotConnected is returned by SendCommand before Connect has succeeded.
var ErrNotConnected = errors.New("client: not connected")

// ResultCallback receives the outcome of a previously submitted command:
// whether it succeeded and, for a successful GET, the returned value.
type ResultCallback func(ok bool, value string)

// Session is a single client connection to the store server. All exported
// methods are safe for concurrent use; result demultiplexing is serialized
// internally via a dedicated mutex, the Go analogue of the original's
// strand.
type Session struct {
	dataTimeout time.Duration

	mu       sync.Mutex
	conn     net.Conn
	sender   *transport.Sender
	receiver *transport.Receiver
	pending  map[protocol.CommandID]ResultCallback

	closed chan struct{}
}

// NewSession builds an unconnected Session. dataTimeout bounds the gap
// between a result header and its body; transport.DefaultDataTimeout is used
// when <=0.
func NewSession(dataTimeout time.Duration) *Session {
	return &Session{
		dataTimeout: dataTimeout,
		pending:     make(map[protocol.CommandID]ResultCallback),
		closed:      make(chan struct{}),
	}
}

// Connect resolves and dials hostname:port, then starts the session's
// sender and receiver. It blocks until the TCP handshake completes or
// fails; there is no separate async resolve/connect split, since net.Dial
// already does both.
func (s *Session) Connect(hostname string, port int) error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.mu.Unlock()

	address := fmt.Sprintf("%s:%d", hostname, port)
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return fmt.Errorf("client: connect to %s: %w", address, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.sender = transport.NewSender(conn)
	s.receiver = transport.NewReceiver(conn, s.dataTimeout, s.handleResult, s.handleClose)
	s.mu.Unlock()

	go s.receiver.Run()
	return nil
}

// SendCommand submits cmd and registers callback to receive its eventual
// result. Sending a command whose id already has a callback pending fails
// fast, mirroring the original's duplicate-id guard, rather than silently
// overwriting the earlier callback.
func (s *Session) SendCommand(cmd protocol.CommandMessage, callback ResultCallback) error {
	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if _, exists := s.pending[cmd.ID]; exists {
		s.mu.Unlock()
		log.Printf("client: command with id %d is already in processing", cmd.ID)
		return ErrCommandIDInUse
	}
	s.pending[cmd.ID] = callback
	sender := s.sender
	s.mu.Unlock()

	sender.SendMessage(protocol.EncodeCommand(cmd))
	return nil
}

// Insert, Update, Get, and Delete are convenience wrappers around
// SendCommand for each of the four supported operations.

func (s *Session) Insert(id protocol.CommandID, key, value string, callback ResultCallback) error {
	return s.sendTyped(id, protocol.CommandInsert, key, value, callback)
}

func (s *Session) Update(id protocol.CommandID, key, value string, callback ResultCallback) error {
	return s.sendTyped(id, protocol.CommandUpdate, key, value, callback)
}

func (s *Session) Get(id protocol.CommandID, key string, callback ResultCallback) error {
	return s.sendTyped(id, protocol.CommandGet, key, "", callback)
}

func (s *Session) Delete(id protocol.CommandID, key string, callback ResultCallback) error {
	return s.sendTyped(id, protocol.CommandDelete, key, "", callback)
}

func (s *Session) sendTyped(id protocol.CommandID, typ protocol.CommandType, key, value string, callback ResultCallback) error {
	cmd, err := protocol.NewCommandMessage(id, typ, key, value)
	if err != nil {
		return err
	}
	return s.SendCommand(cmd, callback)
}

// handleResult decodes an inbound frame and dispatches it to the matching
// pending callback, exactly once, then forgets it.
func (s *Session) handleResult(payload []byte) {
	res, err := protocol.DecodeResult(payload)
	if err != nil {
		log.Printf("client: malformed result: %v", err)
		return
	}

	s.mu.Lock()
	callback, exists := s.pending[res.CommandID]
	if exists {
		delete(s.pending, res.CommandID)
	}
	s.mu.Unlock()

	if !exists {
		log.Printf("client: result for unknown command received: %d", res.CommandID)
		return
	}

	callback(res.Code.Success(), res.Value.String())
}

func (s *Session) handleClose() {
	s.mu.Lock()
	if s.sender != nil {
		s.sender.Close()
	}
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	s.mu.Unlock()
}

// Closed returns a channel closed once the session's connection has been
// observed closed.
func (s *Session) Closed() <-chan struct{} {
	return s.closed
}

// Close closes the underlying connection and stops the sender.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
