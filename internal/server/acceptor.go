package server

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"kvstore/internal/store"
)

// Acceptor listens on a TCP address and spawns one Session per accepted
// connection, all sharing a single Processor bound to one persistent map.
// Grounded on the teacher's GoFastServer.Start/Stop accept loop.
type Acceptor struct {
	host string
	port int

	listener    net.Listener
	processor   *Processor
	dataTimeout time.Duration

	mu       sync.Mutex
	sessions map[*Session]struct{}
	running  bool
}

// NewAcceptor builds an Acceptor bound to the given host/port and persistent
// map. lockTimeout and reportInterval are forwarded to the underlying
// command processor; dataTimeout bounds each session's header-to-body gap.
func NewAcceptor(host string, port int, m *store.Map, lockTimeout, dataTimeout, reportInterval time.Duration) *Acceptor {
	return &Acceptor{
		host:        host,
		port:        port,
		processor:   NewProcessor(m, lockTimeout, reportInterval),
		dataTimeout: dataTimeout,
		sessions:    make(map[*Session]struct{}),
	}
}

// Start binds the listener and begins accepting connections. It returns an
// error if the listener cannot be bound, and nil once Stop has been called;
// any other accept error is logged and accepting continues. Callers
// typically invoke Start in its own goroutine.
func (a *Acceptor) Start() error {
	address := fmt.Sprintf("%s:%d", a.host, a.port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", address, err)
	}
	a.listener = listener

	a.mu.Lock()
	a.running = true
	a.mu.Unlock()

	log.Printf("server: listening on %s", address)

	for {
		conn, err := a.listener.Accept()
		if err != nil {
			a.mu.Lock()
			running := a.running
			a.mu.Unlock()
			if !running {
				return nil
			}
			log.Printf("server: accept error: %v", err)
			continue
		}
		a.spawn(conn)
	}
}

func (a *Acceptor) spawn(conn net.Conn) {
	session := NewSession(conn, a.processor, a.dataTimeout, a.remove)

	a.mu.Lock()
	a.sessions[session] = struct{}{}
	a.mu.Unlock()

	log.Printf("server: accepted connection from %s", conn.RemoteAddr())
	go session.Run()
}

func (a *Acceptor) remove(s *Session) {
	a.mu.Lock()
	delete(a.sessions, s)
	a.mu.Unlock()
}

// Stop closes the listener and every open session, then halts the command
// processor after flushing the store one final time.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	a.running = false
	listener := a.listener
	sessions := make([]*Session, 0, len(a.sessions))
	for s := range a.sessions {
		sessions = append(sessions, s)
	}
	a.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	for _, s := range sessions {
		s.handleClose()
	}

	a.processor.Stop()
}
