package server

import (
	"log"
	"net"
	"sync"
	"time"

	"kvstore/internal/protocol"
	"kvstore/internal/transport"
)

// Session binds one accepted connection's receiver, sender, and the shared
// command processor together. A Session decodes inbound command frames,
// submits them to the processor, and encodes whatever result callback the
// processor invokes back onto the connection's sender — mirroring the
// teacher's per-connection handleConnection loop, but split across the
// receiver/processor/sender goroutines instead of one blocking read loop.
type Session struct {
	conn      net.Conn
	sender    *transport.Sender
	receiver  *transport.Receiver
	processor *Processor

	closeOnce sync.Once
	onClose   func(*Session)
}

// NewSession wires conn into a running session against processor. dataTimeout
// bounds the gap between a command frame's header and its body
// (transport.DefaultDataTimeout when <= 0). onClose is invoked exactly once
// when the connection is observed closed, so the acceptor can remove the
// session from its registry.
func NewSession(conn net.Conn, processor *Processor, dataTimeout time.Duration, onClose func(*Session)) *Session {
	s := &Session{
		conn:      conn,
		processor: processor,
		onClose:   onClose,
	}
	s.sender = transport.NewSender(conn)
	s.receiver = transport.NewReceiver(conn, dataTimeout, s.handleFrame, s.handleClose)
	return s
}

// Run starts the session's receive loop; it blocks until the connection
// closes, so callers typically invoke it in its own goroutine.
func (s *Session) Run() {
	s.receiver.Run()
}

func (s *Session) handleFrame(payload []byte) {
	cmd, err := protocol.DecodeCommand(payload)
	if err != nil {
		log.Printf("server: malformed command from %s: %v", s.conn.RemoteAddr(), err)
		return
	}

	s.processor.ProcessCommand(cmd, func(res protocol.ResultMessage) {
		s.sender.SendMessage(protocol.EncodeResult(res))
	})
}

func (s *Session) handleClose() {
	s.closeOnce.Do(func() {
		s.sender.Close()
		s.conn.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}
