package transport

import (
	"io"
	"log"
	"net"
	"time"

	"kvstore/internal/protocol"
)

// DefaultDataTimeout is the maximum time allowed between a header being
// read and its body completing.
const DefaultDataTimeout = 1000 * time.Millisecond

// Receiver drives a per-socket inbound state machine: read an 8-byte
// header, then read its declared body within DataTimeout of the header
// completing. A body read that times out cancels the in-flight read (via
// a read deadline, Go's analogue of asio's socket.cancel()) and resumes
// at the next header; it does not close the connection. Only an EOF or a
// reset/broken-pipe error — at header or body — closes the session.
type Receiver struct {
	conn        net.Conn
	dataTimeout time.Duration
	onMessage   func(payload []byte)
	onClose     func()
	bufs        *bufferPool
}

// NewReceiver builds a Receiver. onMessage is invoked with each frame's raw
// payload; decoding and dispatch are the caller's responsibility, and a
// decode failure there must not stop the receive loop. onClose is invoked
// exactly once, when the transport is observed closed.
func NewReceiver(conn net.Conn, dataTimeout time.Duration, onMessage func([]byte), onClose func()) *Receiver {
	if dataTimeout <= 0 {
		dataTimeout = DefaultDataTimeout
	}
	return &Receiver{conn: conn, dataTimeout: dataTimeout, onMessage: onMessage, onClose: onClose, bufs: newBufferPool()}
}

// Run executes the receive loop until the connection closes. Callers
// typically invoke this in its own goroutine.
func (r *Receiver) Run() {
	for {
		if err := r.conn.SetReadDeadline(time.Time{}); err != nil {
			r.onClose()
			return
		}

		hdr, err := protocol.ReadHeader(r.conn)
		if err != nil {
			if isClosedConnError(err) {
				r.onClose()
				return
			}
			log.Printf("transport: failed to receive message header: %v", err)
			continue
		}

		if !hdr.Valid() {
			log.Printf("transport: invalid header, resynchronizing")
			continue
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(r.dataTimeout)); err != nil {
			r.onClose()
			return
		}

		body := r.bufs.get(int(hdr.Size))
		_, err = io.ReadFull(r.conn, body)
		if err != nil {
			r.bufs.put(body)
			if isTimeoutErr(err) {
				log.Printf("transport: body read timed out after header, resynchronizing")
				continue
			}
			if isClosedConnError(err) {
				r.onClose()
				return
			}
			log.Printf("transport: unexpected error reading body: %v", err)
			continue
		}

		r.onMessage(body)
		r.bufs.put(body)
	}
}

func isTimeoutErr(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
