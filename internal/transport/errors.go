// Package transport implements the framed message sender and receiver that
// sit directly on a net.Conn: a per-connection outbound FIFO and an
// inbound header/body state machine with a between-fields timeout.
package transport

import (
	"errors"
	"io"
	"net"
	"strings"
)

// isClosedConnError reports whether err represents the peer closing the
// connection (EOF, broken pipe, connection reset) as opposed to some other
// transport fault.
func isClosedConnError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "use of closed network connection")
}
