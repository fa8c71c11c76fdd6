package client

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvstore/internal/protocol"
	"kvstore/internal/transport"
)

// newPipeSession wires a Session against the server side of a net.Pipe,
// returning the session and the peer conn a test can act as "the server" on.
func newPipeSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	clientSide, serverSide := net.Pipe()

	s := &Session{
		dataTimeout: 200 * time.Millisecond,
		pending:     make(map[protocol.CommandID]ResultCallback),
		closed:      make(chan struct{}),
	}
	s.conn = clientSide
	s.sender = transport.NewSender(clientSide)
	s.receiver = transport.NewReceiver(clientSide, s.dataTimeout, s.handleResult, s.handleClose)
	go s.receiver.Run()

	t.Cleanup(func() { clientSide.Close(); serverSide.Close() })
	return s, serverSide
}

func TestSessionSendCommandDuplicateIDRejected(t *testing.T) {
	s, peer := newPipeSession(t)
	go io.Copy(io.Discard, peer)

	err := s.Insert(1, "a", "1", func(bool, string) {})
	require.NoError(t, err)

	err = s.Insert(1, "b", "2", func(bool, string) {})
	assert.ErrorIs(t, err, ErrCommandIDInUse)
}

func TestSessionDispatchesResultToCallback(t *testing.T) {
	s, peer := newPipeSession(t)

	results := make(chan string, 1)
	err := s.Get(7, "k", func(ok bool, value string) {
		if ok {
			results <- value
		} else {
			results <- "<failed>"
		}
	})
	require.NoError(t, err)

	// Drain the outbound command frame so the pipe doesn't deadlock, then
	// reply as if we were the server.
	go func() {
		hdr, err := protocol.ReadHeader(peer)
		if err != nil {
			return
		}
		body := make([]byte, hdr.Size)
		io.ReadFull(peer, body)

		res, err := protocol.NewResultMessage(7, protocol.ResultGetSuccess, "value-for-k")
		require.NoError(t, err)
		payload := protocol.EncodeResult(res)
		protocol.WriteHeader(peer, uint32(len(payload)))
		peer.Write(payload)
	}()

	select {
	case v := <-results:
		assert.Equal(t, "value-for-k", v)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result callback")
	}
}

func TestSessionUnknownCommandIDIsIgnored(t *testing.T) {
	s, peer := newPipeSession(t)

	called := make(chan struct{}, 1)
	err := s.Get(1, "k", func(bool, string) { called <- struct{}{} })
	require.NoError(t, err)

	go func() {
		hdr, err := protocol.ReadHeader(peer)
		if err != nil {
			return
		}
		body := make([]byte, hdr.Size)
		io.ReadFull(peer, body)

		// Reply with a different, unregistered command id.
		res, _ := protocol.NewResultMessage(999, protocol.ResultGetSuccess, "ignored")
		payload := protocol.EncodeResult(res)
		protocol.WriteHeader(peer, uint32(len(payload)))
		peer.Write(payload)
	}()

	select {
	case <-called:
		t.Fatal("callback for unregistered command id should not fire")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSessionSendCommandBeforeConnectFails(t *testing.T) {
	s := NewSession(0)
	err := s.Get(1, "k", func(bool, string) {})
	assert.ErrorIs(t, err, ErrNotConnected)
}
