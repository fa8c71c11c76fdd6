package server

import (
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvstore/internal/protocol"
	"kvstore/internal/store"
)

func openTestProcessor(t *testing.T, segmentSize int64) *Processor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "map.db")
	m, err := store.Open(path, segmentSize)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	p := NewProcessor(m, 500*time.Millisecond, time.Hour)
	t.Cleanup(p.Stop)
	return p
}

func process(t *testing.T, p *Processor, cmd protocol.CommandMessage) protocol.ResultMessage {
	t.Helper()
	result := make(chan protocol.ResultMessage, 1)
	p.ProcessCommand(cmd, func(r protocol.ResultMessage) { result <- r })
	select {
	case r := <-result:
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result")
		return protocol.ResultMessage{}
	}
}

func mustCommand(t *testing.T, id uint32, typ protocol.CommandType, key, value string) protocol.CommandMessage {
	t.Helper()
	cmd, err := protocol.NewCommandMessage(id, typ, key, value)
	require.NoError(t, err)
	return cmd
}

func TestProcessorInsertGetDeleteLifecycle(t *testing.T) {
	p := openTestProcessor(t, store.DefaultSegmentSize)

	res := process(t, p, mustCommand(t, 1, protocol.CommandInsert, "a", "1"))
	assert.Equal(t, protocol.ResultInsertSuccess, res.Code)

	res = process(t, p, mustCommand(t, 2, protocol.CommandGet, "a", ""))
	assert.Equal(t, protocol.ResultGetSuccess, res.Code)
	assert.Equal(t, "1", res.Value.String())

	res = process(t, p, mustCommand(t, 3, protocol.CommandUpdate, "a", "2"))
	assert.Equal(t, protocol.ResultUpdateSuccess, res.Code)

	res = process(t, p, mustCommand(t, 4, protocol.CommandGet, "a", ""))
	assert.Equal(t, "2", res.Value.String())

	res = process(t, p, mustCommand(t, 5, protocol.CommandDelete, "a", ""))
	assert.Equal(t, protocol.ResultDeleteSuccess, res.Code)

	res = process(t, p, mustCommand(t, 6, protocol.CommandGet, "a", ""))
	assert.Equal(t, protocol.ResultGetFailed, res.Code)
}

func TestProcessorInsertDuplicateFails(t *testing.T) {
	p := openTestProcessor(t, store.DefaultSegmentSize)

	res := process(t, p, mustCommand(t, 1, protocol.CommandInsert, "a", "1"))
	assert.Equal(t, protocol.ResultInsertSuccess, res.Code)

	res = process(t, p, mustCommand(t, 2, protocol.CommandInsert, "a", "2"))
	assert.Equal(t, protocol.ResultInsertFailed, res.Code)
}

func TestProcessorUpdateMissingFails(t *testing.T) {
	p := openTestProcessor(t, store.DefaultSegmentSize)

	res := process(t, p, mustCommand(t, 1, protocol.CommandUpdate, "missing", "x"))
	assert.Equal(t, protocol.ResultUpdateFailed, res.Code)
}

func TestProcessorDeleteMissingFails(t *testing.T) {
	p := openTestProcessor(t, store.DefaultSegmentSize)

	res := process(t, p, mustCommand(t, 1, protocol.CommandDelete, "missing", ""))
	assert.Equal(t, protocol.ResultDeleteFailed, res.Code)
}

func TestProcessorRejectsGetWithValue(t *testing.T) {
	p := openTestProcessor(t, store.DefaultSegmentSize)

	cmd := protocol.CommandMessage{ID: 1, Type: protocol.CommandGet}
	key, err := protocol.NewLimitedString(protocol.MaxKeySize, "a")
	require.NoError(t, err)
	value, err := protocol.NewLimitedString(protocol.MaxValueSize, "unexpected")
	require.NoError(t, err)
	cmd.Key = key
	cmd.Value = value

	res := process(t, p, cmd)
	assert.Equal(t, protocol.ResultWrongCommandFormat, res.Code)
}

func TestProcessorRejectsEmptyKey(t *testing.T) {
	p := openTestProcessor(t, store.DefaultSegmentSize)

	res := process(t, p, mustCommand(t, 1, protocol.CommandInsert, "", "x"))
	assert.Equal(t, protocol.ResultWrongCommandFormat, res.Code)
}

func TestProcessorRejectsUnknownCommandType(t *testing.T) {
	p := openTestProcessor(t, store.DefaultSegmentSize)

	cmd := mustCommand(t, 1, protocol.CommandUnknown, "a", "")
	res := process(t, p, cmd)
	assert.Equal(t, protocol.ResultUnknownCommand, res.Code)
}

func TestProcessorGrowsSegmentOnExhaustionAndRetries(t *testing.T) {
	p := openTestProcessor(t, 1024)

	for i := 0; i < 200; i++ {
		key := "key" + strconv.Itoa(i)
		res := process(t, p, mustCommand(t, uint32(i+1), protocol.CommandInsert, key, "some-value"))
		if res.Code != protocol.ResultInsertSuccess {
			t.Fatalf("unexpected code %v at iteration %d", res.Code, i)
		}
	}
}
