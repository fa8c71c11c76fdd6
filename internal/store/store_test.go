package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 500 * time.Millisecond

func openTestMap(t *testing.T, size int64) *Map {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.map")
	m, err := Open(path, size)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestInsertGetDelete(t *testing.T) {
	m := openTestMap(t, 0)

	require.NoError(t, m.Insert("k1", "v1", testTimeout))

	v, err := m.Get("k1", testTimeout)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	err = m.Insert("k1", "v2", testTimeout)
	assert.ErrorIs(t, err, ErrKeyExists)

	require.NoError(t, m.Update("k1", "v2", testTimeout))
	v, err = m.Get("k1", testTimeout)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	require.NoError(t, m.Delete("k1", testTimeout))
	_, err = m.Get("k1", testTimeout)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestUpdateMissingFails(t *testing.T) {
	m := openTestMap(t, 0)
	err := m.Update("missing", "v", testTimeout)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestDeleteMissingFails(t *testing.T) {
	m := openTestMap(t, 0)
	err := m.Delete("missing", testTimeout)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestGetIsIdempotent(t *testing.T) {
	m := openTestMap(t, 0)
	require.NoError(t, m.Insert("k", "v", testTimeout))

	v1, err := m.Get("k", testTimeout)
	require.NoError(t, err)
	v2, err := m.Get("k", testTimeout)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestOutOfSegmentAndGrow(t *testing.T) {
	// Small segment: a handful of records fit before exhaustion.
	m := openTestMap(t, 1024)

	var lastErr error
	inserted := 0
	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("key-%d", i)
		if err := m.Insert(key, "some-value", testTimeout); err != nil {
			lastErr = err
			break
		}
		inserted++
	}
	require.ErrorIs(t, lastErr, ErrOutOfSegment)

	statBefore, err := m.Stat(testTimeout)
	require.NoError(t, err)
	require.NoError(t, m.Grow())
	statAfter, err := m.Stat(testTimeout)
	require.NoError(t, err)
	assert.Equal(t, statBefore.SegmentSize*2, statAfter.SegmentSize)

	// Retry the insert that previously failed.
	require.NoError(t, m.Insert(fmt.Sprintf("key-%d", inserted), "some-value", testTimeout))

	// Everything inserted before the grow must still be there.
	for i := 0; i < inserted; i++ {
		v, err := m.Get(fmt.Sprintf("key-%d", i), testTimeout)
		require.NoError(t, err)
		assert.Equal(t, "some-value", v)
	}
}

func TestFlushAndReopenDurability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durable.map")

	m, err := Open(path, 0)
	require.NoError(t, err)
	require.NoError(t, m.Insert("a", "1", testTimeout))
	require.NoError(t, m.Insert("b", "2", testTimeout))
	require.NoError(t, m.Update("a", "11", testTimeout))
	require.NoError(t, m.Flush(testTimeout))
	require.NoError(t, m.Close())

	reopened, err := Open(path, 0)
	require.NoError(t, err)
	defer reopened.Close()

	va, err := reopened.Get("a", testTimeout)
	require.NoError(t, err)
	assert.Equal(t, "11", va)

	vb, err := reopened.Get("b", testTimeout)
	require.NoError(t, err)
	assert.Equal(t, "2", vb)
}

func TestEmptyKeyRejected(t *testing.T) {
	m := openTestMap(t, 0)
	assert.ErrorIs(t, m.Insert("", "v", testTimeout), ErrEmptyKey)
	assert.ErrorIs(t, m.Update("", "v", testTimeout), ErrEmptyKey)
	_, err := m.Get("", testTimeout)
	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.ErrorIs(t, m.Delete("", testTimeout), ErrEmptyKey)
}

func TestEmptyValueAllowed(t *testing.T) {
	m := openTestMap(t, 0)
	require.NoError(t, m.Insert("k", "", testTimeout))
	v, err := m.Get("k", testTimeout)
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestStatRecordCountAfterUpdate(t *testing.T) {
	m := openTestMap(t, 0)

	require.NoError(t, m.Insert("k", "v1", testTimeout))
	stat, err := m.Stat(testTimeout)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stat.RecordCount)

	require.NoError(t, m.Update("k", "v2", testTimeout))
	stat, err = m.Stat(testTimeout)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stat.RecordCount)

	require.NoError(t, m.Delete("k", testTimeout))
	stat, err = m.Stat(testTimeout)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stat.RecordCount)
}

func TestLockTimeoutUnderWriterContention(t *testing.T) {
	m := openTestMap(t, 0)

	// Hold the writer lock directly to simulate a long-running mutator.
	require.NoError(t, m.lock.lock(time.Second))
	defer m.lock.unlock()

	err := m.Insert("k", "v", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)
}
