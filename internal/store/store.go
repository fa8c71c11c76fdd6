package store

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
)

// DefaultSegmentSize is the initial backing file size used when none is
// configured: 5 MiB.
const DefaultSegmentSize int64 = 5 * 1024 * 1024

// growLockTimeout bounds Grow's own writer-lock acquisition. Grow runs
// infrequently (only on allocator exhaustion) so a generous timeout is
// safe; it still fails closed rather than blocking forever.
const growLockTimeout = 5 * time.Second

// Stat reports the persistent map's segment usage.
type Stat struct {
	SegmentSize int64
	FreeBytes   int64
	RecordCount int64
}

// Map is the persistent, memory-mapped, reader-writer-locked key-value
// container. All exported methods are safe for concurrent use.
type Map struct {
	path string

	// mu guards the data mapping during Grow, which unmaps it and swaps in
	// a new mapping of the resized file. Insert/Update/Delete/Get take the
	// timed RW lock below for their own synchronization; mu additionally
	// protects the file/data handles themselves from being swapped out
	// from under a call that's already past its lock acquisition.
	mu   sync.RWMutex
	file *os.File
	data mmap.MMap

	lock *timedRWLock

	// index maps key -> offset of its current live record inside data.
	// Rebuilt from the segment's record log on Open and carried forward
	// (unchanged) across Grow, since Grow only extends the file.
	index map[string]int64

	writeCursor int64
	recordCount int64
}

// Open creates-or-opens the backing file at path, mapping it at size bytes
// if newly created (DefaultSegmentSize when size <= 0).
func Open(path string, size int64) (*Map, error) {
	if size <= 0 {
		size = DefaultSegmentSize
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("store: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		if err := file.Truncate(size); err != nil {
			file.Close()
			return nil, fmt.Errorf("store: truncate %s: %w", path, err)
		}
	}

	data, err := mmap.Map(file, mmap.RDWR, 0)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("store: mmap %s: %w", path, err)
	}

	m := &Map{
		path: path,
		file: file,
		data: data,
		lock: newTimedRWLock(),
	}

	if err := m.loadOrInit(); err != nil {
		data.Unmap()
		file.Close()
		return nil, err
	}

	return m, nil
}

// loadOrInit reads the superblock (initializing one if the segment is
// fresh) and rebuilds the in-memory key index ("Root" container) by
// scanning the record log up to writeCursor.
func (m *Map) loadOrInit() error {
	cursor, count, ok := readSuperblock(m.data)
	if !ok {
		cursor = superblockSize
		count = 0
		writeSuperblock(m.data, uint64(cursor), uint64(count))
	}

	m.writeCursor = int64(cursor)
	m.recordCount = int64(count)
	m.index = make(map[string]int64, count)

	pos := int64(superblockSize)
	for pos < m.writeCursor {
		rec := decodeRecord(m.data, pos)
		if rec.live {
			m.index[rec.key] = pos
		} else {
			delete(m.index, rec.key)
		}
		pos += rec.size
	}
	return nil
}

// Insert adds key->value, failing with ErrKeyExists if present or
// ErrOutOfSegment if the record doesn't fit in the remaining space.
func (m *Map) Insert(key, value string, timeout time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := m.lock.lock(timeout); err != nil {
		return err
	}
	defer m.lock.unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.index[key]; exists {
		return ErrKeyExists
	}
	return m.appendLocked(key, value)
}

// Update replaces key's value, failing with ErrKeyNotFound if absent or
// ErrOutOfSegment if the new record doesn't fit.
func (m *Map) Update(key, value string, timeout time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := m.lock.lock(timeout); err != nil {
		return err
	}
	defer m.lock.unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	oldOffset, exists := m.index[key]
	if !exists {
		return ErrKeyNotFound
	}
	if err := m.appendLocked(key, value); err != nil {
		return err
	}
	markDead(m.data, oldOffset)
	m.recordCount--
	writeSuperblock(m.data, uint64(m.writeCursor), uint64(m.recordCount))
	return nil
}

// appendLocked writes a new live record for key/value and advances the
// write cursor and index. Caller holds the write lock and mu.RLock.
func (m *Map) appendLocked(key, value string) error {
	need := recordSize(key, value)
	if m.writeCursor+need > int64(len(m.data)) {
		return ErrOutOfSegment
	}
	offset := m.writeCursor
	written := encodeRecord(m.data, offset, key, value)
	m.writeCursor += written
	m.recordCount++
	m.index[key] = offset
	writeSuperblock(m.data, uint64(m.writeCursor), uint64(m.recordCount))
	return nil
}

// Get returns key's value, failing with ErrKeyNotFound if absent.
func (m *Map) Get(key string, timeout time.Duration) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if err := m.lock.rLock(timeout); err != nil {
		return "", err
	}
	defer m.lock.rUnlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	offset, exists := m.index[key]
	if !exists {
		return "", ErrKeyNotFound
	}
	return readRecordValue(m.data, offset), nil
}

// Delete removes key, failing with ErrKeyNotFound if absent.
func (m *Map) Delete(key string, timeout time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := m.lock.lock(timeout); err != nil {
		return err
	}
	defer m.lock.unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	offset, exists := m.index[key]
	if !exists {
		return ErrKeyNotFound
	}
	markDead(m.data, offset)
	delete(m.index, key)
	m.recordCount--
	writeSuperblock(m.data, uint64(m.writeCursor), uint64(m.recordCount))
	return nil
}

// Flush synchronously writes the mapped segment to disk.
func (m *Map) Flush(timeout time.Duration) error {
	if err := m.lock.lock(timeout); err != nil {
		return err
	}
	defer m.lock.unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.Flush()
}

// Grow doubles the backing file's size and remaps it. On failure, the old
// mapping at its original size is restored and the error is returned; the
// command that triggered ErrOutOfSegment is expected to retry exactly once
// after a successful Grow.
func (m *Map) Grow() error {
	if err := m.lock.lock(growLockTimeout); err != nil {
		return err
	}
	defer m.lock.unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.data.Flush(); err != nil {
		return fmt.Errorf("store: flush before grow: %w", err)
	}

	oldSize := int64(len(m.data))
	newSize := oldSize * 2

	if err := m.data.Unmap(); err != nil {
		return fmt.Errorf("store: unmap before grow: %w", err)
	}

	if err := m.file.Truncate(newSize); err != nil {
		// Resize failed: reopen the old mapping at its current size and
		// surface the original error.
		data, remapErr := mmap.Map(m.file, mmap.RDWR, 0)
		if remapErr != nil {
			return fmt.Errorf("store: grow failed (%v) and remap failed: %w", err, remapErr)
		}
		m.data = data
		return fmt.Errorf("store: resize to %d bytes: %w", newSize, err)
	}

	data, err := mmap.Map(m.file, mmap.RDWR, 0)
	if err != nil {
		// Mapping the grown file failed: shrink it back and restore the old
		// mapping at its original size.
		if truncErr := m.file.Truncate(oldSize); truncErr == nil {
			if old, remapErr := mmap.Map(m.file, mmap.RDWR, 0); remapErr == nil {
				m.data = old
			}
		}
		return fmt.Errorf("store: remap after grow: %w", err)
	}
	m.data = data
	return nil
}

// Stat reports current segment usage.
func (m *Map) Stat(timeout time.Duration) (Stat, error) {
	if err := m.lock.lock(timeout); err != nil {
		return Stat{}, err
	}
	defer m.lock.unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stat{
		SegmentSize: int64(len(m.data)),
		FreeBytes:   int64(len(m.data)) - m.writeCursor,
		RecordCount: m.recordCount,
	}, nil
}

// Close flushes and unmaps the segment, closing the backing file.
func (m *Map) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.data.Flush(); err != nil {
		m.data.Unmap()
		m.file.Close()
		return err
	}
	if err := m.data.Unmap(); err != nil {
		m.file.Close()
		return err
	}
	return m.file.Close()
}
