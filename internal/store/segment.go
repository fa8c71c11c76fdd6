package store

import "encoding/binary"

// Segment layout.
//
// The original design stores an intrusive hash-keyed container inside the
// mapped segment, recovered across opens by a well-known root name. Go has
// no equivalent of in-place pointer containers inside an mmap region, so
// this implementation keeps the durable record log inside the segment
// (append-only, tombstone-on-overwrite) and rebuilds the uniqueness index
// — the "Root" container — as an in-memory map[string]offset on every
// Open. Grow only extends the file, so record offsets and the index stay
// valid across it. The superblock below is the well-known root: a fixed header
// at offset 0 that names where the record log starts and how far it
// extends.
const (
	superblockMagic = uint32(0x4B56_4442) // "KVDB"
	superblockSize  = 32

	offMagic       = 0
	offWriteCursor = 8
	offRecordCount = 16

	recordFlagDead = 0
	recordFlagLive = 1
)

func readSuperblock(data []byte) (writeCursor uint64, recordCount uint64, ok bool) {
	if len(data) < superblockSize {
		return 0, 0, false
	}
	if binary.LittleEndian.Uint32(data[offMagic:offMagic+4]) != superblockMagic {
		return 0, 0, false
	}
	writeCursor = binary.LittleEndian.Uint64(data[offWriteCursor : offWriteCursor+8])
	recordCount = binary.LittleEndian.Uint64(data[offRecordCount : offRecordCount+8])
	return writeCursor, recordCount, true
}

func writeSuperblock(data []byte, writeCursor, recordCount uint64) {
	binary.LittleEndian.PutUint32(data[offMagic:offMagic+4], superblockMagic)
	binary.LittleEndian.PutUint64(data[offWriteCursor:offWriteCursor+8], writeCursor)
	binary.LittleEndian.PutUint64(data[offRecordCount:offRecordCount+8], recordCount)
}

// recordSize returns the encoded size of a key/value pair's record.
func recordSize(key, value string) int64 {
	return 1 + 4 + int64(len(key)) + 4 + int64(len(value))
}

// encodeRecord writes a live record at data[offset:] and returns the number
// of bytes written. The caller guarantees data has enough room.
func encodeRecord(data []byte, offset int64, key, value string) int64 {
	pos := offset
	data[pos] = recordFlagLive
	pos++
	binary.LittleEndian.PutUint32(data[pos:pos+4], uint32(len(key)))
	pos += 4
	copy(data[pos:], key)
	pos += int64(len(key))
	binary.LittleEndian.PutUint32(data[pos:pos+4], uint32(len(value)))
	pos += 4
	copy(data[pos:], value)
	pos += int64(len(value))
	return pos - offset
}

// decodedRecord is a record read back from the segment during index rebuild.
type decodedRecord struct {
	live bool
	key  string
	size int64
}

// decodeRecord reads the record at data[offset:]. It does not allocate the
// value — value is not needed during index rebuild.
func decodeRecord(data []byte, offset int64) decodedRecord {
	pos := offset
	live := data[pos] == recordFlagLive
	pos++
	keyLen := int64(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4
	key := string(data[pos : pos+keyLen])
	pos += keyLen
	valLen := int64(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4
	pos += valLen
	return decodedRecord{live: live, key: key, size: pos - offset}
}

// readRecordValue reads the value bytes of the record at offset, which must
// be a live record (callers check the index, which only ever points at the
// most recent write for a key).
func readRecordValue(data []byte, offset int64) string {
	pos := offset + 1
	keyLen := int64(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4 + keyLen
	valLen := int64(binary.LittleEndian.Uint32(data[pos : pos+4]))
	pos += 4
	return string(data[pos : pos+valLen])
}

// markDead flips the live flag of the record at offset to dead, so a
// rebuild skips it in favor of whatever later record claims the same key.
func markDead(data []byte, offset int64) {
	data[offset] = recordFlagDead
}
