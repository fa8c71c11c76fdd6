package protocol

import (
	"encoding/binary"
	"io"
)

// MagicNumber tags the start of every frame. A header whose magic doesn't
// match is not a frame boundary and is dropped by the receiver.
const MagicNumber uint32 = 0x0A0B0C0D

// HeaderSize is the fixed on-wire size of MessageHeader: two uint32 fields,
// little-endian.
const HeaderSize = 8

// MessageHeader precedes every frame's payload on the wire.
type MessageHeader struct {
	Magic uint32
	Size  uint32
}

// Valid reports whether the header's magic matches MagicNumber. A
// zero-valued header (the read-scratch default) is never valid.
func (h MessageHeader) Valid() bool {
	return h.Magic == MagicNumber
}

// WriteHeader writes the 8-byte header for a payload of the given size.
func WriteHeader(w io.Writer, size uint32) error {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], MagicNumber)
	binary.LittleEndian.PutUint32(buf[4:8], size)
	_, err := w.Write(buf[:])
	return err
}

// ReadHeader reads and parses the 8-byte header. It does not itself
// validate the magic; callers decide whether to treat an invalid header as
// a reason to resynchronize (see transport.Receiver).
func ReadHeader(r io.Reader) (MessageHeader, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return MessageHeader{}, err
	}
	return MessageHeader{
		Magic: binary.LittleEndian.Uint32(buf[0:4]),
		Size:  binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}
