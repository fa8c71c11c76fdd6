package protocol

import (
	"bytes"
	"strconv"
)

// Encoding is a whitespace-delimited concatenation of fields in declared
// order. Every field — integer or LimitedString — is followed by a single
// ASCII space. A LimitedString is written as its decimal length, a space,
// then its raw bytes (no escaping); an empty string is "0 ".
//
// Fields are enumerated explicitly per message type rather than through a
// generic field-tuple traversal: the set of message types is small and
// static, so reflection buys nothing but indirection.

func writeUint(buf *bytes.Buffer, v uint32) {
	buf.WriteString(strconv.FormatUint(uint64(v), 10))
	buf.WriteByte(' ')
}

func writeLimitedString(buf *bytes.Buffer, s LimitedString) {
	buf.WriteString(strconv.Itoa(len(s.content)))
	buf.WriteByte(' ')
	buf.WriteString(s.content)
	buf.WriteByte(' ')
}

// EncodeCommand serializes a CommandMessage into a frame payload.
func EncodeCommand(cmd CommandMessage) []byte {
	var buf bytes.Buffer
	writeUint(&buf, cmd.ID)
	writeUint(&buf, uint32(cmd.Type))
	writeLimitedString(&buf, cmd.Key)
	writeLimitedString(&buf, cmd.Value)
	return buf.Bytes()
}

// EncodeResult serializes a ResultMessage into a frame payload.
func EncodeResult(res ResultMessage) []byte {
	var buf bytes.Buffer
	writeUint(&buf, res.CommandID)
	writeUint(&buf, uint32(res.Code))
	writeLimitedString(&buf, res.Value)
	return buf.Bytes()
}

// cursor walks a decoded frame payload, enforcing the single-space
// delimiter rule and surfacing ErrProtocolViolation/ErrLimitStringOverflow.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) consumeSpace() error {
	if c.pos >= len(c.data) || c.data[c.pos] != ' ' {
		return ErrProtocolViolation
	}
	c.pos++
	return nil
}

// readUint reads decimal ASCII digits up to (not including) the next space,
// then consumes that space.
func (c *cursor) readUint() (uint32, error) {
	start := c.pos
	for c.pos < len(c.data) && c.data[c.pos] >= '0' && c.data[c.pos] <= '9' {
		c.pos++
	}
	if c.pos == start {
		return 0, ErrProtocolViolation
	}
	v, err := strconv.ParseUint(string(c.data[start:c.pos]), 10, 32)
	if err != nil {
		return 0, ErrProtocolViolation
	}
	if err := c.consumeSpace(); err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// readLimitedString reads a length-prefixed string field. If the declared
// length exceeds max, the bytes are still consumed (to keep the stream
// aligned for the next frame) and ErrLimitStringOverflow is returned.
func (c *cursor) readLimitedString(max int) (LimitedString, error) {
	length, err := c.readUint()
	if err != nil {
		return LimitedString{}, err
	}
	if c.pos+int(length) > len(c.data) {
		return LimitedString{}, ErrProtocolViolation
	}
	content := string(c.data[c.pos : c.pos+int(length)])
	c.pos += int(length)
	if err := c.consumeSpace(); err != nil {
		return LimitedString{}, err
	}
	if int(length) > max {
		return LimitedString{max: max}, ErrLimitStringOverflow
	}
	return LimitedString{max: max, content: content}, nil
}

// DecodeCommand parses a frame payload into a CommandMessage.
func DecodeCommand(data []byte) (CommandMessage, error) {
	c := cursor{data: data}
	var msg CommandMessage
	var err error

	if msg.ID, err = c.readUint(); err != nil {
		return CommandMessage{}, err
	}
	typeVal, err := c.readUint()
	if err != nil {
		return CommandMessage{}, err
	}
	msg.Type = CommandType(typeVal)

	if msg.Key, err = c.readLimitedString(MaxKeySize); err != nil {
		return msg, err
	}
	if msg.Value, err = c.readLimitedString(MaxValueSize); err != nil {
		return msg, err
	}
	return msg, nil
}

// DecodeResult parses a frame payload into a ResultMessage.
func DecodeResult(data []byte) (ResultMessage, error) {
	c := cursor{data: data}
	var msg ResultMessage
	var err error

	if msg.CommandID, err = c.readUint(); err != nil {
		return ResultMessage{}, err
	}
	codeVal, err := c.readUint()
	if err != nil {
		return ResultMessage{}, err
	}
	msg.Code = ResultCode(codeVal)

	if msg.Value, err = c.readLimitedString(MaxValueSize); err != nil {
		return msg, err
	}
	return msg, nil
}
