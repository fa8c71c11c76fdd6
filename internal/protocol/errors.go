// Package protocol implements the wire format shared by the kvstore client
// and server: a fixed-size framed header, a whitespace-delimited field
// encoding, and the CommandMessage/ResultMessage types that ride inside it.
package protocol

import "errors"

// ErrProtocolViolation is returned when a payload field does not match the
// wire grammar (missing field delimiter, malformed integer, string length
// running past the payload). A header with bad magic is not reported through
// this error; MessageHeader.Valid reports it. The caller should log and keep
// the connection open rather than treat it as fatal.
var ErrProtocolViolation = errors.New("protocol: violation")

// ErrLimitStringOverflow is returned when a LimitedString is constructed, or
// decoded off the wire, with more bytes than its configured maximum.
var ErrLimitStringOverflow = errors.New("protocol: limited string overflow")
