// Package wire implements the gateway frame codec.
//
// One frame on the wire is:
//
//	[2 bytes]  header length, big-endian
//	[N bytes]  msgpack-encoded Header
//	[M bytes]  raw payload, M == Header.Size
//
// The same layout is used on the local client socket and on the
// notification pusher transport. Decoding is a pure function of the
// byte stream; the only side effect is consuming bytes.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Channel identifiers. The protocol calls these "sorts": a top-level
// namespace separating request/response traffic from push traffic.
const (
	ChannelComm      uint16 = 1
	ChannelWebBroker uint16 = 2
)

// Header precedes every payload. Zero values of Oseq, Rseq and Code mean
// the field is absent, matching the upstream field-presence semantics.
type Header struct {
	// Channel and Type form the dispatch key.
	Channel uint16 `msgpack:"channel"`
	Type    uint16 `msgpack:"type"`
	// Size is the exact payload byte count. A mismatch between Size and
	// the actual payload length is a protocol violation.
	Size uint32 `msgpack:"size"`
	// Oseq is the caller-assigned request sequence.
	Oseq uint32 `msgpack:"oseq,omitempty"`
	// Rseq echoes the Oseq of the request a response correlates with.
	Rseq uint32 `msgpack:"rseq,omitempty"`
	// Code is the status extension carried on responses; zero when the
	// operation succeeded without remark.
	Code uint32 `msgpack:"code,omitempty"`
}

// Frame is one decoded header+payload unit.
type Frame struct {
	Header  Header
	Payload []byte
}

// Encode serializes a header and payload into one wire frame.
// Precondition: the caller has set header.Size to len(payload); the codec
// does not enforce it.
func Encode(header Header, payload []byte) ([]byte, error) {
	headerBuf, err := msgpack.Marshal(&header)
	if err != nil {
		return nil, frameErr(ErrMalformedHeader, err)
	}
	if len(headerBuf) > 0xFFFF {
		return nil, frameErr(ErrHeaderTooLarge, nil)
	}

	buf := make([]byte, 0, 2+len(headerBuf)+len(payload))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(headerBuf)))
	buf = append(buf, headerBuf...)
	buf = append(buf, payload...)
	return buf, nil
}

// EncodeMessage marshals a msgpack payload body, sets header.Size, and
// encodes the full frame. Convenience over Encode for structured payloads.
func EncodeMessage(header Header, body any) ([]byte, error) {
	payload, err := msgpack.Marshal(body)
	if err != nil {
		return nil, err
	}
	header.Size = uint32(len(payload))
	return Encode(header, payload)
}

// ReadFrame decodes one frame from r.
// Returns ErrTruncatedLength if the stream ends inside the length prefix,
// ErrMalformedHeader if the header bytes do not decode, and
// ErrTruncatedPayload if the stream ends inside the payload.
func ReadFrame(r io.Reader) (*Frame, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, frameErr(ErrTruncatedLength, err)
		}
		return nil, err
	}
	return ReadBody(r, binary.BigEndian.Uint16(lenBuf[:]))
}

// ReadBody decodes the remainder of a frame whose 2-byte length prefix has
// already been consumed. Callers that poll the length prefix under a read
// deadline (the session loop) use this to finish the frame.
func ReadBody(r io.Reader, headerLen uint16) (*Frame, error) {
	headerBuf := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, frameErr(ErrMalformedHeader, err)
		}
		return nil, err
	}

	var header Header
	if err := decodeHeaderStrict(headerBuf, &header); err != nil {
		return nil, frameErr(ErrMalformedHeader, err)
	}

	payload := make([]byte, header.Size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, frameErr(ErrTruncatedPayload, err)
		}
		return nil, err
	}

	return &Frame{Header: header, Payload: payload}, nil
}

// Parse decodes one frame from an in-memory message, as delivered by
// message-oriented transports (the pusher websocket).
func Parse(data []byte) (*Frame, error) {
	return ReadFrame(bytes.NewReader(data))
}

// decodeHeaderStrict unmarshals header bytes, rejecting trailing garbage.
func decodeHeaderStrict(buf []byte, header *Header) error {
	dec := msgpack.NewDecoder(bytes.NewReader(buf))
	if err := dec.Decode(header); err != nil {
		return err
	}
	if _, err := dec.DecodeInterface(); err != io.EOF {
		return errors.New("trailing bytes after header")
	}
	return nil
}
