package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	FixedHeaderLen uint16 = 32
	Magic          uint32 = 0x574D4752 // "WMGR"
	Version        uint16 = 1

	FlagIsResponse     uint32 = 0x02
	FlagIsNotification uint32 = 0x08
)

var (
	ErrShortHeader        = errors.New("frame: short fixed header")
	ErrInvalidMagic       = errors.New("frame: invalid magic")
	ErrUnsupportedVersion = errors.New("frame: unsupported version")
	ErrHeaderLenMismatch  = errors.New("frame: header_len does not match fixed header")
	ErrTruncatedPayload   = errors.New("frame: payload shorter than payload_len")
	ErrTrailingBytes      = errors.New("frame: trailing bytes after payload")
	ErrPayloadTooLarge    = errors.New("frame: payload too large")
)

// Header is the fixed wire header.
type Header struct {
	Magic       uint32
	Version     uint16
	HeaderLen   uint16
	MessageID   uint64
	MessageType uint32
	Flags       uint32
	PayloadLen  uint64
}

// Frame is one complete wire message. A websocket binary message carries exactly one.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint64
	// InitialCapacity sizes the encode buffer before it grows.
	InitialCapacity int
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 1024 * 1024,
		InitialCapacity: 1024,
	}
}

// Decode parses one frame from a complete message buffer.
func Decode(b []byte, limits Limits) (Frame, error) {
	if len(b) < int(FixedHeaderLen) {
		return Frame{}, ErrShortHeader
	}
	h, err := DecodeHeader(b[:FixedHeaderLen])
	if err != nil {
		return Frame{}, err
	}
	if h.Magic != Magic {
		return Frame{}, ErrInvalidMagic
	}
	if h.Version != Version {
		return Frame{}, ErrUnsupportedVersion
	}
	if h.HeaderLen != FixedHeaderLen {
		return Frame{}, ErrHeaderLenMismatch
	}
	if h.PayloadLen > limits.MaxPayloadBytes {
		return Frame{}, ErrPayloadTooLarge
	}
	rest := b[FixedHeaderLen:]
	if uint64(len(rest)) < h.PayloadLen {
		return Frame{}, ErrTruncatedPayload
	}
	if uint64(len(rest)) > h.PayloadLen {
		return Frame{}, ErrTrailingBytes
	}
	payload := make([]byte, len(rest))
	copy(payload, rest)
	return Frame{Header: h, Payload: payload}, nil
}

// Encode writes f into a fresh buffer; Magic, Version, HeaderLen and PayloadLen are filled in.
func Encode(f Frame, limits Limits) ([]byte, error) {
	payloadLen := uint64(len(f.Payload))
	if payloadLen > limits.MaxPayloadBytes {
		return nil, ErrPayloadTooLarge
	}

	h := f.Header
	h.Magic = Magic
	h.Version = Version
	h.HeaderLen = FixedHeaderLen
	h.PayloadLen = payloadLen

	size := limits.InitialCapacity
	if need := int(FixedHeaderLen) + len(f.Payload); need > size {
		size = need
	}
	buf := make([]byte, 0, size)
	buf = append(buf, EncodeHeader(h)...)
	buf = append(buf, f.Payload...)
	return buf, nil
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, FixedHeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], h.HeaderLen)
	binary.BigEndian.PutUint64(buf[8:16], h.MessageID)
	binary.BigEndian.PutUint32(buf[16:20], h.MessageType)
	binary.BigEndian.PutUint32(buf[20:24], h.Flags)
	binary.BigEndian.PutUint64(buf[24:32], h.PayloadLen)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != int(FixedHeaderLen) {
		return Header{}, fmt.Errorf("frame: invalid fixed header length: %d", len(b))
	}
	return Header{
		Magic:       binary.BigEndian.Uint32(b[0:4]),
		Version:     binary.BigEndian.Uint16(b[4:6]),
		HeaderLen:   binary.BigEndian.Uint16(b[6:8]),
		MessageID:   binary.BigEndian.Uint64(b[8:16]),
		MessageType: binary.BigEndian.Uint32(b[16:20]),
		Flags:       binary.BigEndian.Uint32(b[20:24]),
		PayloadLen:  binary.BigEndian.Uint64(b[24:32]),
	}, nil
}
