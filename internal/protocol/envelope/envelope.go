// Package envelope maps discriminants to typed payload variants.
//
// Every frame carries exactly one envelope. Requests and responses are
// separate sealed families: a Request can only be built from a frame without
// the response flag, and a Response only from one with it.
package envelope

import (
	"errors"
	"fmt"

	"github.com/danmuck/webmanager/internal/protocol/frame"
	"github.com/danmuck/webmanager/internal/protocol/schema"
	"github.com/danmuck/webmanager/internal/protocol/tlv"
)

var (
	// ErrDecodeFailure wraps every malformed or truncated input.
	ErrDecodeFailure  = errors.New("envelope: decode failure")
	ErrFamilyMismatch = errors.New("envelope: frame belongs to the other family")
	ErrNilPayload     = errors.New("envelope: nil payload")
)

// UnknownKindError reports a well-formed frame whose discriminant has no variant.
type UnknownKindError struct {
	Kind     uint32
	Response bool
}

func (e UnknownKindError) Error() string {
	if e.Response {
		return fmt.Sprintf("envelope: unknown response kind %d", e.Kind)
	}
	return fmt.Sprintf("envelope: unknown request kind %d", e.Kind)
}

// Request is the sealed client->server payload family.
type Request interface {
	RequestKind() schema.RequestKind
	fields() []tlv.Field
}

// Response is the sealed server->client payload family, notifications included.
type Response interface {
	ResponseKind() schema.ResponseKind
	fields() []tlv.Field
}

// RequestEnvelope is one decoded client frame.
type RequestEnvelope struct {
	MessageID uint64
	Request   Request
}

// ResponseEnvelope is one server frame. MessageID echoes the request; notifications use 0.
type ResponseEnvelope struct {
	MessageID uint64
	Response  Response
}

// Codec encodes and decodes envelopes under fixed frame limits.
type Codec struct {
	Limits frame.Limits
}

func NewCodec(limits frame.Limits) Codec {
	return Codec{Limits: limits}
}

var defaultCodec = NewCodec(frame.DefaultLimits())

func EncodeRequest(env RequestEnvelope) ([]byte, error)   { return defaultCodec.EncodeRequest(env) }
func DecodeRequest(b []byte) (RequestEnvelope, error)     { return defaultCodec.DecodeRequest(b) }
func EncodeResponse(env ResponseEnvelope) ([]byte, error) { return defaultCodec.EncodeResponse(env) }
func DecodeResponse(b []byte) (ResponseEnvelope, error)   { return defaultCodec.DecodeResponse(b) }

func (c Codec) EncodeRequest(env RequestEnvelope) ([]byte, error) {
	if env.Request == nil {
		return nil, ErrNilPayload
	}
	kind := env.Request.RequestKind()
	fields := env.Request.fields()
	if err := schema.ValidateRequest(kind, fields); err != nil {
		return nil, err
	}
	return frame.Encode(frame.Frame{
		Header: frame.Header{
			MessageID:   env.MessageID,
			MessageType: uint32(kind),
		},
		Payload: tlv.EncodeFields(fields),
	}, c.Limits)
}

func (c Codec) EncodeResponse(env ResponseEnvelope) ([]byte, error) {
	if env.Response == nil {
		return nil, ErrNilPayload
	}
	kind := env.Response.ResponseKind()
	fields := env.Response.fields()
	if err := schema.ValidateResponse(kind, fields); err != nil {
		return nil, err
	}
	flags := frame.FlagIsResponse
	if kind.IsNotification() {
		flags |= frame.FlagIsNotification
	}
	return frame.Encode(frame.Frame{
		Header: frame.Header{
			MessageID:   env.MessageID,
			MessageType: uint32(kind),
			Flags:       flags,
		},
		Payload: tlv.EncodeFields(fields),
	}, c.Limits)
}

// DecodeRequest parses one client frame. Malformed input wraps ErrDecodeFailure;
// a well-formed frame with an unmapped discriminant returns UnknownKindError.
func (c Codec) DecodeRequest(b []byte) (RequestEnvelope, error) {
	fr, fields, err := c.open(b, false)
	if err != nil {
		return RequestEnvelope{}, err
	}
	kind := schema.RequestKind(fr.Header.MessageType)
	decode, ok := requestDecoders[kind]
	if !ok {
		return RequestEnvelope{MessageID: fr.Header.MessageID}, UnknownKindError{Kind: uint32(kind)}
	}
	if err := schema.ValidateRequest(kind, fields); err != nil {
		return RequestEnvelope{}, decodeFailure(err)
	}
	r := &reader{fields: fields}
	req := decode(r)
	if r.err != nil {
		return RequestEnvelope{}, decodeFailure(r.err)
	}
	return RequestEnvelope{MessageID: fr.Header.MessageID, Request: req}, nil
}

// DecodeResponse parses one server frame; used by clients and tests.
func (c Codec) DecodeResponse(b []byte) (ResponseEnvelope, error) {
	fr, fields, err := c.open(b, true)
	if err != nil {
		return ResponseEnvelope{}, err
	}
	kind := schema.ResponseKind(fr.Header.MessageType)
	decode, ok := responseDecoders[kind]
	if !ok {
		return ResponseEnvelope{MessageID: fr.Header.MessageID}, UnknownKindError{Kind: uint32(kind), Response: true}
	}
	if err := schema.ValidateResponse(kind, fields); err != nil {
		return ResponseEnvelope{}, decodeFailure(err)
	}
	r := &reader{fields: fields}
	resp := decode(r)
	if r.err != nil {
		return ResponseEnvelope{}, decodeFailure(r.err)
	}
	return ResponseEnvelope{MessageID: fr.Header.MessageID, Response: resp}, nil
}

func (c Codec) open(b []byte, response bool) (frame.Frame, []tlv.Field, error) {
	fr, err := frame.Decode(b, c.Limits)
	if err != nil {
		return frame.Frame{}, nil, decodeFailure(err)
	}
	if (fr.Header.Flags&frame.FlagIsResponse != 0) != response {
		return frame.Frame{}, nil, decodeFailure(ErrFamilyMismatch)
	}
	fields, err := tlv.DecodeFields(fr.Payload)
	if err != nil {
		return frame.Frame{}, nil, decodeFailure(err)
	}
	return fr, fields, nil
}

func decodeFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrDecodeFailure, err)
}

// IsDecodeFailure reports whether err is a malformed-frame error.
func IsDecodeFailure(err error) bool {
	return errors.Is(err, ErrDecodeFailure)
}

// IsUnknownKind reports whether err is an unmapped discriminant.
func IsUnknownKind(err error) bool {
	var uk UnknownKindError
	return errors.As(err, &uk)
}
