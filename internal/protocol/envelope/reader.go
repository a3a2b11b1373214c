package envelope

import (
	"fmt"

	"github.com/danmuck/webmanager/internal/protocol/schema"
	"github.com/danmuck/webmanager/internal/protocol/tlv"
)

// reader pulls typed values out of a decoded field set. The first error sticks
// and every later read returns a zero value. Absent fields read as zero;
// required fields are enforced by schema validation before decode.
type reader struct {
	fields []tlv.Field
	err    error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) get(id uint16) (tlv.Field, bool) {
	if r.err != nil {
		return tlv.Field{}, false
	}
	return tlv.GetField(r.fields, id)
}

func read[T any](r *reader, id uint16, as func(tlv.Field) (T, error)) T {
	var zero T
	f, ok := r.get(id)
	if !ok {
		return zero
	}
	v, err := as(f)
	if err != nil {
		r.fail(err)
		return zero
	}
	return v
}

func (r *reader) str(id uint16) string   { return read(r, id, tlv.Field.AsString) }
func (r *reader) u8(id uint16) uint8     { return read(r, id, tlv.Field.AsU8) }
func (r *reader) u16(id uint16) uint16   { return read(r, id, tlv.Field.AsU16) }
func (r *reader) u32(id uint16) uint32   { return read(r, id, tlv.Field.AsU32) }
func (r *reader) u64(id uint16) uint64   { return read(r, id, tlv.Field.AsU64) }
func (r *reader) i32(id uint16) int32    { return read(r, id, tlv.Field.AsI32) }
func (r *reader) f32(id uint16) float32  { return read(r, id, tlv.Field.AsF32) }
func (r *reader) boolean(id uint16) bool { return read(r, id, tlv.Field.AsBool) }

func (r *reader) optU8(id uint16) (uint8, bool) {
	if _, ok := r.get(id); !ok {
		return 0, false
	}
	v := r.u8(id)
	return v, r.err == nil
}

// blob returns nil for an absent or empty bytes field.
func (r *reader) blob(id uint16) []byte {
	b := read(r, id, tlv.Field.AsBytes)
	if len(b) == 0 {
		return nil
	}
	return b
}

func (r *reader) mac(id uint16) Mac {
	var m Mac
	b := read(r, id, tlv.Field.AsBytes)
	if b == nil {
		return m
	}
	if len(b) != schema.MacLen {
		r.fail(fmt.Errorf("%w: field %d has %d bytes want %d", tlv.ErrInvalidLength, id, len(b), schema.MacLen))
		return m
	}
	copy(m[:], b)
	return m
}

func (r *reader) elements(id uint16) []tlv.Field {
	return read(r, id, tlv.Field.AsList)
}

// readRecords decodes a list of records; an empty list reads as nil.
func readRecords[T any](r *reader, id uint16, decode func(*reader) T) []T {
	elems := r.elements(id)
	if len(elems) == 0 {
		return nil
	}
	out := make([]T, 0, len(elems))
	for _, e := range elems {
		nested, err := e.AsRecord()
		if err != nil {
			r.fail(err)
			return nil
		}
		sub := &reader{fields: nested}
		v := decode(sub)
		if sub.err != nil {
			r.fail(sub.err)
			return nil
		}
		out = append(out, v)
	}
	return out
}

// readScalars decodes a list of scalar elements; an empty list reads as nil.
func readScalars[T any](r *reader, id uint16, as func(tlv.Field) (T, error)) []T {
	elems := r.elements(id)
	if len(elems) == 0 {
		return nil
	}
	out := make([]T, 0, len(elems))
	for _, e := range elems {
		v, err := as(e)
		if err != nil {
			r.fail(err)
			return nil
		}
		out = append(out, v)
	}
	return out
}

func scalars[T any](id uint16, items []T, mk func(uint16, T) tlv.Field) tlv.Field {
	elems := make([]tlv.Field, 0, len(items))
	for _, it := range items {
		elems = append(elems, mk(0, it))
	}
	return tlv.List(id, elems)
}
