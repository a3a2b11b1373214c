package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const HeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
	ErrTypeMismatch     = errors.New("tlv: field type mismatch")
	ErrInvalidLength    = errors.New("tlv: invalid value length")
	ErrInvalidBool      = errors.New("tlv: invalid bool value")
)

// Type IDs from tlv contract.
const (
	TypeU8     uint8 = 1
	TypeU16    uint8 = 2
	TypeU32    uint8 = 3
	TypeU64    uint8 = 4
	TypeBool   uint8 = 5
	TypeString uint8 = 6
	TypeBytes  uint8 = 7
	TypeI32    uint8 = 8
	TypeF32    uint8 = 9
	TypeRecord uint8 = 10
	TypeList   uint8 = 11
)

// Field is one decoded TLV field.
type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

func EncodeField(f Field) []byte {
	buf := make([]byte, HeaderLen+len(f.Value))
	binary.BigEndian.PutUint16(buf[0:2], f.ID)
	buf[2] = f.Type
	binary.BigEndian.PutUint32(buf[3:7], uint32(len(f.Value)))
	copy(buf[7:], f.Value)
	return buf
}

// AppendField appends the wire form of f to dst.
func AppendField(dst []byte, f Field) []byte {
	var head [HeaderLen]byte
	binary.BigEndian.PutUint16(head[0:2], f.ID)
	head[2] = f.Type
	binary.BigEndian.PutUint32(head[3:7], uint32(len(f.Value)))
	dst = append(dst, head[:]...)
	return append(dst, f.Value...)
}

func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0)
	i := 0
	for i < len(payload) {
		if len(payload)-i < HeaderLen {
			return nil, ErrShortFieldHeader
		}
		id := binary.BigEndian.Uint16(payload[i : i+2])
		typeID := payload[i+2]
		l := binary.BigEndian.Uint32(payload[i+3 : i+7])
		i += HeaderLen
		if uint64(len(payload)-i) < uint64(l) {
			return nil, ErrShortFieldValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+int(l)])
		i += int(l)
		fields = append(fields, Field{ID: id, Type: typeID, Value: val})
	}
	return fields, nil
}

// EncodedLen returns the wire size of fields.
func EncodedLen(fields []Field) int {
	n := 0
	for _, f := range fields {
		n += HeaderLen + len(f.Value)
	}
	return n
}

func EncodeFields(fields []Field) []byte {
	out := make([]byte, 0, EncodedLen(fields))
	for _, f := range fields {
		out = AppendField(out, f)
	}
	return out
}

func GetField(fields []Field, id uint16) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

func MustType(f Field, expected uint8) error {
	if f.Type != expected {
		return fmt.Errorf("%w: field %d got %d want %d", ErrTypeMismatch, f.ID, f.Type, expected)
	}
	return nil
}

func U8(id uint16, v uint8) Field {
	return Field{ID: id, Type: TypeU8, Value: []byte{v}}
}

func U16(id uint16, v uint16) Field {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return Field{ID: id, Type: TypeU16, Value: buf}
}

func U32(id uint16, v uint32) Field {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return Field{ID: id, Type: TypeU32, Value: buf}
}

func U64(id uint16, v uint64) Field {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return Field{ID: id, Type: TypeU64, Value: buf}
}

func I32(id uint16, v int32) Field {
	f := U32(id, uint32(v))
	f.Type = TypeI32
	return f
}

func F32(id uint16, v float32) Field {
	f := U32(id, math.Float32bits(v))
	f.Type = TypeF32
	return f
}

func Bool(id uint16, v bool) Field {
	b := byte(0)
	if v {
		b = 1
	}
	return Field{ID: id, Type: TypeBool, Value: []byte{b}}
}

func String(id uint16, v string) Field {
	return Field{ID: id, Type: TypeString, Value: []byte(v)}
}

func Bytes(id uint16, v []byte) Field {
	buf := make([]byte, len(v))
	copy(buf, v)
	return Field{ID: id, Type: TypeBytes, Value: buf}
}

// Record nests fields as the value of one field.
func Record(id uint16, fields []Field) Field {
	return Field{ID: id, Type: TypeRecord, Value: EncodeFields(fields)}
}

// List encodes elements as a vector; element ids are rewritten to 0.
func List(id uint16, elems []Field) Field {
	out := make([]byte, 0, EncodedLen(elems))
	for _, e := range elems {
		e.ID = 0
		out = AppendField(out, e)
	}
	return Field{ID: id, Type: TypeList, Value: out}
}

func (f Field) AsU8() (uint8, error) {
	if err := f.fixed(TypeU8, 1); err != nil {
		return 0, err
	}
	return f.Value[0], nil
}

func (f Field) AsU16() (uint16, error) {
	if err := f.fixed(TypeU16, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(f.Value), nil
}

func (f Field) AsU32() (uint32, error) {
	if err := f.fixed(TypeU32, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(f.Value), nil
}

func (f Field) AsU64() (uint64, error) {
	if err := f.fixed(TypeU64, 8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(f.Value), nil
}

func (f Field) AsI32() (int32, error) {
	if err := f.fixed(TypeI32, 4); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(f.Value)), nil
}

func (f Field) AsF32() (float32, error) {
	if err := f.fixed(TypeF32, 4); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(f.Value)), nil
}

func (f Field) AsBool() (bool, error) {
	if err := f.fixed(TypeBool, 1); err != nil {
		return false, err
	}
	switch f.Value[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidBool
	}
}

func (f Field) AsString() (string, error) {
	if err := MustType(f, TypeString); err != nil {
		return "", err
	}
	return string(f.Value), nil
}

func (f Field) AsBytes() ([]byte, error) {
	if err := MustType(f, TypeBytes); err != nil {
		return nil, err
	}
	buf := make([]byte, len(f.Value))
	copy(buf, f.Value)
	return buf, nil
}

// AsRecord decodes the nested fields of a record field.
func (f Field) AsRecord() ([]Field, error) {
	if err := MustType(f, TypeRecord); err != nil {
		return nil, err
	}
	return DecodeFields(f.Value)
}

// AsList decodes the elements of a list field.
func (f Field) AsList() ([]Field, error) {
	if err := MustType(f, TypeList); err != nil {
		return nil, err
	}
	return DecodeFields(f.Value)
}

func (f Field) fixed(want uint8, size int) error {
	if err := MustType(f, want); err != nil {
		return err
	}
	if len(f.Value) != size {
		return fmt.Errorf("%w: field %d has %d bytes want %d", ErrInvalidLength, f.ID, len(f.Value), size)
	}
	return nil
}
