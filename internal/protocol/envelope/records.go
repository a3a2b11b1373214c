package envelope

import (
	"fmt"

	"github.com/danmuck/webmanager/internal/protocol/schema"
	"github.com/danmuck/webmanager/internal/protocol/tlv"
)

// SettingType tags the value carried by a setting record.
type SettingType uint8

const (
	SettingString SettingType = iota + 1
	SettingInteger
	SettingBoolean
	SettingEnum
)

func (t SettingType) String() string {
	switch t {
	case SettingString:
		return "string"
	case SettingInteger:
		return "integer"
	case SettingBoolean:
		return "boolean"
	case SettingEnum:
		return "enum"
	default:
		return fmt.Sprintf("setting(%d)", uint8(t))
	}
}

// Setting is the sealed typed value of a named setting.
type Setting interface {
	SettingType() SettingType
	valueField() tlv.Field
}

type StringSetting struct{ Value string }
type IntegerSetting struct{ Value int32 }
type BooleanSetting struct{ Value bool }

// EnumSetting holds the selected option index.
type EnumSetting struct{ Value int32 }

func (StringSetting) SettingType() SettingType  { return SettingString }
func (IntegerSetting) SettingType() SettingType { return SettingInteger }
func (BooleanSetting) SettingType() SettingType { return SettingBoolean }
func (EnumSetting) SettingType() SettingType    { return SettingEnum }

func (s StringSetting) valueField() tlv.Field  { return tlv.String(schema.FieldSettingValue, s.Value) }
func (s IntegerSetting) valueField() tlv.Field { return tlv.I32(schema.FieldSettingValue, s.Value) }
func (s BooleanSetting) valueField() tlv.Field { return tlv.Bool(schema.FieldSettingValue, s.Value) }
func (s EnumSetting) valueField() tlv.Field    { return tlv.I32(schema.FieldSettingValue, s.Value) }

// SettingWrapper pairs a key with its typed value.
type SettingWrapper struct {
	Key     string
	Setting Setting
}

func (w SettingWrapper) record() tlv.Field {
	fields := []tlv.Field{tlv.String(schema.FieldSettingKey, w.Key)}
	if w.Setting != nil {
		fields = append(fields,
			tlv.U8(schema.FieldSettingType, uint8(w.Setting.SettingType())),
			w.Setting.valueField(),
		)
	}
	return tlv.Record(0, fields)
}

func readSetting(r *reader) SettingWrapper {
	w := SettingWrapper{Key: r.str(schema.FieldSettingKey)}
	typ, ok := r.optU8(schema.FieldSettingType)
	if !ok {
		return w
	}
	switch SettingType(typ) {
	case SettingString:
		w.Setting = StringSetting{Value: r.str(schema.FieldSettingValue)}
	case SettingInteger:
		w.Setting = IntegerSetting{Value: r.i32(schema.FieldSettingValue)}
	case SettingBoolean:
		w.Setting = BooleanSetting{Value: r.boolean(schema.FieldSettingValue)}
	case SettingEnum:
		w.Setting = EnumSetting{Value: r.i32(schema.FieldSettingValue)}
	default:
		r.fail(fmt.Errorf("setting %q: unknown type %d", w.Key, typ))
	}
	return w
}

// Mac is a fixed-width hardware identifier.
type Mac [schema.MacLen]byte

// AccessPoint is one scan result.
type AccessPoint struct {
	Ssid           string
	PrimaryChannel uint8
	Rssi           int32
	AuthMode       uint8
}

func (a AccessPoint) record() tlv.Field {
	return tlv.Record(0, []tlv.Field{
		tlv.String(schema.FieldSsid, a.Ssid),
		tlv.U8(schema.FieldPrimaryChannel, a.PrimaryChannel),
		tlv.I32(schema.FieldRssi, a.Rssi),
		tlv.U8(schema.FieldAuthMode, a.AuthMode),
	})
}

func readAccessPoint(r *reader) AccessPoint {
	return AccessPoint{
		Ssid:           r.str(schema.FieldSsid),
		PrimaryChannel: r.u8(schema.FieldPrimaryChannel),
		Rssi:           r.i32(schema.FieldRssi),
		AuthMode:       r.u8(schema.FieldAuthMode),
	}
}

// PartitionInfo describes one flash partition and the app image it holds.
type PartitionInfo struct {
	Label      string
	Type       uint8
	Subtype    uint8
	Size       uint32
	OtaState   uint8
	Running    bool
	AppName    string
	AppVersion string
	AppDate    string
	AppTime    string
}

func (p PartitionInfo) record() tlv.Field {
	return tlv.Record(0, []tlv.Field{
		tlv.String(schema.FieldLabel, p.Label),
		tlv.U8(schema.FieldPartitionType, p.Type),
		tlv.U8(schema.FieldPartitionSubtype, p.Subtype),
		tlv.U32(schema.FieldPartitionSize, p.Size),
		tlv.U8(schema.FieldOtaState, p.OtaState),
		tlv.Bool(schema.FieldRunning, p.Running),
		tlv.String(schema.FieldAppName, p.AppName),
		tlv.String(schema.FieldAppVersion, p.AppVersion),
		tlv.String(schema.FieldAppDate, p.AppDate),
		tlv.String(schema.FieldAppTime, p.AppTime),
	})
}

func readPartition(r *reader) PartitionInfo {
	return PartitionInfo{
		Label:      r.str(schema.FieldLabel),
		Type:       r.u8(schema.FieldPartitionType),
		Subtype:    r.u8(schema.FieldPartitionSubtype),
		Size:       r.u32(schema.FieldPartitionSize),
		OtaState:   r.u8(schema.FieldOtaState),
		Running:    r.boolean(schema.FieldRunning),
		AppName:    r.str(schema.FieldAppName),
		AppVersion: r.str(schema.FieldAppVersion),
		AppDate:    r.str(schema.FieldAppDate),
		AppTime:    r.str(schema.FieldAppTime),
	}
}

// JournalItem is one aggregated log record.
type JournalItem struct {
	LastMessageTimestamp uint64
	MessageCode          uint32
	MessageString        string
	LastMessageData      uint32
	MessageCount         uint32
}

func (j JournalItem) record() tlv.Field {
	return tlv.Record(0, []tlv.Field{
		tlv.U64(schema.FieldLastMessageTimestamp, j.LastMessageTimestamp),
		tlv.U32(schema.FieldMessageCode, j.MessageCode),
		tlv.String(schema.FieldMessageString, j.MessageString),
		tlv.U32(schema.FieldLastMessageData, j.LastMessageData),
		tlv.U32(schema.FieldMessageCount, j.MessageCount),
	})
}

func readJournalItem(r *reader) JournalItem {
	return JournalItem{
		LastMessageTimestamp: r.u64(schema.FieldLastMessageTimestamp),
		MessageCode:          r.u32(schema.FieldMessageCode),
		MessageString:        r.str(schema.FieldMessageString),
		LastMessageData:      r.u32(schema.FieldLastMessageData),
		MessageCount:         r.u32(schema.FieldMessageCount),
	}
}

// Finger is one stored fingerprint template slot.
type Finger struct {
	Index       uint16
	Name        string
	ActionIndex uint16
	Schedule    string
}

func (f Finger) record() tlv.Field {
	return tlv.Record(0, []tlv.Field{
		tlv.U16(schema.FieldFingerIndex, f.Index),
		tlv.String(schema.FieldName, f.Name),
		tlv.U16(schema.FieldActionIndex, f.ActionIndex),
		tlv.String(schema.FieldScheduleName, f.Schedule),
	})
}

func readFinger(r *reader) Finger {
	return Finger{
		Index:       r.u16(schema.FieldFingerIndex),
		Name:        r.str(schema.FieldName),
		ActionIndex: r.u16(schema.FieldActionIndex),
		Schedule:    r.str(schema.FieldScheduleName),
	}
}

// SensactState is the current value of one sensor/actor id.
type SensactState struct {
	ID    uint32
	Value uint32
}

func (s SensactState) record() tlv.Field {
	return tlv.Record(0, []tlv.Field{
		tlv.U32(schema.FieldID, s.ID),
		tlv.U32(schema.FieldValue, s.Value),
	})
}

func readSensactState(r *reader) SensactState {
	return SensactState{
		ID:    r.u32(schema.FieldID),
		Value: r.u32(schema.FieldValue),
	}
}

// Granularity selects the bucket width of a time series.
type Granularity uint8

const (
	GranularityFiveSeconds Granularity = iota
	GranularityOneMinute
	GranularityOneHour
	GranularityOneDay
)

// Step returns the bucket width in seconds; unknown values fall back to five seconds.
func (g Granularity) Step() uint32 {
	switch g {
	case GranularityOneMinute:
		return 60
	case GranularityOneHour:
		return 3600
	case GranularityOneDay:
		return 86400
	default:
		return 5
	}
}

func records[T interface{ record() tlv.Field }](id uint16, items []T) tlv.Field {
	elems := make([]tlv.Field, 0, len(items))
	for _, it := range items {
		elems = append(elems, it.record())
	}
	return tlv.List(id, elems)
}
