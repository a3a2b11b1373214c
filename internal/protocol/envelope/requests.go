package envelope

import (
	"github.com/danmuck/webmanager/internal/protocol/schema"
	"github.com/danmuck/webmanager/internal/protocol/tlv"
)

type NetworkInformationRequest struct {
	ForceNewSearch bool
}

type WifiConnectRequest struct {
	Ssid     string
	Password string
}

type WifiDisconnectRequest struct{}
type SystemDataRequest struct{}
type RestartRequest struct{}
type JournalRequest struct{}

type GetUserSettingsRequest struct {
	GroupKey string
}

type SetUserSettingsRequest struct {
	GroupKey string
	Settings []SettingWrapper
}

type TimeseriesRequest struct {
	Granularity Granularity
}

type FingerprintSensorInfoRequest struct{}
type FingersRequest struct{}

type StoreFingerActionRequest struct {
	FingerIndex uint16
	ActionIndex uint16
}

type StoreFingerScheduleRequest struct {
	FingerIndex  uint16
	ScheduleName string
}

type EnrollNewFingerRequest struct {
	Name string
}

// SchedulerRequest carries an opaque schedule definition.
type SchedulerRequest struct {
	Payload []byte
}

type SensactStatusRequest struct {
	IDs []uint32
}

func (NetworkInformationRequest) RequestKind() schema.RequestKind {
	return schema.RequestNetworkInformation
}
func (WifiConnectRequest) RequestKind() schema.RequestKind    { return schema.RequestWifiConnect }
func (WifiDisconnectRequest) RequestKind() schema.RequestKind { return schema.RequestWifiDisconnect }
func (SystemDataRequest) RequestKind() schema.RequestKind     { return schema.RequestSystemData }
func (RestartRequest) RequestKind() schema.RequestKind        { return schema.RequestRestart }
func (JournalRequest) RequestKind() schema.RequestKind        { return schema.RequestJournal }
func (GetUserSettingsRequest) RequestKind() schema.RequestKind {
	return schema.RequestGetUserSettings
}
func (SetUserSettingsRequest) RequestKind() schema.RequestKind {
	return schema.RequestSetUserSettings
}
func (TimeseriesRequest) RequestKind() schema.RequestKind { return schema.RequestTimeseries }
func (FingerprintSensorInfoRequest) RequestKind() schema.RequestKind {
	return schema.RequestFingerprintSensorInfo
}
func (FingersRequest) RequestKind() schema.RequestKind { return schema.RequestFingers }
func (StoreFingerActionRequest) RequestKind() schema.RequestKind {
	return schema.RequestStoreFingerAction
}
func (StoreFingerScheduleRequest) RequestKind() schema.RequestKind {
	return schema.RequestStoreFingerSchedule
}
func (EnrollNewFingerRequest) RequestKind() schema.RequestKind {
	return schema.RequestEnrollNewFinger
}
func (SchedulerRequest) RequestKind() schema.RequestKind     { return schema.RequestScheduler }
func (SensactStatusRequest) RequestKind() schema.RequestKind { return schema.RequestSensactStatus }

func (r NetworkInformationRequest) fields() []tlv.Field {
	return []tlv.Field{tlv.Bool(schema.FieldForceNewSearch, r.ForceNewSearch)}
}

func (r WifiConnectRequest) fields() []tlv.Field {
	return []tlv.Field{
		tlv.String(schema.FieldSsid, r.Ssid),
		tlv.String(schema.FieldPassword, r.Password),
	}
}

func (WifiDisconnectRequest) fields() []tlv.Field        { return nil }
func (SystemDataRequest) fields() []tlv.Field            { return nil }
func (RestartRequest) fields() []tlv.Field               { return nil }
func (JournalRequest) fields() []tlv.Field               { return nil }
func (FingerprintSensorInfoRequest) fields() []tlv.Field { return nil }
func (FingersRequest) fields() []tlv.Field               { return nil }

func (r GetUserSettingsRequest) fields() []tlv.Field {
	return []tlv.Field{tlv.String(schema.FieldGroupKey, r.GroupKey)}
}

func (r SetUserSettingsRequest) fields() []tlv.Field {
	return []tlv.Field{
		tlv.String(schema.FieldGroupKey, r.GroupKey),
		records(schema.FieldSettings, r.Settings),
	}
}

func (r TimeseriesRequest) fields() []tlv.Field {
	return []tlv.Field{tlv.U8(schema.FieldGranularity, uint8(r.Granularity))}
}

func (r StoreFingerActionRequest) fields() []tlv.Field {
	return []tlv.Field{
		tlv.U16(schema.FieldFingerIndex, r.FingerIndex),
		tlv.U16(schema.FieldActionIndex, r.ActionIndex),
	}
}

func (r StoreFingerScheduleRequest) fields() []tlv.Field {
	return []tlv.Field{
		tlv.U16(schema.FieldFingerIndex, r.FingerIndex),
		tlv.String(schema.FieldScheduleName, r.ScheduleName),
	}
}

func (r EnrollNewFingerRequest) fields() []tlv.Field {
	return []tlv.Field{tlv.String(schema.FieldName, r.Name)}
}

func (r SchedulerRequest) fields() []tlv.Field {
	return []tlv.Field{tlv.Bytes(schema.FieldSchedulerPayload, r.Payload)}
}

func (r SensactStatusRequest) fields() []tlv.Field {
	return []tlv.Field{scalars(schema.FieldIDs, r.IDs, tlv.U32)}
}

// requestDecoders is the static discriminant -> variant table for requests.
var requestDecoders = map[schema.RequestKind]func(*reader) Request{
	schema.RequestNetworkInformation: func(r *reader) Request {
		return NetworkInformationRequest{ForceNewSearch: r.boolean(schema.FieldForceNewSearch)}
	},
	schema.RequestWifiConnect: func(r *reader) Request {
		return WifiConnectRequest{
			Ssid:     r.str(schema.FieldSsid),
			Password: r.str(schema.FieldPassword),
		}
	},
	schema.RequestWifiDisconnect: func(*reader) Request { return WifiDisconnectRequest{} },
	schema.RequestSystemData:     func(*reader) Request { return SystemDataRequest{} },
	schema.RequestRestart:        func(*reader) Request { return RestartRequest{} },
	schema.RequestJournal:        func(*reader) Request { return JournalRequest{} },
	schema.RequestGetUserSettings: func(r *reader) Request {
		return GetUserSettingsRequest{GroupKey: r.str(schema.FieldGroupKey)}
	},
	schema.RequestSetUserSettings: func(r *reader) Request {
		return SetUserSettingsRequest{
			GroupKey: r.str(schema.FieldGroupKey),
			Settings: readRecords(r, schema.FieldSettings, readSetting),
		}
	},
	schema.RequestTimeseries: func(r *reader) Request {
		return TimeseriesRequest{Granularity: Granularity(r.u8(schema.FieldGranularity))}
	},
	schema.RequestFingerprintSensorInfo: func(*reader) Request { return FingerprintSensorInfoRequest{} },
	schema.RequestFingers:               func(*reader) Request { return FingersRequest{} },
	schema.RequestStoreFingerAction: func(r *reader) Request {
		return StoreFingerActionRequest{
			FingerIndex: r.u16(schema.FieldFingerIndex),
			ActionIndex: r.u16(schema.FieldActionIndex),
		}
	},
	schema.RequestStoreFingerSchedule: func(r *reader) Request {
		return StoreFingerScheduleRequest{
			FingerIndex:  r.u16(schema.FieldFingerIndex),
			ScheduleName: r.str(schema.FieldScheduleName),
		}
	},
	schema.RequestEnrollNewFinger: func(r *reader) Request {
		return EnrollNewFingerRequest{Name: r.str(schema.FieldName)}
	},
	schema.RequestScheduler: func(r *reader) Request {
		return SchedulerRequest{Payload: r.blob(schema.FieldSchedulerPayload)}
	},
	schema.RequestSensactStatus: func(r *reader) Request {
		return SensactStatusRequest{IDs: readScalars(r, schema.FieldIDs, tlv.Field.AsU32)}
	},
}
