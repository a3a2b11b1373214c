package envelope

import (
	"github.com/danmuck/webmanager/internal/protocol/schema"
	"github.com/danmuck/webmanager/internal/protocol/tlv"
)

type NetworkInformationResponse struct {
	Hostname       string
	SsidAp         string
	PasswordAp     string
	IPAp           uint32
	IsConnectedSta bool
	SsidSta        string
	IPSta          uint32
	NetmaskSta     uint32
	GatewaySta     uint32
	RssiSta        int32
	AccessPoints   []AccessPoint
}

type WifiConnectSuccessfulResponse struct {
	Ssid    string
	IP      uint32
	Netmask uint32
	Gateway uint32
	Rssi    int32
}

type WifiConnectFailedResponse struct {
	Ssid string
}

type WifiDisconnectResponse struct{}

type SystemDataResponse struct {
	SecondsEpoch    uint64
	SecondsUptime   uint64
	FreeHeap        uint32
	MacWifiSta      Mac
	MacWifiSoftap   Mac
	MacBt           Mac
	MacEth          Mac
	MacIeee802154   Mac
	ChipModel       uint32
	ChipFeatures    uint32
	ChipRevision    uint16
	ChipCores       uint8
	ChipTemperature float32
	Partitions      []PartitionInfo
}

type JournalResponse struct {
	Items []JournalItem
}

type GetUserSettingsResponse struct {
	GroupKey string
	Settings []SettingWrapper
}

type SetUserSettingsResponse struct {
	GroupKey    string
	SettingKeys []string
}

type TimeseriesResponse struct {
	Granularity Granularity
	StartEpoch  uint64
	StepSeconds uint32
	Values      []float32
}

type FingerprintSensorInfoResponse struct {
	Status           uint32
	Capacity         uint16
	SecurityLevel    uint16
	DeviceAddress    uint32
	LibraryUsed      uint16
	FirmwareVersion  uint32
	AlgorithmVersion string
}

type FingersResponse struct {
	Fingers []Finger
}

type StoreFingerActionResponse struct {
	ErrorCode   uint32
	FingerIndex uint16
	ActionIndex uint16
}

type StoreFingerScheduleResponse struct {
	ErrorCode    uint32
	FingerIndex  uint16
	ScheduleName string
}

type EnrollNewFingerResponse struct {
	ErrorCode uint32
	Name      string
}

type SchedulerResponse struct {
	Payload []byte
}

type SensactStatusResponse struct {
	Statuses []SensactState
}

// LiveLogItemNotification is pushed by the broadcaster, never requested.
type LiveLogItemNotification struct {
	Text string
}

// EnrollNewFingerNotification reports one step of an enrollment in progress.
type EnrollNewFingerNotification struct {
	Name        string
	Step        uint8
	FingerIndex uint16
	ErrorCode   uint32
}

// RawResponse carries a payload encoded elsewhere, e.g. by a collaborator
// producing TLV bytes directly. The payload is validated against Kind on encode.
type RawResponse struct {
	Kind    schema.ResponseKind
	Payload []byte
}

func (NetworkInformationResponse) ResponseKind() schema.ResponseKind {
	return schema.ResponseNetworkInformation
}
func (WifiConnectSuccessfulResponse) ResponseKind() schema.ResponseKind {
	return schema.ResponseWifiConnectSuccessful
}
func (WifiConnectFailedResponse) ResponseKind() schema.ResponseKind {
	return schema.ResponseWifiConnectFailed
}
func (WifiDisconnectResponse) ResponseKind() schema.ResponseKind {
	return schema.ResponseWifiDisconnect
}
func (SystemDataResponse) ResponseKind() schema.ResponseKind { return schema.ResponseSystemData }
func (JournalResponse) ResponseKind() schema.ResponseKind    { return schema.ResponseJournal }
func (GetUserSettingsResponse) ResponseKind() schema.ResponseKind {
	return schema.ResponseGetUserSettings
}
func (SetUserSettingsResponse) ResponseKind() schema.ResponseKind {
	return schema.ResponseSetUserSettings
}
func (TimeseriesResponse) ResponseKind() schema.ResponseKind { return schema.ResponseTimeseries }
func (FingerprintSensorInfoResponse) ResponseKind() schema.ResponseKind {
	return schema.ResponseFingerprintSensorInfo
}
func (FingersResponse) ResponseKind() schema.ResponseKind { return schema.ResponseFingers }
func (StoreFingerActionResponse) ResponseKind() schema.ResponseKind {
	return schema.ResponseStoreFingerAction
}
func (StoreFingerScheduleResponse) ResponseKind() schema.ResponseKind {
	return schema.ResponseStoreFingerSchedule
}
func (EnrollNewFingerResponse) ResponseKind() schema.ResponseKind {
	return schema.ResponseEnrollNewFinger
}
func (SchedulerResponse) ResponseKind() schema.ResponseKind     { return schema.ResponseScheduler }
func (SensactStatusResponse) ResponseKind() schema.ResponseKind { return schema.ResponseSensactStatus }
func (LiveLogItemNotification) ResponseKind() schema.ResponseKind {
	return schema.NotifyLiveLogItem
}
func (EnrollNewFingerNotification) ResponseKind() schema.ResponseKind {
	return schema.NotifyEnrollNewFinger
}
func (r RawResponse) ResponseKind() schema.ResponseKind { return r.Kind }

func (r NetworkInformationResponse) fields() []tlv.Field {
	return []tlv.Field{
		tlv.String(schema.FieldHostname, r.Hostname),
		tlv.String(schema.FieldSsidAp, r.SsidAp),
		tlv.String(schema.FieldPasswordAp, r.PasswordAp),
		tlv.U32(schema.FieldIPAp, r.IPAp),
		tlv.Bool(schema.FieldIsConnectedSta, r.IsConnectedSta),
		tlv.String(schema.FieldSsidSta, r.SsidSta),
		tlv.U32(schema.FieldIPSta, r.IPSta),
		tlv.U32(schema.FieldNetmaskSta, r.NetmaskSta),
		tlv.U32(schema.FieldGatewaySta, r.GatewaySta),
		tlv.I32(schema.FieldRssiSta, r.RssiSta),
		records(schema.FieldAccessPoints, r.AccessPoints),
	}
}

func (r WifiConnectSuccessfulResponse) fields() []tlv.Field {
	return []tlv.Field{
		tlv.String(schema.FieldSsid, r.Ssid),
		tlv.U32(schema.FieldIP, r.IP),
		tlv.U32(schema.FieldNetmask, r.Netmask),
		tlv.U32(schema.FieldGateway, r.Gateway),
		tlv.I32(schema.FieldRssi, r.Rssi),
	}
}

func (r WifiConnectFailedResponse) fields() []tlv.Field {
	return []tlv.Field{tlv.String(schema.FieldSsid, r.Ssid)}
}

func (WifiDisconnectResponse) fields() []tlv.Field { return nil }

func (r SystemDataResponse) fields() []tlv.Field {
	return []tlv.Field{
		tlv.U64(schema.FieldSecondsEpoch, r.SecondsEpoch),
		tlv.U64(schema.FieldSecondsUptime, r.SecondsUptime),
		tlv.U32(schema.FieldFreeHeap, r.FreeHeap),
		tlv.Bytes(schema.FieldMacWifiSta, r.MacWifiSta[:]),
		tlv.Bytes(schema.FieldMacWifiSoftap, r.MacWifiSoftap[:]),
		tlv.Bytes(schema.FieldMacBt, r.MacBt[:]),
		tlv.Bytes(schema.FieldMacEth, r.MacEth[:]),
		tlv.Bytes(schema.FieldMacIeee802154, r.MacIeee802154[:]),
		tlv.U32(schema.FieldChipModel, r.ChipModel),
		tlv.U32(schema.FieldChipFeatures, r.ChipFeatures),
		tlv.U16(schema.FieldChipRevision, r.ChipRevision),
		tlv.U8(schema.FieldChipCores, r.ChipCores),
		tlv.F32(schema.FieldChipTemperature, r.ChipTemperature),
		records(schema.FieldPartitions, r.Partitions),
	}
}

func (r JournalResponse) fields() []tlv.Field {
	return []tlv.Field{records(schema.FieldJournalItems, r.Items)}
}

func (r GetUserSettingsResponse) fields() []tlv.Field {
	return []tlv.Field{
		tlv.String(schema.FieldGroupKey, r.GroupKey),
		records(schema.FieldSettings, r.Settings),
	}
}

func (r SetUserSettingsResponse) fields() []tlv.Field {
	return []tlv.Field{
		tlv.String(schema.FieldGroupKey, r.GroupKey),
		scalars(schema.FieldSettingKeys, r.SettingKeys, tlv.String),
	}
}

func (r TimeseriesResponse) fields() []tlv.Field {
	return []tlv.Field{
		tlv.U8(schema.FieldGranularity, uint8(r.Granularity)),
		tlv.U64(schema.FieldStartEpoch, r.StartEpoch),
		tlv.U32(schema.FieldStepSeconds, r.StepSeconds),
		scalars(schema.FieldValues, r.Values, tlv.F32),
	}
}

func (r FingerprintSensorInfoResponse) fields() []tlv.Field {
	return []tlv.Field{
		tlv.U32(schema.FieldStatus, r.Status),
		tlv.U16(schema.FieldCapacity, r.Capacity),
		tlv.U16(schema.FieldSecurityLevel, r.SecurityLevel),
		tlv.U32(schema.FieldDeviceAddress, r.DeviceAddress),
		tlv.U16(schema.FieldLibraryUsed, r.LibraryUsed),
		tlv.U32(schema.FieldFirmwareVersion, r.FirmwareVersion),
		tlv.String(schema.FieldAlgorithmVersion, r.AlgorithmVersion),
	}
}

func (r FingersResponse) fields() []tlv.Field {
	return []tlv.Field{records(schema.FieldFingers, r.Fingers)}
}

func (r StoreFingerActionResponse) fields() []tlv.Field {
	return []tlv.Field{
		tlv.U32(schema.FieldErrorCode, r.ErrorCode),
		tlv.U16(schema.FieldFingerIndex, r.FingerIndex),
		tlv.U16(schema.FieldActionIndex, r.ActionIndex),
	}
}

func (r StoreFingerScheduleResponse) fields() []tlv.Field {
	return []tlv.Field{
		tlv.U32(schema.FieldErrorCode, r.ErrorCode),
		tlv.U16(schema.FieldFingerIndex, r.FingerIndex),
		tlv.String(schema.FieldScheduleName, r.ScheduleName),
	}
}

func (r EnrollNewFingerResponse) fields() []tlv.Field {
	return []tlv.Field{
		tlv.U32(schema.FieldErrorCode, r.ErrorCode),
		tlv.String(schema.FieldName, r.Name),
	}
}

func (r SchedulerResponse) fields() []tlv.Field {
	return []tlv.Field{tlv.Bytes(schema.FieldSchedulerPayload, r.Payload)}
}

func (r SensactStatusResponse) fields() []tlv.Field {
	return []tlv.Field{records(schema.FieldStatuses, r.Statuses)}
}

func (r LiveLogItemNotification) fields() []tlv.Field {
	return []tlv.Field{tlv.String(schema.FieldText, r.Text)}
}

func (r EnrollNewFingerNotification) fields() []tlv.Field {
	return []tlv.Field{
		tlv.String(schema.FieldName, r.Name),
		tlv.U8(schema.FieldStep, r.Step),
		tlv.U16(schema.FieldFingerIndex, r.FingerIndex),
		tlv.U32(schema.FieldErrorCode, r.ErrorCode),
	}
}

// A malformed raw payload yields no fields and fails validation on encode.
func (r RawResponse) fields() []tlv.Field {
	fields, err := tlv.DecodeFields(r.Payload)
	if err != nil {
		return nil
	}
	return fields
}

// EncodePayload returns the TLV payload of resp without a frame header.
func EncodePayload(resp Response) []byte {
	return tlv.EncodeFields(resp.fields())
}

// responseDecoders is the static discriminant -> variant table for responses.
var responseDecoders = map[schema.ResponseKind]func(*reader) Response{
	schema.ResponseNetworkInformation: func(r *reader) Response {
		return NetworkInformationResponse{
			Hostname:       r.str(schema.FieldHostname),
			SsidAp:         r.str(schema.FieldSsidAp),
			PasswordAp:     r.str(schema.FieldPasswordAp),
			IPAp:           r.u32(schema.FieldIPAp),
			IsConnectedSta: r.boolean(schema.FieldIsConnectedSta),
			SsidSta:        r.str(schema.FieldSsidSta),
			IPSta:          r.u32(schema.FieldIPSta),
			NetmaskSta:     r.u32(schema.FieldNetmaskSta),
			GatewaySta:     r.u32(schema.FieldGatewaySta),
			RssiSta:        r.i32(schema.FieldRssiSta),
			AccessPoints:   readRecords(r, schema.FieldAccessPoints, readAccessPoint),
		}
	},
	schema.ResponseWifiConnectSuccessful: func(r *reader) Response {
		return WifiConnectSuccessfulResponse{
			Ssid:    r.str(schema.FieldSsid),
			IP:      r.u32(schema.FieldIP),
			Netmask: r.u32(schema.FieldNetmask),
			Gateway: r.u32(schema.FieldGateway),
			Rssi:    r.i32(schema.FieldRssi),
		}
	},
	schema.ResponseWifiConnectFailed: func(r *reader) Response {
		return WifiConnectFailedResponse{Ssid: r.str(schema.FieldSsid)}
	},
	schema.ResponseWifiDisconnect: func(*reader) Response { return WifiDisconnectResponse{} },
	schema.ResponseSystemData: func(r *reader) Response {
		return SystemDataResponse{
			SecondsEpoch:    r.u64(schema.FieldSecondsEpoch),
			SecondsUptime:   r.u64(schema.FieldSecondsUptime),
			FreeHeap:        r.u32(schema.FieldFreeHeap),
			MacWifiSta:      r.mac(schema.FieldMacWifiSta),
			MacWifiSoftap:   r.mac(schema.FieldMacWifiSoftap),
			MacBt:           r.mac(schema.FieldMacBt),
			MacEth:          r.mac(schema.FieldMacEth),
			MacIeee802154:   r.mac(schema.FieldMacIeee802154),
			ChipModel:       r.u32(schema.FieldChipModel),
			ChipFeatures:    r.u32(schema.FieldChipFeatures),
			ChipRevision:    r.u16(schema.FieldChipRevision),
			ChipCores:       r.u8(schema.FieldChipCores),
			ChipTemperature: r.f32(schema.FieldChipTemperature),
			Partitions:      readRecords(r, schema.FieldPartitions, readPartition),
		}
	},
	schema.ResponseJournal: func(r *reader) Response {
		return JournalResponse{Items: readRecords(r, schema.FieldJournalItems, readJournalItem)}
	},
	schema.ResponseGetUserSettings: func(r *reader) Response {
		return GetUserSettingsResponse{
			GroupKey: r.str(schema.FieldGroupKey),
			Settings: readRecords(r, schema.FieldSettings, readSetting),
		}
	},
	schema.ResponseSetUserSettings: func(r *reader) Response {
		return SetUserSettingsResponse{
			GroupKey:    r.str(schema.FieldGroupKey),
			SettingKeys: readScalars(r, schema.FieldSettingKeys, tlv.Field.AsString),
		}
	},
	schema.ResponseTimeseries: func(r *reader) Response {
		return TimeseriesResponse{
			Granularity: Granularity(r.u8(schema.FieldGranularity)),
			StartEpoch:  r.u64(schema.FieldStartEpoch),
			StepSeconds: r.u32(schema.FieldStepSeconds),
			Values:      readScalars(r, schema.FieldValues, tlv.Field.AsF32),
		}
	},
	schema.ResponseFingerprintSensorInfo: func(r *reader) Response {
		return FingerprintSensorInfoResponse{
			Status:           r.u32(schema.FieldStatus),
			Capacity:         r.u16(schema.FieldCapacity),
			SecurityLevel:    r.u16(schema.FieldSecurityLevel),
			DeviceAddress:    r.u32(schema.FieldDeviceAddress),
			LibraryUsed:      r.u16(schema.FieldLibraryUsed),
			FirmwareVersion:  r.u32(schema.FieldFirmwareVersion),
			AlgorithmVersion: r.str(schema.FieldAlgorithmVersion),
		}
	},
	schema.ResponseFingers: func(r *reader) Response {
		return FingersResponse{Fingers: readRecords(r, schema.FieldFingers, readFinger)}
	},
	schema.ResponseStoreFingerAction: func(r *reader) Response {
		return StoreFingerActionResponse{
			ErrorCode:   r.u32(schema.FieldErrorCode),
			FingerIndex: r.u16(schema.FieldFingerIndex),
			ActionIndex: r.u16(schema.FieldActionIndex),
		}
	},
	schema.ResponseStoreFingerSchedule: func(r *reader) Response {
		return StoreFingerScheduleResponse{
			ErrorCode:    r.u32(schema.FieldErrorCode),
			FingerIndex:  r.u16(schema.FieldFingerIndex),
			ScheduleName: r.str(schema.FieldScheduleName),
		}
	},
	schema.ResponseEnrollNewFinger: func(r *reader) Response {
		return EnrollNewFingerResponse{
			ErrorCode: r.u32(schema.FieldErrorCode),
			Name:      r.str(schema.FieldName),
		}
	},
	schema.ResponseScheduler: func(r *reader) Response {
		return SchedulerResponse{Payload: r.blob(schema.FieldSchedulerPayload)}
	},
	schema.ResponseSensactStatus: func(r *reader) Response {
		return SensactStatusResponse{Statuses: readRecords(r, schema.FieldStatuses, readSensactState)}
	},
	schema.NotifyLiveLogItem: func(r *reader) Response {
		return LiveLogItemNotification{Text: r.str(schema.FieldText)}
	},
	schema.NotifyEnrollNewFinger: func(r *reader) Response {
		return EnrollNewFingerNotification{
			Name:        r.str(schema.FieldName),
			Step:        r.u8(schema.FieldStep),
			FingerIndex: r.u16(schema.FieldFingerIndex),
			ErrorCode:   r.u32(schema.FieldErrorCode),
		}
	},
}
