package schema

import (
	"fmt"
	"strings"

	"github.com/danmuck/webmanager/internal/protocol/tlv"
	"github.com/rs/zerolog/log"
)

// RequestKind is the discriminant of a client->server envelope.
type RequestKind uint32

// ResponseKind is the discriminant of a server->client envelope (responses and notifications).
type ResponseKind uint32

// Request discriminants.
const (
	RequestNetworkInformation RequestKind = iota + 1
	RequestWifiConnect
	RequestWifiDisconnect
	RequestSystemData
	RequestRestart
	RequestJournal
	RequestGetUserSettings
	RequestSetUserSettings
	RequestTimeseries
	RequestFingerprintSensorInfo
	RequestFingers
	RequestStoreFingerAction
	RequestStoreFingerSchedule
	RequestEnrollNewFinger
	RequestScheduler
	RequestSensactStatus
)

// Response discriminants.
const (
	ResponseNetworkInformation ResponseKind = iota + 1
	ResponseWifiConnectSuccessful
	ResponseWifiConnectFailed
	ResponseWifiDisconnect
	ResponseSystemData
	ResponseJournal
	ResponseGetUserSettings
	ResponseSetUserSettings
	ResponseTimeseries
	ResponseFingerprintSensorInfo
	ResponseFingers
	ResponseStoreFingerAction
	ResponseStoreFingerSchedule
	ResponseEnrollNewFinger
	ResponseScheduler
	ResponseSensactStatus
)

// Notification discriminants share the response space but never answer a request.
const (
	NotifyLiveLogItem ResponseKind = iota + 100
	NotifyEnrollNewFinger
)

var requestNames = map[RequestKind]string{
	RequestNetworkInformation:    "network_information",
	RequestWifiConnect:           "wifi_connect",
	RequestWifiDisconnect:        "wifi_disconnect",
	RequestSystemData:            "system_data",
	RequestRestart:               "restart",
	RequestJournal:               "journal",
	RequestGetUserSettings:       "get_user_settings",
	RequestSetUserSettings:       "set_user_settings",
	RequestTimeseries:            "timeseries",
	RequestFingerprintSensorInfo: "fingerprint_sensor_info",
	RequestFingers:               "fingers",
	RequestStoreFingerAction:     "store_finger_action",
	RequestStoreFingerSchedule:   "store_finger_schedule",
	RequestEnrollNewFinger:       "enroll_new_finger",
	RequestScheduler:             "scheduler",
	RequestSensactStatus:         "sensact_status",
}

var responseNames = map[ResponseKind]string{
	ResponseNetworkInformation:    "network_information",
	ResponseWifiConnectSuccessful: "wifi_connect_successful",
	ResponseWifiConnectFailed:     "wifi_connect_failed",
	ResponseWifiDisconnect:        "wifi_disconnect",
	ResponseSystemData:            "system_data",
	ResponseJournal:               "journal",
	ResponseGetUserSettings:       "get_user_settings",
	ResponseSetUserSettings:       "set_user_settings",
	ResponseTimeseries:            "timeseries",
	ResponseFingerprintSensorInfo: "fingerprint_sensor_info",
	ResponseFingers:               "fingers",
	ResponseStoreFingerAction:     "store_finger_action",
	ResponseStoreFingerSchedule:   "store_finger_schedule",
	ResponseEnrollNewFinger:       "enroll_new_finger",
	ResponseScheduler:             "scheduler",
	ResponseSensactStatus:         "sensact_status",
	NotifyLiveLogItem:             "notify_live_log_item",
	NotifyEnrollNewFinger:         "notify_enroll_new_finger",
}

func (k RequestKind) String() string {
	if name, ok := requestNames[k]; ok {
		return name
	}
	return fmt.Sprintf("request(%d)", uint32(k))
}

func (k ResponseKind) String() string {
	if name, ok := responseNames[k]; ok {
		return name
	}
	return fmt.Sprintf("response(%d)", uint32(k))
}

// Known reports whether k is part of the static request table.
func (k RequestKind) Known() bool {
	_, ok := requestNames[k]
	return ok
}

// Known reports whether k is part of the static response table.
func (k ResponseKind) Known() bool {
	_, ok := responseNames[k]
	return ok
}

// IsNotification reports whether k is an unsolicited kind.
func (k ResponseKind) IsNotification() bool {
	return k >= NotifyLiveLogItem
}

// RequestKinds returns every request discriminant in ascending order.
func RequestKinds() []RequestKind {
	out := make([]RequestKind, 0, len(requestNames))
	for k := RequestNetworkInformation; k <= RequestSensactStatus; k++ {
		out = append(out, k)
	}
	return out
}

// ResponseKinds returns every response and notification discriminant in ascending order.
func ResponseKinds() []ResponseKind {
	out := make([]ResponseKind, 0, len(responseNames))
	for k := ResponseNetworkInformation; k <= ResponseSensactStatus; k++ {
		out = append(out, k)
	}
	return append(out, NotifyLiveLogItem, NotifyEnrollNewFinger)
}

// ParseRequestKind resolves a config/table name such as "wifi_connect".
func ParseRequestKind(name string) (RequestKind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range requestNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Field IDs from tlv contract.
const (
	FieldGroupKey    uint16 = 1
	FieldSettings    uint16 = 2
	FieldSettingKeys uint16 = 3

	FieldSettingKey   uint16 = 10
	FieldSettingType  uint16 = 11
	FieldSettingValue uint16 = 12

	FieldForceNewSearch uint16 = 100
	FieldHostname       uint16 = 101
	FieldSsidAp         uint16 = 102
	FieldPasswordAp     uint16 = 103
	FieldIPAp           uint16 = 104
	FieldIsConnectedSta uint16 = 105
	FieldSsidSta        uint16 = 106
	FieldIPSta          uint16 = 107
	FieldNetmaskSta     uint16 = 108
	FieldGatewaySta     uint16 = 109
	FieldRssiSta        uint16 = 110
	FieldAccessPoints   uint16 = 111

	FieldSsid           uint16 = 120
	FieldPrimaryChannel uint16 = 121
	FieldRssi           uint16 = 122
	FieldAuthMode       uint16 = 123
	FieldPassword       uint16 = 124
	FieldIP             uint16 = 125
	FieldNetmask        uint16 = 126
	FieldGateway        uint16 = 127

	FieldSecondsEpoch    uint16 = 200
	FieldSecondsUptime   uint16 = 201
	FieldFreeHeap        uint16 = 202
	FieldMacWifiSta      uint16 = 203
	FieldMacWifiSoftap   uint16 = 204
	FieldMacBt           uint16 = 205
	FieldMacEth          uint16 = 206
	FieldMacIeee802154   uint16 = 207
	FieldChipModel       uint16 = 208
	FieldChipFeatures    uint16 = 209
	FieldChipRevision    uint16 = 210
	FieldChipCores       uint16 = 211
	FieldChipTemperature uint16 = 212
	FieldPartitions      uint16 = 213

	FieldLabel            uint16 = 220
	FieldPartitionType    uint16 = 221
	FieldPartitionSubtype uint16 = 222
	FieldPartitionSize    uint16 = 223
	FieldOtaState         uint16 = 224
	FieldRunning          uint16 = 225
	FieldAppName          uint16 = 226
	FieldAppVersion       uint16 = 227
	FieldAppDate          uint16 = 228
	FieldAppTime          uint16 = 229

	FieldJournalItems         uint16 = 300
	FieldLastMessageTimestamp uint16 = 301
	FieldMessageCode          uint16 = 302
	FieldMessageString        uint16 = 303
	FieldLastMessageData      uint16 = 304
	FieldMessageCount         uint16 = 305

	FieldGranularity uint16 = 400
	FieldStartEpoch  uint16 = 401
	FieldStepSeconds uint16 = 402
	FieldValues      uint16 = 403

	FieldFingerIndex      uint16 = 500
	FieldActionIndex      uint16 = 501
	FieldScheduleName     uint16 = 502
	FieldName             uint16 = 503
	FieldStep             uint16 = 504
	FieldErrorCode        uint16 = 505
	FieldFingers          uint16 = 506
	FieldStatus           uint16 = 507
	FieldCapacity         uint16 = 508
	FieldSecurityLevel    uint16 = 509
	FieldDeviceAddress    uint16 = 510
	FieldLibraryUsed      uint16 = 511
	FieldFirmwareVersion  uint16 = 512
	FieldAlgorithmVersion uint16 = 513

	FieldSchedulerPayload uint16 = 600

	FieldIDs      uint16 = 700
	FieldStatuses uint16 = 701
	FieldID       uint16 = 702
	FieldValue    uint16 = 703

	FieldText uint16 = 800
)

// MacLen is the width of fixed hardware-identifier fields.
const MacLen = 6

type Requirement struct {
	ID   uint16
	Type uint8
}

type ValidationError struct {
	MessageType uint32
	Response    bool
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	family := "request"
	if e.Response {
		family = "response"
	}
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: %s message_type=%d: %s", family, e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: %s message_type=%d field=%d: %s", family, e.MessageType, e.FieldID, e.Reason)
}

// Kinds absent from these tables carry an empty payload.
var requestRequirements = map[RequestKind][]Requirement{
	RequestNetworkInformation: {
		{FieldForceNewSearch, tlv.TypeBool},
	},
	RequestWifiConnect: {
		{FieldSsid, tlv.TypeString},
		{FieldPassword, tlv.TypeString},
	},
	RequestGetUserSettings: {
		{FieldGroupKey, tlv.TypeString},
	},
	RequestSetUserSettings: {
		{FieldGroupKey, tlv.TypeString},
		{FieldSettings, tlv.TypeList},
	},
	RequestTimeseries: {
		{FieldGranularity, tlv.TypeU8},
	},
	RequestStoreFingerAction: {
		{FieldFingerIndex, tlv.TypeU16},
		{FieldActionIndex, tlv.TypeU16},
	},
	RequestStoreFingerSchedule: {
		{FieldFingerIndex, tlv.TypeU16},
		{FieldScheduleName, tlv.TypeString},
	},
	RequestEnrollNewFinger: {
		{FieldName, tlv.TypeString},
	},
	RequestScheduler: {
		{FieldSchedulerPayload, tlv.TypeBytes},
	},
	RequestSensactStatus: {
		{FieldIDs, tlv.TypeList},
	},
}

var responseRequirements = map[ResponseKind][]Requirement{
	ResponseNetworkInformation: {
		{FieldHostname, tlv.TypeString},
		{FieldSsidAp, tlv.TypeString},
		{FieldIsConnectedSta, tlv.TypeBool},
		{FieldAccessPoints, tlv.TypeList},
	},
	ResponseWifiConnectSuccessful: {
		{FieldSsid, tlv.TypeString},
		{FieldIP, tlv.TypeU32},
		{FieldNetmask, tlv.TypeU32},
		{FieldGateway, tlv.TypeU32},
		{FieldRssi, tlv.TypeI32},
	},
	ResponseWifiConnectFailed: {
		{FieldSsid, tlv.TypeString},
	},
	ResponseSystemData: {
		{FieldSecondsEpoch, tlv.TypeU64},
		{FieldSecondsUptime, tlv.TypeU64},
		{FieldPartitions, tlv.TypeList},
	},
	ResponseJournal: {
		{FieldJournalItems, tlv.TypeList},
	},
	ResponseGetUserSettings: {
		{FieldGroupKey, tlv.TypeString},
		{FieldSettings, tlv.TypeList},
	},
	ResponseSetUserSettings: {
		{FieldGroupKey, tlv.TypeString},
		{FieldSettingKeys, tlv.TypeList},
	},
	ResponseTimeseries: {
		{FieldGranularity, tlv.TypeU8},
		{FieldStartEpoch, tlv.TypeU64},
		{FieldStepSeconds, tlv.TypeU32},
		{FieldValues, tlv.TypeList},
	},
	ResponseFingerprintSensorInfo: {
		{FieldStatus, tlv.TypeU32},
		{FieldCapacity, tlv.TypeU16},
	},
	ResponseFingers: {
		{FieldFingers, tlv.TypeList},
	},
	ResponseStoreFingerAction: {
		{FieldErrorCode, tlv.TypeU32},
		{FieldFingerIndex, tlv.TypeU16},
		{FieldActionIndex, tlv.TypeU16},
	},
	ResponseStoreFingerSchedule: {
		{FieldErrorCode, tlv.TypeU32},
		{FieldFingerIndex, tlv.TypeU16},
		{FieldScheduleName, tlv.TypeString},
	},
	ResponseEnrollNewFinger: {
		{FieldErrorCode, tlv.TypeU32},
		{FieldName, tlv.TypeString},
	},
	ResponseScheduler: {
		{FieldSchedulerPayload, tlv.TypeBytes},
	},
	ResponseSensactStatus: {
		{FieldStatuses, tlv.TypeList},
	},
	NotifyLiveLogItem: {
		{FieldText, tlv.TypeString},
	},
	NotifyEnrollNewFinger: {
		{FieldName, tlv.TypeString},
		{FieldStep, tlv.TypeU8},
		{FieldFingerIndex, tlv.TypeU16},
		{FieldErrorCode, tlv.TypeU32},
	},
}

// ValidateRequest enforces required fields and field types for a request kind.
// Unknown fields are ignored.
func ValidateRequest(kind RequestKind, fields []tlv.Field) error {
	if !kind.Known() {
		return ValidationError{MessageType: uint32(kind), Reason: "unknown message_type"}
	}
	return validate(uint32(kind), false, requestRequirements[kind], fields)
}

// ValidateResponse enforces required fields and field types for a response kind.
func ValidateResponse(kind ResponseKind, fields []tlv.Field) error {
	if !kind.Known() {
		return ValidationError{MessageType: uint32(kind), Response: true, Reason: "unknown message_type"}
	}
	return validate(uint32(kind), true, responseRequirements[kind], fields)
}

func validate(messageType uint32, response bool, reqs []Requirement, fields []tlv.Field) error {
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			log.Debug().
				Uint32("message_type", messageType).
				Bool("response", response).
				Uint16("field_id", req.ID).
				Msg("schema.validate missing field")
			return ValidationError{MessageType: messageType, Response: response, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			log.Debug().
				Uint32("message_type", messageType).
				Bool("response", response).
				Uint16("field_id", req.ID).
				Uint8("got", f.Type).
				Uint8("want", req.Type).
				Msg("schema.validate type mismatch")
			return ValidationError{MessageType: messageType, Response: response, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	return nil
}
