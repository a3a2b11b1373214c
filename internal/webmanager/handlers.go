package webmanager

import (
	"fmt"
	"time"

	"github.com/danmuck/webmanager/internal/plugins"
	"github.com/danmuck/webmanager/internal/protocol/envelope"
	"github.com/danmuck/webmanager/internal/protocol/schema"
	"github.com/rs/zerolog/log"
)

// DefaultKnownGoodSsid is the access point that WifiConnect accepts.
const DefaultKnownGoodSsid = "Connect to AP -50dB Auth=2"

const knownBadSsid = "Connect to AP -100dB Auth=2"

// HandlerFunc answers one decoded request on the session loop. It must not block.
type HandlerFunc func(conn Conn, env envelope.RequestEnvelope) error

// SeriesProducer renders the encoded payload of a timeseries response.
type SeriesProducer interface {
	Produce(g envelope.Granularity) ([]byte, error)
}

// Handlers is the core handler set. Kinds it does not bind fall through to plugins.
type Handlers struct {
	KnownGoodSsid string
	Series        SeriesProducer
	Now           func() time.Time
	StartedAt     time.Time
	OnRestart     func()
}

// Table returns the discriminant -> handler bindings.
func (h *Handlers) Table() map[schema.RequestKind]HandlerFunc {
	return map[schema.RequestKind]HandlerFunc{
		schema.RequestNetworkInformation: h.networkInformation,
		schema.RequestWifiConnect:        h.wifiConnect,
		schema.RequestWifiDisconnect:     h.wifiDisconnect,
		schema.RequestSystemData:         h.systemData,
		schema.RequestRestart:            h.restart,
		schema.RequestJournal:            h.journal,
		schema.RequestGetUserSettings:    h.getUserSettings,
		schema.RequestSetUserSettings:    h.setUserSettings,
		schema.RequestTimeseries:         h.timeseries,
	}
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handlers) knownGood() string {
	if h.KnownGoodSsid != "" {
		return h.KnownGoodSsid
	}
	return DefaultKnownGoodSsid
}

func (h *Handlers) networkInformation(conn Conn, env envelope.RequestEnvelope) error {
	req := env.Request.(envelope.NetworkInformationRequest)
	log.Debug().Str("session_id", conn.ID()).Bool("force_new_search", req.ForceNewSearch).Msg("handlers.networkInformation")
	return plugins.Reply(conn, env, envelope.NetworkInformationResponse{
		Hostname:       "MyHostnameKL",
		SsidAp:         "MySsidApKL",
		PasswordAp:     "Password",
		IPAp:           32,
		IsConnectedSta: true,
		SsidSta:        "ssidSta",
		IPSta:          32,
		NetmaskSta:     43,
		GatewaySta:     23,
		RssiSta:        23,
		AccessPoints: []envelope.AccessPoint{
			{Ssid: knownBadSsid, PrimaryChannel: 11, Rssi: -66, AuthMode: 2},
			{Ssid: h.knownGood(), PrimaryChannel: 11, Rssi: -50, AuthMode: 2},
			{Ssid: "AP -76dB Auth=0", PrimaryChannel: 11, Rssi: -76, AuthMode: 0},
			{Ssid: "AP -74dB Auth=0", PrimaryChannel: 11, Rssi: -74, AuthMode: 0},
			{Ssid: "AP -66dB Auth=0", PrimaryChannel: 11, Rssi: -66, AuthMode: 0},
			{Ssid: "AP -59dB Auth=0", PrimaryChannel: 11, Rssi: -50, AuthMode: 0},
		},
	})
}

func (h *Handlers) wifiConnect(conn Conn, env envelope.RequestEnvelope) error {
	req := env.Request.(envelope.WifiConnectRequest)
	if req.Ssid != h.knownGood() {
		return plugins.Reply(conn, env, envelope.WifiConnectFailedResponse{Ssid: req.Ssid})
	}
	return plugins.Reply(conn, env, envelope.WifiConnectSuccessfulResponse{
		Ssid:    req.Ssid,
		IP:      0xFF101001,
		Netmask: 0x10101002,
		Gateway: 0xFF101003,
		Rssi:    -62,
	})
}

func (h *Handlers) wifiDisconnect(conn Conn, env envelope.RequestEnvelope) error {
	return plugins.Reply(conn, env, envelope.WifiDisconnectResponse{})
}

func (h *Handlers) systemData(conn Conn, env envelope.RequestEnvelope) error {
	now := h.now()
	uptime := uint64(0)
	if !h.StartedAt.IsZero() && now.After(h.StartedAt) {
		uptime = uint64(now.Sub(h.StartedAt) / time.Second)
	}
	mac := envelope.Mac{1, 2, 3, 4, 5, 6}
	return plugins.Reply(conn, env, envelope.SystemDataResponse{
		SecondsEpoch:    uint64(now.Unix()),
		SecondsUptime:   uptime,
		FreeHeap:        1203,
		MacWifiSta:      mac,
		MacWifiSoftap:   mac,
		MacBt:           mac,
		MacEth:          mac,
		MacIeee802154:   mac,
		ChipModel:       2,
		ChipFeatures:    255,
		ChipRevision:    3,
		ChipCores:       2,
		ChipTemperature: 23.4,
		Partitions: []envelope.PartitionInfo{
			{
				Label:      "Label0",
				Type:       0,
				Subtype:    0x10,
				Size:       3072,
				OtaState:   1,
				Running:    true,
				AppName:    "AppName",
				AppVersion: "AppVersion",
				AppDate:    "AppDate",
				AppTime:    "AppTime",
			},
			{
				Label:      "Label1",
				Type:       1,
				Subtype:    0x01,
				Size:       16384,
				OtaState:   1,
				Running:    true,
				AppName:    "AppName",
				AppVersion: "AppVersion",
				AppDate:    "AppDate",
				AppTime:    "AppTime",
			},
		},
	})
}

// restart has no response; the peer sees the connection drop if OnRestart acts.
func (h *Handlers) restart(conn Conn, _ envelope.RequestEnvelope) error {
	log.Warn().Str("session_id", conn.ID()).Msg("handlers.restart requested")
	if h.OnRestart != nil {
		h.OnRestart()
	}
	return nil
}

func (h *Handlers) journal(conn Conn, env envelope.RequestEnvelope) error {
	st := stateOf(conn)
	c := uint32(st.counter)
	resp := envelope.JournalResponse{Items: []envelope.JournalItem{
		{LastMessageTimestamp: 22, MessageCode: 1, MessageString: "I2C_COMM", LastMessageData: 0, MessageCount: c},
		{LastMessageTimestamp: 222, MessageCode: 2, MessageString: "SPI_COMM", LastMessageData: 0, MessageCount: 1},
		{LastMessageTimestamp: 2222, MessageCode: 3, MessageString: "I2S_COMM", LastMessageData: c, MessageCount: 1},
		{LastMessageTimestamp: 22222, MessageCode: 4, MessageString: "ETH_COMM", LastMessageData: 0, MessageCount: 1},
	}}
	st.counter++
	return plugins.Reply(conn, env, resp)
}

func (h *Handlers) getUserSettings(conn Conn, env envelope.RequestEnvelope) error {
	req := env.Request.(envelope.GetUserSettingsRequest)
	return plugins.Reply(conn, env, envelope.GetUserSettingsResponse{
		GroupKey: req.GroupKey,
		Settings: settingsGroup(stateOf(conn), req.GroupKey),
	})
}

// setUserSettings echoes the updated keys; values are not validated here.
func (h *Handlers) setUserSettings(conn Conn, env envelope.RequestEnvelope) error {
	req := env.Request.(envelope.SetUserSettingsRequest)
	var keys []string
	for _, s := range req.Settings {
		keys = append(keys, s.Key)
	}
	return plugins.Reply(conn, env, envelope.SetUserSettingsResponse{
		GroupKey:    req.GroupKey,
		SettingKeys: keys,
	})
}

func (h *Handlers) timeseries(conn Conn, env envelope.RequestEnvelope) error {
	req := env.Request.(envelope.TimeseriesRequest)
	if h.Series == nil {
		return ErrNoSeriesProducer
	}
	payload, err := h.Series.Produce(req.Granularity)
	if err != nil {
		return err
	}
	return plugins.Reply(conn, env, envelope.RawResponse{Kind: schema.ResponseTimeseries, Payload: payload})
}

// settingsGroup returns the named group's settings; an unknown group is empty.
// Reading Group2 advances the session counter and flips the toggle.
func settingsGroup(st *demoState, key string) []envelope.SettingWrapper {
	switch key {
	case "Group1":
		return []envelope.SettingWrapper{
			{Key: "G1_1_S", Setting: envelope.StringSetting{Value: fmt.Sprintf("Test String Item1 Value %d", st.counter)}},
			{Key: "G1_2_S", Setting: envelope.StringSetting{Value: fmt.Sprintf("Test String Item2 Value %d", st.counter)}},
		}
	case "Group2":
		out := []envelope.SettingWrapper{
			{Key: "G2_1_S", Setting: envelope.StringSetting{Value: "Test String sub1item2 Value"}},
			{Key: "G2_2_I", Setting: envelope.IntegerSetting{Value: st.counter}},
			{Key: "G2_3_B", Setting: envelope.BooleanSetting{Value: st.toggle}},
			{Key: "G2_4_E", Setting: envelope.EnumSetting{Value: st.counter % 4}},
		}
		st.counter++
		st.toggle = !st.toggle
		return out
	default:
		return nil
	}
}
