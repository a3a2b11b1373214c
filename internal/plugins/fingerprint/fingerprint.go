// Package fingerprint is a synthetic fingerprint-sensor collaborator. Each
// session gets its own template library.
package fingerprint

import (
	"sort"
	"strings"

	"github.com/danmuck/webmanager/internal/plugins"
	"github.com/danmuck/webmanager/internal/protocol/envelope"
	"github.com/danmuck/webmanager/internal/protocol/schema"
)

const stateKey = "fingerprint.library"

// Error codes carried in fingerprint responses.
const (
	ErrorCodeOK uint32 = iota
	ErrorCodeUnknownFinger
	ErrorCodeInvalidName
	ErrorCodeLibraryFull
)

// EnrollSteps is the number of progress notifications sent per enrollment.
const EnrollSteps = 3

type library struct {
	fingers map[uint16]envelope.Finger
	next    uint16
}

type Plugin struct {
	Capacity         uint16
	SecurityLevel    uint16
	FirmwareVersion  uint32
	AlgorithmVersion string
}

func New() *Plugin {
	return &Plugin{
		Capacity:         200,
		SecurityLevel:    3,
		FirmwareVersion:  1,
		AlgorithmVersion: "synthetic-1",
	}
}

func (p *Plugin) Name() string { return "fingerprint" }

func (p *Plugin) Kinds() []schema.RequestKind {
	return []schema.RequestKind{
		schema.RequestFingerprintSensorInfo,
		schema.RequestFingers,
		schema.RequestStoreFingerAction,
		schema.RequestStoreFingerSchedule,
		schema.RequestEnrollNewFinger,
	}
}

func (p *Plugin) Handle(conn plugins.Conn, env envelope.RequestEnvelope) (plugins.Result, error) {
	lib := libraryOf(conn)
	var err error
	switch req := env.Request.(type) {
	case envelope.FingerprintSensorInfoRequest:
		err = plugins.Reply(conn, env, envelope.FingerprintSensorInfoResponse{
			Status:           0,
			Capacity:         p.Capacity,
			SecurityLevel:    p.SecurityLevel,
			DeviceAddress:    0xFFFFFFFF,
			LibraryUsed:      uint16(len(lib.fingers)),
			FirmwareVersion:  p.FirmwareVersion,
			AlgorithmVersion: p.AlgorithmVersion,
		})
	case envelope.FingersRequest:
		err = plugins.Reply(conn, env, envelope.FingersResponse{Fingers: lib.list()})
	case envelope.StoreFingerActionRequest:
		code := ErrorCodeUnknownFinger
		if f, ok := lib.fingers[req.FingerIndex]; ok {
			f.ActionIndex = req.ActionIndex
			lib.fingers[req.FingerIndex] = f
			code = ErrorCodeOK
		}
		err = plugins.Reply(conn, env, envelope.StoreFingerActionResponse{
			ErrorCode:   code,
			FingerIndex: req.FingerIndex,
			ActionIndex: req.ActionIndex,
		})
	case envelope.StoreFingerScheduleRequest:
		code := ErrorCodeUnknownFinger
		if f, ok := lib.fingers[req.FingerIndex]; ok {
			f.Schedule = req.ScheduleName
			lib.fingers[req.FingerIndex] = f
			code = ErrorCodeOK
		}
		err = plugins.Reply(conn, env, envelope.StoreFingerScheduleResponse{
			ErrorCode:    code,
			FingerIndex:  req.FingerIndex,
			ScheduleName: req.ScheduleName,
		})
	case envelope.EnrollNewFingerRequest:
		err = p.enroll(conn, env, lib, req)
	default:
		return plugins.NotForMe, nil
	}
	if err != nil {
		return plugins.ForMeButFailed, err
	}
	return plugins.Handled, nil
}

func (p *Plugin) enroll(conn plugins.Conn, env envelope.RequestEnvelope, lib *library, req envelope.EnrollNewFingerRequest) error {
	name := strings.TrimSpace(req.Name)
	code := ErrorCodeOK
	switch {
	case name == "":
		code = ErrorCodeInvalidName
	case len(lib.fingers) >= int(p.Capacity):
		code = ErrorCodeLibraryFull
	}
	if err := plugins.Reply(conn, env, envelope.EnrollNewFingerResponse{ErrorCode: code, Name: name}); err != nil {
		return err
	}
	if code != ErrorCodeOK {
		return nil
	}
	index := lib.next
	lib.next++
	lib.fingers[index] = envelope.Finger{Index: index, Name: name}
	for step := uint8(1); step <= EnrollSteps; step++ {
		if err := plugins.Notify(conn, envelope.EnrollNewFingerNotification{
			Name:        name,
			Step:        step,
			FingerIndex: index,
			ErrorCode:   ErrorCodeOK,
		}); err != nil {
			return err
		}
	}
	return nil
}

func libraryOf(conn plugins.Conn) *library {
	if v, ok := conn.Value(stateKey); ok {
		if lib, ok := v.(*library); ok {
			return lib
		}
	}
	lib := &library{fingers: make(map[uint16]envelope.Finger)}
	conn.SetValue(stateKey, lib)
	return lib
}

func (l *library) list() []envelope.Finger {
	if len(l.fingers) == 0 {
		return nil
	}
	out := make([]envelope.Finger, 0, len(l.fingers))
	for _, f := range l.fingers {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
