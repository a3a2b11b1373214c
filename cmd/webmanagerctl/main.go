package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/webmanager/internal/client"
	"github.com/danmuck/webmanager/internal/logging"
	"github.com/danmuck/webmanager/internal/protocol/envelope"
	"github.com/danmuck/webmanager/internal/protocol/schema"
)

var errUsage = errors.New("usage")

type options struct {
	url         string
	kind        string
	group       string
	ssid        string
	password    string
	name        string
	granularity uint
	finger      uint
	action      uint
	schedule    string
	ids         string
	payload     string
	force       bool
	timeout     time.Duration
	watch       time.Duration
	attempts    int
}

func main() {
	opts := parseFlags()
	logging.ConfigureRuntime()
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "webmanagerctl: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.url, "url", client.DefaultConfig().URL, "websocket endpoint")
	flag.StringVar(&opts.kind, "kind", "system_data", "request kind, e.g. wifi_connect, get_user_settings")
	flag.StringVar(&opts.group, "group", "Group1", "settings group key")
	flag.StringVar(&opts.ssid, "ssid", "", "wifi ssid")
	flag.StringVar(&opts.password, "password", "", "wifi password")
	flag.StringVar(&opts.name, "name", "", "finger name")
	flag.UintVar(&opts.granularity, "granularity", 0, "timeseries granularity 0..3")
	flag.UintVar(&opts.finger, "finger", 0, "finger index")
	flag.UintVar(&opts.action, "action", 0, "action index")
	flag.StringVar(&opts.schedule, "schedule", "", "schedule name")
	flag.StringVar(&opts.ids, "ids", "", "sensact ids, comma-separated")
	flag.StringVar(&opts.payload, "payload", "", "scheduler payload")
	flag.BoolVar(&opts.force, "force", false, "force a new network search")
	flag.DurationVar(&opts.timeout, "timeout", 10*time.Second, "response timeout")
	flag.DurationVar(&opts.watch, "watch", 0, "print notifications for this long after the response")
	flag.IntVar(&opts.attempts, "attempts", client.DefaultConfig().MaxAttempts, "dial attempts, 0 retries until timeout")
	flag.Parse()
	return opts
}

func run(opts options) error {
	req, err := buildRequest(opts)
	if err != nil {
		return err
	}
	cfg := client.DefaultConfig()
	cfg.URL = opts.url
	cfg.MaxAttempts = opts.attempts

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	c, err := client.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if req.RequestKind() == schema.RequestRestart {
		if _, err := c.Send(req); err != nil {
			return err
		}
		fmt.Println("restart requested")
	} else {
		env, err := c.Call(ctx, req)
		if err != nil {
			return err
		}
		if err := printEnvelope(env); err != nil {
			return err
		}
	}

	if opts.watch <= 0 {
		return nil
	}
	watch := time.NewTimer(opts.watch)
	defer watch.Stop()
	for {
		select {
		case env := <-c.Notifications():
			if err := printEnvelope(env); err != nil {
				return err
			}
		case <-watch.C:
			return nil
		case <-c.Done():
			return nil
		}
	}
}

func buildRequest(opts options) (envelope.Request, error) {
	kind, ok := schema.ParseRequestKind(opts.kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", errUsage, opts.kind)
	}
	switch kind {
	case schema.RequestNetworkInformation:
		return envelope.NetworkInformationRequest{ForceNewSearch: opts.force}, nil
	case schema.RequestWifiConnect:
		if opts.ssid == "" {
			return nil, fmt.Errorf("%w: wifi_connect needs -ssid", errUsage)
		}
		return envelope.WifiConnectRequest{Ssid: opts.ssid, Password: opts.password}, nil
	case schema.RequestWifiDisconnect:
		return envelope.WifiDisconnectRequest{}, nil
	case schema.RequestSystemData:
		return envelope.SystemDataRequest{}, nil
	case schema.RequestRestart:
		return envelope.RestartRequest{}, nil
	case schema.RequestJournal:
		return envelope.JournalRequest{}, nil
	case schema.RequestGetUserSettings:
		return envelope.GetUserSettingsRequest{GroupKey: opts.group}, nil
	case schema.RequestSetUserSettings:
		return envelope.SetUserSettingsRequest{GroupKey: opts.group}, nil
	case schema.RequestTimeseries:
		if opts.granularity > uint(envelope.GranularityOneDay) {
			return nil, fmt.Errorf("%w: granularity must be 0..3", errUsage)
		}
		return envelope.TimeseriesRequest{Granularity: envelope.Granularity(opts.granularity)}, nil
	case schema.RequestFingerprintSensorInfo:
		return envelope.FingerprintSensorInfoRequest{}, nil
	case schema.RequestFingers:
		return envelope.FingersRequest{}, nil
	case schema.RequestStoreFingerAction:
		return envelope.StoreFingerActionRequest{FingerIndex: uint16(opts.finger), ActionIndex: uint16(opts.action)}, nil
	case schema.RequestStoreFingerSchedule:
		return envelope.StoreFingerScheduleRequest{FingerIndex: uint16(opts.finger), ScheduleName: opts.schedule}, nil
	case schema.RequestEnrollNewFinger:
		return envelope.EnrollNewFingerRequest{Name: opts.name}, nil
	case schema.RequestScheduler:
		return envelope.SchedulerRequest{Payload: []byte(opts.payload)}, nil
	case schema.RequestSensactStatus:
		ids, err := parseIDs(opts.ids)
		if err != nil {
			return nil, err
		}
		return envelope.SensactStatusRequest{IDs: ids}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported kind %q", errUsage, opts.kind)
	}
}

func parseIDs(raw string) ([]uint32, error) {
	var out []uint32
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bad id %q", errUsage, part)
		}
		out = append(out, uint32(v))
	}
	return out, nil
}

func printEnvelope(env envelope.ResponseEnvelope) error {
	out, err := json.MarshalIndent(struct {
		MessageID uint64            `json:"message_id"`
		Kind      string            `json:"kind"`
		Response  envelope.Response `json:"response"`
	}{env.MessageID, env.Response.ResponseKind().String(), env.Response}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
