package status

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/sweeney/gcn/internal/logic"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewTracker(t *testing.T) {
	cfg := Config{Host: "garage", Pin: 4, PollMs: 100, DebounceMs: 100, HTTPAddr: ":8080"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if !snap.LastNotification.Equal(start) {
		t.Errorf("LastNotification: got %v, want start time", snap.LastNotification)
	}
	if snap.Config.Pin != 4 {
		t.Errorf("Config.Pin: got %d, want 4", snap.Config.Pin)
	}
	if snap.Connected {
		t.Error("expected Connected=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if snap.LastDispatch != nil {
		t.Error("expected no dispatch initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(start, Config{})
	last := start.Add(time.Minute)

	tr.Update(true, false, logic.PhaseCandidate, logic.Counts{Changes: 3, ReadErrors: 1}, last)

	snap := tr.Snapshot()
	if !snap.Value {
		t.Error("expected Value=true")
	}
	if snap.Raw {
		t.Error("expected Raw=false")
	}
	if snap.Phase != logic.PhaseCandidate {
		t.Errorf("Phase: got %s, want CANDIDATE", snap.Phase)
	}
	if snap.Counts.Changes != 3 {
		t.Errorf("Counts.Changes: got %d, want 3", snap.Counts.Changes)
	}
	if !snap.LastNotification.Equal(last) {
		t.Errorf("LastNotification: got %v, want %v", snap.LastNotification, last)
	}
}

func TestSetConnected(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.SetConnected(true)
	if !tr.Snapshot().Connected {
		t.Error("expected Connected=true")
	}
	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	tr.SetConnected(false)
	if tr.Snapshot().Connected {
		t.Error("expected Connected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(start, Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Interface: "wlan0", Address: "192.168.1.42"})

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.Address != "192.168.1.42" {
		t.Errorf("Network.Address: got %q, want %q", snap.Network.Address, "192.168.1.42")
	}

	tr.SetNetwork(nil)
	if tr.Snapshot().Network != nil {
		t.Error("expected Network cleared")
	}
}

func TestRecordDispatch(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.RecordDispatch(Dispatch{Reason: "CHANGE", Delivered: true, StatusCode: 200, ClockSynced: true})
	tr.RecordDispatch(Dispatch{Reason: "HEARTBEAT", Error: "connection refused"})

	snap := tr.Snapshot()
	if snap.Dispatches != 2 {
		t.Errorf("Dispatches: got %d, want 2", snap.Dispatches)
	}
	if snap.Failures != 1 {
		t.Errorf("Failures: got %d, want 1", snap.Failures)
	}
	if snap.ClockSyncs != 1 {
		t.Errorf("ClockSyncs: got %d, want 1", snap.ClockSyncs)
	}
	if snap.LastDispatch == nil || snap.LastDispatch.Reason != "HEARTBEAT" {
		t.Errorf("LastDispatch: got %+v, want the heartbeat", snap.LastDispatch)
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(start, Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.Update(true, true, logic.PhaseStable, logic.Counts{Changes: 1}, start)
	tr.SetNetwork(&NetworkInfo{Address: "10.0.0.1"})
	tr.RecordDispatch(Dispatch{Reason: "CHANGE"})

	snap1 := tr.Snapshot()
	snap1.Network.Address = "mutated"
	snap1.LastDispatch.Reason = "mutated"

	tr.Update(false, false, logic.PhaseStable, logic.Counts{Changes: 2}, start)

	if !snap1.Value {
		t.Error("snapshot should be a copy; Value was modified")
	}
	snap2 := tr.Snapshot()
	if snap2.Network.Address != "10.0.0.1" {
		t.Error("mutating a snapshot must not change the tracker's network info")
	}
	if snap2.LastDispatch.Reason != "CHANGE" {
		t.Error("mutating a snapshot must not change the tracker's last dispatch")
	}
}

func fullSnapshot() Snapshot {
	return Snapshot{
		Value:            true,
		Raw:              true,
		Phase:            logic.PhaseStable,
		Counts:           logic.Counts{Changes: 5, Heartbeats: 2, Discarded: 7},
		LastNotification: start.Add(10 * time.Minute),
		Connected:        true,
		Network:          &NetworkInfo{Interface: "wlan0", Address: "192.168.1.42"},
		LastDispatch: &Dispatch{
			Time:        start.Add(10 * time.Minute),
			Reason:      "CHANGE",
			Value:       true,
			Delivered:   true,
			StatusCode:  200,
			RemoteTime:  time.Unix(1767226200, 0),
			HasRemote:   true,
			ClockSynced: true,
		},
		Dispatches:    7,
		ClockSyncs:    1,
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config: Config{
			Host:        "garage",
			NotifyURL:   "http://192.168.1.10:8080/gcn",
			Pin:         4,
			Chip:        "gpiochip0",
			PollMs:      100,
			DebounceMs:  100,
			HeartbeatMs: 60000,
			Interface:   "wlan0",
			Broker:      "tcp://localhost:1883",
			HTTPAddr:    ":8080",
		},
	}
}

func TestFormatJSON(t *testing.T) {
	data := FormatJSON(fullSnapshot())

	var parsed StatusJSON
	if err := sonic.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status

	if s.Host != "garage" {
		t.Errorf("Host: got %q, want garage", s.Host)
	}
	if s.Pin.GPIO != 4 || s.Pin.Value != 1 || s.Pin.Phase != "STABLE" {
		t.Errorf("Pin: got %+v", s.Pin)
	}
	if !s.Network.Connected || s.Network.Address != "192.168.1.42" {
		t.Errorf("Network: got %+v", s.Network)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if s.Counts.Changes != 5 || s.Counts.ClockSyncs != 1 || s.Counts.Dispatches != 7 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if s.LastDispatch == nil {
		t.Fatal("expected last_dispatch")
	}
	if s.LastDispatch.RemoteTime != 1767226200 {
		t.Errorf("LastDispatch.RemoteTime: got %d", s.LastDispatch.RemoteTime)
	}
	// Event and Reason should be omitted
	if s.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", s.Event)
	}
	if s.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", s.Reason)
	}
}

func TestFormatJSONNoDispatch(t *testing.T) {
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(time.Second),
	}

	var raw map[string]interface{}
	if err := sonic.Unmarshal(FormatJSON(snap), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"].(map[string]interface{})
	if _, exists := status["last_dispatch"]; exists {
		t.Error("last_dispatch should be omitted before the first notification")
	}
	pin := status["pin"].(map[string]interface{})
	if pin["value"] != float64(0) {
		t.Errorf("pin.value: got %v, want 0", pin["value"])
	}
}

func TestFormatJSONDispatchWithoutRemoteTime(t *testing.T) {
	snap := fullSnapshot()
	snap.LastDispatch.HasRemote = false
	snap.LastDispatch.Error = errors.New("timeout").Error()

	var parsed StatusJSON
	if err := sonic.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.LastDispatch.RemoteTime != 0 {
		t.Errorf("RemoteTime: got %d, want omitted", parsed.Status.LastDispatch.RemoteTime)
	}
	if parsed.Status.LastDispatch.Error != "timeout" {
		t.Errorf("Error: got %q, want timeout", parsed.Status.LastDispatch.Error)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	data := FormatStatusEvent(fullSnapshot(), "HEARTBEAT", "")

	var parsed StatusJSON
	if err := sonic.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("Reason: got %q, want empty", parsed.Status.Reason)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	data := FormatStatusEvent(fullSnapshot(), "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := sonic.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Second)}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	if err := sonic.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(i%2 == 0, i%3 == 0, logic.PhaseStable, logic.Counts{Changes: i}, time.Now())
			tr.SetConnected(i%2 == 0)
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{Address: "1.2.3.4"})
			tr.RecordDispatch(Dispatch{Delivered: i%2 == 0})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
