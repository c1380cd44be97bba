package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/lightning-sensor/internal/as3935"
	"github.com/sweeney/lightning-sensor/internal/service"
	"github.com/sweeney/lightning-sensor/internal/status"
)

var _ Source = (*service.Service)(nil)

type fakeSource struct {
	snap      status.Snapshot
	sensor    as3935.Status
	sensorErr error
	events    []as3935.Event
}

func (f *fakeSource) State() status.Snapshot         { return f.snap }
func (f *fakeSource) Status() (as3935.Status, error) { return f.sensor, f.sensorErr }

func (f *fakeSource) Tail(n int) []as3935.Event {
	if n <= 0 || n > len(f.events) {
		return f.events
	}
	return f.events[len(f.events)-n:]
}

func newTestServer(t *testing.T, src *fakeSource) *httptest.Server {
	t.Helper()
	srv := New(":0", src)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func testSnapshot() status.Snapshot {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return status.Snapshot{
		Alert:      true,
		DistanceKm: 12,
		Energy:     90210,
		UpdatedAt:  start.Add(90 * time.Minute),
		Counts: status.Counts{
			Lightning: 3,
			Disturber: 7,
			Forwarded: 4,
			Throttled: 6,
		},
		StartTime:     start,
		Now:           start.Add(2 * time.Hour),
		MQTTConnected: true,
		Config: status.Config{
			Broker:            "tcp://192.168.1.200:1883",
			TopicPrefix:       "home/thunderstorm",
			Mode:              "irq",
			PollInterval:      20 * time.Millisecond,
			ThrottleWindow:    10 * time.Minute,
			KeepaliveInterval: 15 * time.Minute,
			HTTPAddr:          ":8080",
		},
	}
}

func TestStatusJSONEndpoint(t *testing.T) {
	src := &fakeSource{
		snap:   testSnapshot(),
		sensor: as3935.Status{Indoor: true, NoiseFloor: 2, MinStrikes: 1, TuningCapPF: 96},
	}
	ts := newTestServer(t, src)

	resp, err := http.Get(ts.URL + "/status.json")
	if err != nil {
		t.Fatalf("GET /status.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Alert != "ON" {
		t.Errorf("Alert: got %q, want ON", sj.Status.Alert)
	}
	if sj.Status.DistanceKm != 12 {
		t.Errorf("DistanceKm: got %d, want 12", sj.Status.DistanceKm)
	}
	if sj.Status.UptimeSeconds != 7200 {
		t.Errorf("UptimeSeconds: got %d, want 7200", sj.Status.UptimeSeconds)
	}
	if sj.Status.LastEventAt != "2026-01-01T01:30:00Z" {
		t.Errorf("LastEventAt: got %q", sj.Status.LastEventAt)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q", sj.Status.MQTT.Broker)
	}
	if sj.Status.Counts.Lightning != 3 {
		t.Errorf("Counts.Lightning: got %d, want 3", sj.Status.Counts.Lightning)
	}
	if sj.Status.Counts.Throttled != 6 {
		t.Errorf("Counts.Throttled: got %d, want 6", sj.Status.Counts.Throttled)
	}
	if sj.Status.Sensor == nil {
		t.Fatal("expected Sensor in JSON")
	}
	if !sj.Status.Sensor.Indoor {
		t.Error("expected Sensor.Indoor=true")
	}
	if sj.Status.Sensor.TuningCapPF != 96 {
		t.Errorf("Sensor.TuningCapPF: got %d, want 96", sj.Status.Sensor.TuningCapPF)
	}
	if sj.Status.Config.Mode != "irq" {
		t.Errorf("Config.Mode: got %q, want irq", sj.Status.Config.Mode)
	}
	if sj.Status.Config.PollMs != 20 {
		t.Errorf("Config.PollMs: got %d, want 20", sj.Status.Config.PollMs)
	}
	if sj.Status.Config.ThrottleWindowMs != 600000 {
		t.Errorf("Config.ThrottleWindowMs: got %d, want 600000", sj.Status.Config.ThrottleWindowMs)
	}
}

func TestStatusJSONSensorError(t *testing.T) {
	src := &fakeSource{
		snap:      testSnapshot(),
		sensorErr: errors.New("bus fault"),
	}
	ts := newTestServer(t, src)

	resp, err := http.Get(ts.URL + "/status.json")
	if err != nil {
		t.Fatalf("GET /status.json: %v", err)
	}
	defer resp.Body.Close()

	var sj StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Sensor != nil {
		t.Error("expected no Sensor when the read fails")
	}
	if sj.Status.SensorError != "bus fault" {
		t.Errorf("SensorError: got %q, want bus fault", sj.Status.SensorError)
	}
	if sj.Status.Alert != "ON" {
		t.Error("service state should still render on sensor error")
	}
}

func TestEventsEndpoint(t *testing.T) {
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		events: []as3935.Event{
			{Timestamp: base, Kind: as3935.KindNoise},
			{Timestamp: base.Add(time.Minute), Kind: as3935.KindDisturber},
			{Timestamp: base.Add(2 * time.Minute), Kind: as3935.KindLightning, DistanceKm: 8, Energy: 500},
		},
	}
	ts := newTestServer(t, src)

	resp, err := http.Get(ts.URL + "/events.json")
	if err != nil {
		t.Fatalf("GET /events.json: %v", err)
	}
	defer resp.Body.Close()

	var doc EventsJSON
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if doc.Count != 3 {
		t.Errorf("Count: got %d, want 3", doc.Count)
	}
	if doc.Events[0].Type != "noise" {
		t.Errorf("first event type: got %q, want noise", doc.Events[0].Type)
	}
	last := doc.Events[2]
	if last.Type != "lightning" {
		t.Errorf("last event type: got %q, want lightning", last.Type)
	}
	if last.DistanceKm == nil || *last.DistanceKm != 8 {
		t.Errorf("lightning distance: got %v, want 8", last.DistanceKm)
	}
	if doc.Events[0].DistanceKm != nil {
		t.Error("noise event should not carry distance")
	}
}

func TestEventsEndpointLimit(t *testing.T) {
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		events: []as3935.Event{
			{Timestamp: base, Kind: as3935.KindNoise},
			{Timestamp: base.Add(time.Minute), Kind: as3935.KindDisturber},
			{Timestamp: base.Add(2 * time.Minute), Kind: as3935.KindLightning, DistanceKm: 8},
		},
	}
	ts := newTestServer(t, src)

	resp, err := http.Get(ts.URL + "/events.json?n=2")
	if err != nil {
		t.Fatalf("GET /events.json?n=2: %v", err)
	}
	defer resp.Body.Close()

	var doc EventsJSON
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if doc.Count != 2 {
		t.Errorf("Count: got %d, want 2", doc.Count)
	}
	if doc.Events[0].Type != "disturber" {
		t.Errorf("first of last 2: got %q, want disturber", doc.Events[0].Type)
	}
}

func TestEventsEndpointRejectsBadN(t *testing.T) {
	ts := newTestServer(t, &fakeSource{})

	for _, q := range []string{"?n=abc", "?n=-1", "?n=1.5"} {
		resp, err := http.Get(ts.URL + "/events.json" + q)
		if err != nil {
			t.Fatalf("GET /events.json%s: %v", q, err)
		}
		resp.Body.Close()
		if resp.StatusCode != 400 {
			t.Errorf("%s: status got %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &fakeSource{})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeSource{})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type: got %q, want text/plain", ct)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	ts := newTestServer(t, src)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := string(raw)
	if !strings.Contains(body, "Lightning Sensor") {
		t.Error("page should contain the title")
	}
	if !strings.Contains(body, "ON") {
		t.Error("page should show the active alert")
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts := newTestServer(t, &fakeSource{snap: testSnapshot()})

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts := newTestServer(t, &fakeSource{})

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}
