package hv

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/hvcrate-core/internal/crate"
	"github.com/nerrad567/hvcrate-core/internal/hvapi"
	"github.com/nerrad567/hvcrate-core/internal/hvapi/sim"
	"github.com/nerrad567/hvcrate-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/hvcrate-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/hvcrate-core/internal/registry"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	connected     bool
	handlers      map[string]func(topic string, payload []byte)
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(c bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = c
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

// PublishedTo returns the messages sent to topic, oldest first.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// PublishedUnder returns the messages whose topic starts with prefix.
func (m *MockMQTTClient) PublishedUnder(prefix string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if strings.HasPrefix(p.Topic, prefix) {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockSubscription(nil), m.subscriptions...)
}

func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

// SimulateMessage delivers a message to every handler whose subscription
// pattern matches topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	var matched []func(string, []byte)
	for pattern, h := range m.handlers {
		if topicMatches(pattern, topic) {
			matched = append(matched, h)
		}
	}
	m.mu.Unlock()

	for _, h := range matched {
		h(topic, payload)
	}
}

// topicMatches implements MQTT + and # wildcards.
func topicMatches(pattern, topic string) bool {
	pp := strings.Split(pattern, "/")
	tp := strings.Split(topic, "/")
	for i, p := range pp {
		if p == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if p != "+" && p != tp[i] {
			return false
		}
	}
	return len(pp) == len(tp)
}

// mockTelemetry records telemetry writes.
type mockTelemetry struct {
	mu      sync.Mutex
	samples []influxdb.ParameterSample
	polls   []int
}

func (m *mockTelemetry) WriteParameter(s influxdb.ParameterSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, s)
}

func (m *mockTelemetry) WritePollStats(_ string, reads, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls = append(m.polls, reads)
}

// testLogger discards everything.
type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

const testCrate = "crate1"

// newTestRouter discovers the simulator crate.
func newTestRouter(t *testing.T, dev *sim.Device, readOnly bool) *Router {
	t.Helper()

	c, err := crate.Build(dev, crate.Options{
		SystemType: hvapi.SY4527,
		Address:    "10.0.0.5",
		ReadOnly:   readOnly,
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return NewRouter(registry.New(c, registry.NewSequence(1)))
}

// newTestBridge builds a bridge over the default simulator crate.
func newTestBridge(t *testing.T, mutate func(*BridgeOptions)) (*Bridge, *MockMQTTClient, *sim.Device) {
	t.Helper()

	dev := sim.New(nil)
	client := NewMockMQTTClient()
	opts := BridgeOptions{
		CrateID:        testCrate,
		Router:         newTestRouter(t, dev, false),
		MQTTClient:     client,
		PollInterval:   time.Hour,
		HealthInterval: time.Hour,
		Version:        "test",
		Logger:         testLogger{},
	}
	if mutate != nil {
		mutate(&opts)
	}

	b, err := NewBridge(opts)
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	t.Cleanup(b.Stop)
	return b, client, dev
}

func decodeAck(t *testing.T, p mockPublish) AckMessage {
	t.Helper()
	var ack AckMessage
	if err := json.Unmarshal(p.Payload, &ack); err != nil {
		t.Fatalf("ack payload: %v", err)
	}
	return ack
}

func decodeResponse(t *testing.T, p mockPublish) ResponseMessage {
	t.Helper()
	var resp ResponseMessage
	if err := json.Unmarshal(p.Payload, &resp); err != nil {
		t.Fatalf("response payload: %v", err)
	}
	return resp
}

// =============================================================================
// Construction and lifecycle
// =============================================================================

func TestNewBridge_Validation(t *testing.T) {
	router := newTestRouter(t, sim.New(nil), false)
	client := NewMockMQTTClient()

	tests := []struct {
		name string
		opts BridgeOptions
	}{
		{"missing crate ID", BridgeOptions{Router: router, MQTTClient: client}},
		{"wildcard crate ID", BridgeOptions{CrateID: "crate/#", Router: router, MQTTClient: client}},
		{"missing router", BridgeOptions{CrateID: testCrate, MQTTClient: client}},
		{"missing MQTT client", BridgeOptions{CrateID: testCrate, Router: router}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBridge(tt.opts); err == nil {
				t.Error("NewBridge() expected error")
			}
		})
	}
}

func TestNewBridge_Defaults(t *testing.T) {
	b, _, _ := newTestBridge(t, func(o *BridgeOptions) {
		o.PollInterval = 0
		o.HealthInterval = 0
	})

	if b.pollInterval != defaultPollInterval {
		t.Errorf("pollInterval = %v, want %v", b.pollInterval, defaultPollInterval)
	}
	if b.health.cfg.Interval != defaultHealthInterval {
		t.Errorf("health interval = %v, want %v", b.health.cfg.Interval, defaultHealthInterval)
	}
}

func TestStartAndStop(t *testing.T) {
	b, client, _ := newTestBridge(t, nil)

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	subs := client.GetSubscriptions()
	if len(subs) != 2 {
		t.Fatalf("subscriptions = %d, want 2", len(subs))
	}
	wantCmd, wantReq := mqtt.Topics{}.AllCommands(testCrate), mqtt.Topics{}.AllRequests(testCrate)
	if subs[0].Topic != wantCmd || subs[1].Topic != wantReq {
		t.Errorf("subscriptions = %+v", subs)
	}

	catalog := client.PublishedTo(mqtt.Topics{}.Catalog(testCrate))
	if len(catalog) != 1 || !catalog[0].Retained {
		t.Fatalf("catalog publications = %+v", catalog)
	}
	var msg CatalogMessage
	if err := json.Unmarshal(catalog[0].Payload, &msg); err != nil {
		t.Fatalf("catalog payload: %v", err)
	}
	if len(msg.Entries) != b.router.Registry().Len() || msg.Controller.SystemType != "SY4527" {
		t.Errorf("catalog = %d entries, controller %+v", len(msg.Entries), msg.Controller)
	}

	b.Stop()
	b.Stop() // idempotent

	health := client.PublishedTo(mqtt.Topics{}.Health(testCrate))
	if len(health) < 2 {
		t.Fatalf("health publications = %d, want at least 2", len(health))
	}
	var first, last HealthMessage
	if err := json.Unmarshal(health[0].Payload, &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(health[len(health)-1].Payload, &last); err != nil {
		t.Fatal(err)
	}
	if first.Status != HealthStarting {
		t.Errorf("first health = %s, want starting", first.Status)
	}
	if last.Status != HealthStopping {
		t.Errorf("last health = %s, want stopping", last.Status)
	}
}

// =============================================================================
// Polling
// =============================================================================

func TestPollOnce_PublishesChangesOnly(t *testing.T) {
	b, client, _ := newTestBridge(t, nil)
	total := b.router.Registry().Len()

	res := b.PollOnce()
	if res.Reads != total || res.Failures != 0 || res.Published != total {
		t.Fatalf("first poll = %+v, want %d reads and publications", res, total)
	}

	states := client.PublishedUnder("hvcrate/state/" + testCrate + "/")
	if len(states) != total {
		t.Fatalf("state messages = %d, want %d", len(states), total)
	}
	for _, p := range states {
		if !p.Retained || p.QoS != 1 {
			t.Fatalf("state %s retained=%v qos=%d", p.Topic, p.Retained, p.QoS)
		}
	}

	if res := b.PollOnce(); res.Published != 0 {
		t.Errorf("second poll published %d, want 0", res.Published)
	}

	if _, err := b.router.Write("S00:C00:V0SET", "1200", FullMask); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	client.ClearPublished()

	if res := b.PollOnce(); res.Published != 1 {
		t.Errorf("poll after write published %d, want 1", res.Published)
	}
	got := client.PublishedTo(mqtt.Topics{}.State(testCrate, "S00_C00_V0SET"))
	if len(got) != 1 {
		t.Fatalf("V0SET state messages = %d, want 1", len(got))
	}
	var state StateMessage
	if err := json.Unmarshal(got[0].Payload, &state); err != nil {
		t.Fatal(err)
	}
	if state.Record != "S00:C00:V0SET" || state.Value != 1200.0 || state.Formatted != "1200 V" {
		t.Errorf("state = %+v", state)
	}
}

func TestPollOnce_PublishUnchanged(t *testing.T) {
	b, _, _ := newTestBridge(t, func(o *BridgeOptions) { o.PublishUnchanged = true })
	total := b.router.Registry().Len()

	b.PollOnce()
	if res := b.PollOnce(); res.Published != total {
		t.Errorf("second poll published %d, want %d", res.Published, total)
	}
}

func TestPollOnce_Prefix(t *testing.T) {
	b, client, _ := newTestBridge(t, func(o *BridgeOptions) { o.Prefix = "HV1" })
	b.PollOnce()

	got := client.PublishedTo(mqtt.Topics{}.State(testCrate, "S01_TEMP"))
	if len(got) != 1 {
		t.Fatalf("TEMP state messages = %d, want 1", len(got))
	}
	var state StateMessage
	if err := json.Unmarshal(got[0].Payload, &state); err != nil {
		t.Fatal(err)
	}
	if state.Name != "HV1:S01:TEMP" {
		t.Errorf("Name = %q, want HV1:S01:TEMP", state.Name)
	}
}

func TestPollOnce_OnState(t *testing.T) {
	var got []StateMessage
	b, _, _ := newTestBridge(t, func(o *BridgeOptions) {
		o.OnState = func(msg StateMessage) { got = append(got, msg) }
	})

	res := b.PollOnce()
	if len(got) != res.Published {
		t.Fatalf("OnState called %d times, published %d", len(got), res.Published)
	}
	for _, msg := range got {
		if msg.Crate != testCrate || msg.Record == "" {
			t.Errorf("OnState message = %+v", msg)
		}
	}

	got = nil
	b.PollOnce()
	if len(got) != 0 {
		t.Errorf("OnState called %d times for unchanged values", len(got))
	}
}

func TestPollOnce_ClearStateCache(t *testing.T) {
	b, _, _ := newTestBridge(t, nil)

	b.PollOnce()
	b.ClearStateCache()
	if res := b.PollOnce(); res.Published != b.router.Registry().Len() {
		t.Errorf("poll after ClearStateCache published %d, want all", res.Published)
	}
}

func TestPollOnce_ReadFailureDoesNotStopCycle(t *testing.T) {
	b, client, dev := newTestBridge(t, nil)
	total := b.router.Registry().Len()

	dev.FailOn(sim.GetChParamKey(0, 1, "VMon"), hvapi.ResultReadErr)

	res := b.PollOnce()
	if res.Failures != 1 || res.Reads != total-1 {
		t.Errorf("poll = %+v, want 1 failure and %d reads", res, total-1)
	}
	if got := client.PublishedTo(mqtt.Topics{}.State(testCrate, "S00_C01_VMON")); len(got) != 0 {
		t.Errorf("failed read was published")
	}

	m := b.GetMetrics()
	if m.Status != HealthDegraded {
		t.Errorf("status = %s, want degraded", m.Status)
	}
	if m.Statistics.LastPollFailures != 1 || m.Statistics.ReadErrors != 1 || m.Statistics.Polls != 1 {
		t.Errorf("statistics = %+v", m.Statistics)
	}
}

func TestPollOnce_Telemetry(t *testing.T) {
	tel := &mockTelemetry{}
	b, _, _ := newTestBridge(t, func(o *BridgeOptions) { o.Telemetry = tel })

	res := b.PollOnce()

	tel.mu.Lock()
	defer tel.mu.Unlock()

	if len(tel.polls) != 1 || tel.polls[0] != res.Reads {
		t.Errorf("poll stats = %v, want [%d]", tel.polls, res.Reads)
	}

	byRecord := make(map[string]influxdb.ParameterSample)
	for _, s := range tel.samples {
		byRecord[s.Record] = s
	}

	vmon, ok := byRecord["S00:C01:VMON"]
	if !ok {
		t.Fatal("no sample for S00:C01:VMON")
	}
	if vmon.Crate != testCrate || vmon.Units != "V" || vmon.Slot != 0 || vmon.Channel != 1 || vmon.Category != "channel.numeric" {
		t.Errorf("VMON sample = %+v", vmon)
	}

	temp, ok := byRecord["S01:TEMP"]
	if !ok || temp.Value != 31.5 || temp.Channel != -1 {
		t.Errorf("TEMP sample = %+v, present %v", temp, ok)
	}

	for _, rec := range []string{"S00:C00:PW", "S00:C00:STATUS", "C:MODELNAME"} {
		if _, ok := byRecord[rec]; ok {
			t.Errorf("unexpected sample for %s", rec)
		}
	}
}

// =============================================================================
// Commands
// =============================================================================

func TestHandleCommand(t *testing.T) {
	b, client, dev := newTestBridge(t, nil)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	dev.FailOn(sim.SetChParamKey(1, 0, "V1Set"), hvapi.ResultWriteErr)
	v0set, _ := b.router.Registry().TokenByRecord("S00:C00:V0SET")
	v0setRef := strconv.FormatUint(uint64(v0set), 10)

	tests := []struct {
		name       string
		topicRef   string
		payload    string
		ackRef     string
		wantStatus AckStatus
		wantCode   string
		wantRecord string
		wantValue  any
	}{
		{
			name:       "numeric by record",
			topicRef:   "S00:C01:V0SET",
			payload:    `{"id":"c1","value":1500}`,
			ackRef:     "S00:C01:V0SET",
			wantStatus: AckAccepted,
			wantRecord: "S00:C01:V0SET",
			wantValue:  1500.0,
		},
		{
			name:       "numeric by token",
			topicRef:   v0setRef,
			payload:    `{"id":"c2","value":"250.5"}`,
			ackRef:     v0setRef,
			wantStatus: AckAccepted,
			wantRecord: "S00:C00:V0SET",
			wantValue:  250.5,
		},
		{
			name:       "record is case-insensitive",
			topicRef:   "s01:c01:rup",
			payload:    `{"id":"c3","value":20}`,
			ackRef:     "s01:c01:rup",
			wantStatus: AckAccepted,
			wantRecord: "S01:C01:RUP",
			wantValue:  20.0,
		},
		{
			name:       "onoff by label",
			topicRef:   "S01:C01:PW",
			payload:    `{"id":"c4","value":"On"}`,
			ackRef:     "S01:C01:PW",
			wantStatus: AckAccepted,
			wantRecord: "S01:C01:PW",
			wantValue:  1.0,
		},
		{
			name:       "onoff masked out",
			topicRef:   "S01:C00:PW",
			payload:    `{"id":"c5","value":true,"mask":0}`,
			ackRef:     "S01:C00:PW",
			wantStatus: AckAccepted,
			wantRecord: "S01:C00:PW",
			wantValue:  0.0,
		},
		{
			name:       "ref in payload",
			topicRef:   "",
			payload:    `{"id":"c6","ref":"S01:C01:I0SET","value":100}`,
			ackRef:     "S01:C01:I0SET",
			wantStatus: AckAccepted,
			wantRecord: "S01:C01:I0SET",
			wantValue:  100.0,
		},
		{
			name:       "read-only parameter",
			topicRef:   "S00:C00:VMON",
			payload:    `{"id":"c7","value":1}`,
			ackRef:     "S00:C00:VMON",
			wantStatus: AckFailed,
			wantCode:   ErrCodeNotWritable,
			wantRecord: "S00:C00:VMON",
		},
		{
			name:       "unknown record",
			topicRef:   "S09:C00:V0SET",
			payload:    `{"id":"c8","value":1}`,
			ackRef:     "S09:C00:V0SET",
			wantStatus: AckFailed,
			wantCode:   ErrCodeUnknownParameter,
		},
		{
			name:       "unknown token",
			topicRef:   "9999",
			payload:    `{"id":"c9","value":1}`,
			ackRef:     "9999",
			wantStatus: AckFailed,
			wantCode:   ErrCodeUnknownParameter,
		},
		{
			name:       "unparsable value",
			topicRef:   "S00:C00:V1SET",
			payload:    `{"id":"c10","value":"abc"}`,
			ackRef:     "S00:C00:V1SET",
			wantStatus: AckFailed,
			wantCode:   ErrCodeInvalidValue,
			wantRecord: "S00:C00:V1SET",
		},
		{
			name:       "missing value",
			topicRef:   "S00:C00:V1SET",
			payload:    `{"id":"c11"}`,
			ackRef:     "S00:C00:V1SET",
			wantStatus: AckFailed,
			wantCode:   ErrCodeInvalidValue,
		},
		{
			name:       "malformed JSON",
			topicRef:   "S00:C00:V1SET",
			payload:    `{`,
			ackRef:     "S00:C00:V1SET",
			wantStatus: AckFailed,
			wantCode:   ErrCodeInvalidCommand,
		},
		{
			name:       "device error",
			topicRef:   "S01:C00:V1SET",
			payload:    `{"id":"c13","value":5}`,
			ackRef:     "S01:C00:V1SET",
			wantStatus: AckFailed,
			wantCode:   ErrCodeDeviceError,
			wantRecord: "S01:C00:V1SET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client.ClearPublished()

			topic := "hvcrate/command/" + testCrate
			if tt.topicRef != "" {
				topic = mqtt.Topics{}.Command(testCrate, tt.topicRef)
			}
			client.SimulateMessage(topic, []byte(tt.payload))

			acks := client.PublishedTo(mqtt.Topics{}.Ack(testCrate, tt.ackRef))
			if len(acks) != 1 {
				t.Fatalf("acks = %d, want 1 (published %d)", len(acks), len(client.GetPublished()))
			}
			if acks[0].Retained {
				t.Error("ack is retained")
			}

			ack := decodeAck(t, acks[0])
			if ack.Status != tt.wantStatus || ack.Crate != testCrate || ack.Record != tt.wantRecord {
				t.Errorf("ack = %+v", ack)
			}
			if tt.wantCode != "" {
				if ack.Error == nil || ack.Error.Code != tt.wantCode {
					t.Errorf("ack error = %+v, want code %s", ack.Error, tt.wantCode)
				}
				return
			}
			if ack.Error != nil {
				t.Errorf("ack error = %+v", ack.Error)
			}
			if ack.Value != tt.wantValue {
				t.Errorf("ack value = %v (%T), want %v", ack.Value, ack.Value, tt.wantValue)
			}
		})
	}
}

func TestHandleCommand_ReadBack(t *testing.T) {
	b, client, _ := newTestBridge(t, nil)
	b.PollOnce()
	client.ClearPublished()

	b.handleMQTTMessage(mqtt.Topics{}.Command(testCrate, "S00:C01:SVMAX"), []byte(`{"id":"rb","value":2000}`))

	states := client.PublishedTo(mqtt.Topics{}.State(testCrate, "S00_C01_SVMAX"))
	if len(states) != 1 {
		t.Fatalf("state messages = %d, want 1", len(states))
	}

	r, err := b.router.Read("S00:C01:SVMAX", FullMask)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if r.Value.Float != 2000 {
		t.Errorf("device value = %v, want 2000", r.Value.Float)
	}

	// Already published by the command; the next poll is quiet.
	if res := b.PollOnce(); res.Published != 0 {
		t.Errorf("poll after command published %d, want 0", res.Published)
	}
	if m := b.GetMetrics(); m.Statistics.Commands != 1 || m.Statistics.CommandErrors != 0 {
		t.Errorf("statistics = %+v", m.Statistics)
	}
}

func TestHandleCommand_OnCommand(t *testing.T) {
	type outcome struct {
		cmd       CommandMessage
		formatted string
		err       error
	}
	var got []outcome
	b, _, _ := newTestBridge(t, func(o *BridgeOptions) {
		o.OnCommand = func(cmd CommandMessage, r Reading, err error) {
			out := outcome{cmd: cmd, err: err}
			if err == nil {
				out.formatted = r.Formatted()
			}
			got = append(got, out)
		}
	})

	b.handleMQTTMessage(mqtt.Topics{}.Command(testCrate, "S00:C01:SVMAX"), []byte(`{"id":"c1","value":2000}`))
	b.handleMQTTMessage(mqtt.Topics{}.Command(testCrate, "S00:C00:VMON"), []byte(`{"id":"c2","value":1}`))
	b.handleMQTTMessage(mqtt.Topics{}.Command(testCrate, "S00:C00:V0SET"), []byte(`not json`))

	if len(got) != 2 {
		t.Fatalf("OnCommand calls = %d, want 2 (undecodable payload is not reported)", len(got))
	}
	if got[0].cmd.ID != "c1" || got[0].cmd.Ref != "S00:C01:SVMAX" || got[0].err != nil || got[0].formatted != "2000 V" {
		t.Errorf("first outcome = %+v", got[0])
	}
	if got[1].cmd.Ref != "S00:C00:VMON" || !errors.Is(got[1].err, ErrNotWritable) {
		t.Errorf("second outcome = %+v", got[1])
	}
}

func TestWrite_PublishesReadBack(t *testing.T) {
	var states []StateMessage
	b, client, _ := newTestBridge(t, func(o *BridgeOptions) {
		o.OnState = func(msg StateMessage) { states = append(states, msg) }
	})
	b.PollOnce()
	client.ClearPublished()
	states = nil

	r, err := b.Write("S00:C01:SVMAX", "2000", FullMask)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if r.Formatted() != "2000 V" {
		t.Errorf("Write() formatted = %q", r.Formatted())
	}
	if got := client.PublishedTo(mqtt.Topics{}.State(testCrate, "S00_C01_SVMAX")); len(got) != 1 {
		t.Errorf("state messages = %d, want 1", len(got))
	}
	if len(states) != 1 || states[0].Record != "S00:C01:SVMAX" {
		t.Errorf("OnState messages = %+v", states)
	}

	if _, err := b.Write("S00:C00:VMON", "1", FullMask); !errors.Is(err, ErrNotWritable) {
		t.Errorf("Write(VMON) error = %v, want ErrNotWritable", err)
	}
	stats := b.GetMetrics().Statistics
	if stats.Commands != 2 || stats.CommandErrors != 1 {
		t.Errorf("commands = %d, command errors = %d", stats.Commands, stats.CommandErrors)
	}
}

func TestHandleMessage_OtherCrateIgnored(t *testing.T) {
	b, client, _ := newTestBridge(t, nil)

	b.handleMQTTMessage(mqtt.Topics{}.Command("crate2", "S00:C00:V0SET"), []byte(`{"value":1}`))
	b.handleMQTTMessage("hvcrate/command", []byte(`{}`))

	if n := len(client.GetPublished()); n != 0 {
		t.Errorf("published %d messages, want 0", n)
	}
}

// =============================================================================
// Requests
// =============================================================================

func TestHandleRequest(t *testing.T) {
	b, client, _ := newTestBridge(t, nil)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	tests := []struct {
		name     string
		id       string
		payload  string
		wantOK   bool
		wantCode string
		check    func(t *testing.T, data map[string]any)
	}{
		{
			name:    "read",
			id:      "r1",
			payload: `{"action":"read","ref":"S01:TEMP"}`,
			wantOK:  true,
			check: func(t *testing.T, data map[string]any) {
				if data["record"] != "S01:TEMP" || data["value"] != 31.5 || data["kind"] != "numeric" {
					t.Errorf("data = %v", data)
				}
			},
		},
		{
			name:    "read status with mask",
			id:      "r2",
			payload: `{"action":"read","ref":"S00:C00:STATUS","mask":0}`,
			wantOK:  true,
			check: func(t *testing.T, data map[string]any) {
				if data["value"] != 0.0 {
					t.Errorf("value = %v, want 0", data["value"])
				}
			},
		},
		{
			name:    "catalog",
			id:      "r3",
			payload: `{"action":"catalog"}`,
			wantOK:  true,
			check: func(t *testing.T, data map[string]any) {
				if data["count"] != float64(b.router.Registry().Len()) {
					t.Errorf("count = %v", data["count"])
				}
				entries, _ := data["entries"].([]any)
				if len(entries) != b.router.Registry().Len() {
					t.Errorf("entries = %d", len(entries))
				}
			},
		},
		{
			name:    "crate info",
			id:      "r4",
			payload: `{"action":"crate_info"}`,
			wantOK:  true,
			check: func(t *testing.T, data map[string]any) {
				boards, _ := data["boards"].([]any)
				if data["system_type"] != "SY4527" || data["address"] != "10.0.0.5" || len(boards) != 2 {
					t.Errorf("data = %v", data)
				}
			},
		},
		{
			name:     "read unknown",
			id:       "r5",
			payload:  `{"action":"read","ref":"S07:C00:VMON"}`,
			wantCode: ErrCodeUnknownParameter,
		},
		{
			name:     "read without ref",
			id:       "r6",
			payload:  `{"action":"read"}`,
			wantCode: ErrCodeUnknownParameter,
		},
		{
			name:     "unknown action",
			id:       "r7",
			payload:  `{"action":"reboot"}`,
			wantCode: ErrCodeInvalidCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client.SimulateMessage(mqtt.Topics{}.Request(testCrate, tt.id), []byte(tt.payload))

			got := client.PublishedTo(mqtt.Topics{}.Response(testCrate, tt.id))
			if len(got) != 1 {
				t.Fatalf("responses = %d, want 1", len(got))
			}
			resp := decodeResponse(t, got[0])
			if resp.RequestID != tt.id || resp.Success != tt.wantOK {
				t.Fatalf("response = %+v", resp)
			}
			if tt.wantCode != "" {
				if resp.Error == nil || resp.Error.Code != tt.wantCode {
					t.Errorf("error = %+v, want %s", resp.Error, tt.wantCode)
				}
				return
			}
			tt.check(t, resp.Data)
		})
	}
}

func TestHandleRequest_IDFromPayload(t *testing.T) {
	b, client, _ := newTestBridge(t, nil)

	b.handleMQTTMessage(mqtt.Topics{}.Request(testCrate, "topic-id"), []byte(`{"request_id":"payload-id","action":"catalog"}`))

	if got := client.PublishedTo(mqtt.Topics{}.Response(testCrate, "payload-id")); len(got) != 1 {
		t.Errorf("responses on payload ID = %d, want 1", len(got))
	}
}

// =============================================================================
// Router
// =============================================================================

func TestRouter_ReadOnlyCrateRejectsWrites(t *testing.T) {
	router := newTestRouter(t, sim.New(nil), true)

	_, err := router.Write("S00:C00:V0SET", "100", FullMask)
	if errorCode(err) != ErrCodeNotWritable {
		t.Errorf("Write() error = %v, want not writable", err)
	}
}

func TestRouter_Resolve(t *testing.T) {
	router := newTestRouter(t, sim.New(nil), false)

	if _, err := router.Resolve(""); errorCode(err) != ErrCodeUnknownParameter {
		t.Errorf("Resolve(\"\") error = %v", err)
	}

	e, err := router.Resolve("c:hvpwsm")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if e.ID.Record != "C:HVPWSM" || e.Slot != -1 {
		t.Errorf("entry = %+v", e)
	}

	tok := strconv.FormatUint(uint64(e.Token), 10)
	byToken, err := router.Resolve(tok)
	if err != nil || byToken.Token != e.Token {
		t.Errorf("Resolve(%s) = %+v, %v", tok, byToken, err)
	}
}

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		pattern, topic string
		want           bool
	}{
		{"hvcrate/command/crate1/#", "hvcrate/command/crate1/S00:C00:V0SET", true},
		{"hvcrate/command/crate1/#", "hvcrate/command/crate1", true},
		{"hvcrate/request/crate1/+", "hvcrate/request/crate1/r1", true},
		{"hvcrate/request/crate1/+", "hvcrate/request/crate1", false},
		{"hvcrate/request/crate1/+", "hvcrate/request/crate2/r1", false},
	}
	for _, tt := range tests {
		if got := topicMatches(tt.pattern, tt.topic); got != tt.want {
			t.Errorf("topicMatches(%q, %q) = %v, want %v", tt.pattern, tt.topic, got, tt.want)
		}
	}
}
