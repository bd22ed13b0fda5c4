package hv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/hvcrate-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/hvcrate-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/hvcrate-core/internal/param"
	"github.com/nerrad567/hvcrate-core/internal/registry"
)

// Bridge operation constants.
const (
	// topicParts is the number of segments before the topic suffix:
	// hvcrate/{type}/{crate}.
	topicParts = 3

	// defaultPollInterval is used when BridgeOptions.PollInterval is zero.
	defaultPollInterval = 5 * time.Second
)

// Bridge publishes the parameters of one crate on MQTT and executes
// commands and requests received there.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	crateID          string
	version          string
	router           *Router
	client           MQTTClient
	telemetry        TelemetryWriter
	health           *HealthReporter
	pollInterval     time.Duration
	publishUnchanged bool
	prefix           string
	onState          func(StateMessage)
	onCommand        func(CommandMessage, Reading, error)

	// Last published native value per token, for change detection.
	stateCache   map[registry.Token]any
	stateCacheMu sync.Mutex

	// Serialises poll cycles with each other.
	pollMu sync.Mutex

	polls            atomic.Uint64
	reads            atomic.Uint64
	readErrors       atomic.Uint64
	published        atomic.Uint64
	commands         atomic.Uint64
	commandErrors    atomic.Uint64
	lastPollFailures atomic.Int64

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx

	logger Logger
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// TelemetryWriter receives polled values for time-series storage.
// It is satisfied by *influxdb.Client and is optional.
type TelemetryWriter interface {
	WriteParameter(s influxdb.ParameterSample)
	WritePollStats(crate string, reads, failures int, elapsed time.Duration)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// CrateID names the crate in every topic.
	CrateID string

	// Router gives serialised access to the crate's registry.
	Router *Router

	// MQTTClient is the broker connection.
	MQTTClient MQTTClient

	// Telemetry is optional. When nil, values are only published on MQTT.
	Telemetry TelemetryWriter

	// PollInterval defaults to 5 seconds.
	PollInterval time.Duration

	// HealthInterval defaults to 30 seconds.
	HealthInterval time.Duration

	// PublishUnchanged publishes state on every poll, not only on change.
	PublishUnchanged bool

	// Prefix is prepended to record names in state messages.
	Prefix string

	// Version is reported in health messages.
	Version string

	// OnState is called after each state message is published. It must not
	// block; the API hub uses it to fan out changes to WebSocket clients.
	OnState func(StateMessage)

	// OnCommand is called once per decoded MQTT command with the outcome
	// of the write. The command's Ref is always set. Used for auditing.
	OnCommand func(cmd CommandMessage, r Reading, err error)

	// Logger is optional structured logger.
	Logger Logger
}

// NewBridge creates a new bridge.
//
// Parameters:
//   - opts: Bridge configuration options
//
// Returns:
//   - *Bridge: Ready to start (call Start to begin operation)
//   - error: If a required option is missing
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.CrateID == "" {
		return nil, fmt.Errorf("crate ID is required")
	}
	if strings.ContainsAny(opts.CrateID, "/+#") {
		return nil, fmt.Errorf("crate ID %q contains MQTT topic characters", opts.CrateID)
	}
	if opts.Router == nil {
		return nil, fmt.Errorf("router is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		crateID:          opts.CrateID,
		version:          opts.Version,
		router:           opts.Router,
		client:           opts.MQTTClient,
		telemetry:        opts.Telemetry,
		pollInterval:     pollInterval,
		publishUnchanged: opts.PublishUnchanged,
		prefix:           opts.Prefix,
		onState:          opts.OnState,
		onCommand:        opts.OnCommand,
		stateCache:       make(map[registry.Token]any),
		done:             make(chan struct{}),
		ctx:              ctx,
		ctxCancel:        ctxCancel,
		logger:           opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		CrateID:    opts.CrateID,
		Version:    opts.Version,
		Interval:   opts.HealthInterval,
		Publisher:  opts.MQTTClient,
		Controller: b.controllerStatus(),
		Parameters: opts.Router.Registry().Len(),
		Stats:      b.statistics,
		OnError:    func(err error) { b.logError("failed to publish health", err) },
	})

	return b, nil
}

// Start publishes the catalog, subscribes to commands and requests, and
// starts polling and health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	if err := b.PublishCatalog(); err != nil {
		b.logError("failed to publish catalog", err)
	}

	commandTopic := mqtt.Topics{}.AllCommands(b.crateID)
	if err := b.client.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	requestTopic := mqtt.Topics{}.AllRequests(b.crateID)
	if err := b.client.Subscribe(requestTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", requestTopic)

	b.health.Start(ctx)

	b.wg.Add(1)
	go b.pollLoop(ctx)

	b.logInfo("bridge started",
		"crate", b.crateID,
		"parameters", b.router.Registry().Len(),
		"poll_interval", b.pollInterval.String())

	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()

		// The poll loop may still publish health; wait for it first.
		b.wg.Wait()

		// Publishes "stopping" status
		b.health.Stop()

		b.logInfo("bridge stopped", "crate", b.crateID)
	})
}

// pollLoop polls immediately, reports health, then polls on every tick.
func (b *Bridge) pollLoop(ctx context.Context) {
	defer b.wg.Done()

	b.PollOnce()
	if b.ctx.Err() != nil {
		return
	}
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish health", err)
	}

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			b.PollOnce()
		}
	}
}

// PollResult summarises one poll cycle.
type PollResult struct {
	Reads     int
	Failures  int
	Published int
	Elapsed   time.Duration
}

// PollOnce reads every readable parameter once, in registration order.
//
// A failed read is counted and logged at debug level; it never stops the
// cycle. The cycle is abandoned early if the bridge is stopping.
func (b *Bridge) PollOnce() PollResult {
	b.pollMu.Lock()
	defer b.pollMu.Unlock()

	start := time.Now()
	var res PollResult

	for _, e := range b.router.entries {
		if b.ctx.Err() != nil {
			break
		}
		if !e.Param.Readable() {
			continue
		}

		r, err := b.router.ReadEntry(e, FullMask)
		if err != nil {
			res.Failures++
			b.logDebug("poll read failed", "record", e.ID.Record, "error", err)
			continue
		}
		res.Reads++

		if b.publishState(r) {
			res.Published++
		}
		b.writeTelemetry(r)
	}
	res.Elapsed = time.Since(start)

	b.polls.Add(1)
	b.reads.Add(uint64(res.Reads))
	b.readErrors.Add(uint64(res.Failures))
	b.lastPollFailures.Store(int64(res.Failures))

	if b.telemetry != nil {
		b.telemetry.WritePollStats(b.crateID, res.Reads, res.Failures, res.Elapsed)
	}
	if res.Failures > 0 {
		b.logInfo("poll completed with failures",
			"reads", res.Reads,
			"failures", res.Failures)
	}
	return res
}

// publishState publishes r when it changed since the last publication, or
// always with publishUnchanged. It reports whether a message was sent.
func (b *Bridge) publishState(r Reading) bool {
	value := r.Native()

	b.stateCacheMu.Lock()
	prev, seen := b.stateCache[r.Entry.Token]
	if seen && prev == value && !b.publishUnchanged {
		b.stateCacheMu.Unlock()
		return false
	}
	b.stateCache[r.Entry.Token] = value
	b.stateCacheMu.Unlock()

	msg := NewStateMessage(b.crateID, r)
	if b.prefix != "" {
		msg.Name = r.Entry.ID.WithPrefix(b.prefix)
	}
	payload, err := marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return false
	}

	topic := mqtt.Topics{}.State(b.crateID, r.Entry.ID.Short)
	if err := b.client.Publish(topic, payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
		// Forget the value so the next poll retries.
		b.stateCacheMu.Lock()
		delete(b.stateCache, r.Entry.Token)
		b.stateCacheMu.Unlock()
		return false
	}
	b.published.Add(1)
	if b.onState != nil {
		b.onState(msg)
	}
	return true
}

// writeTelemetry forwards Numeric and Integer values to the time-series store.
func (b *Bridge) writeTelemetry(r Reading) {
	if b.telemetry == nil {
		return
	}

	var value float64
	switch r.Entry.Kind {
	case param.KindNumeric:
		value = r.Value.Float
	case param.KindInteger:
		value = float64(r.Value.Int)
	default:
		return
	}

	s := influxdb.ParameterSample{
		Crate:    b.crateID,
		Token:    uint32(r.Entry.Token),
		Record:   r.Entry.ID.Record,
		Category: r.Entry.Category.String(),
		Slot:     r.Entry.Slot,
		Channel:  r.Entry.Channel,
		Value:    value,
	}
	if r.Entry.Numeric != nil {
		s.Units = r.Entry.Numeric.Units
	}
	b.telemetry.WriteParameter(s)
}

// PublishCatalog publishes the token catalog (retained).
func (b *Bridge) PublishCatalog() error {
	msg := CatalogMessage{
		Crate:      b.crateID,
		Timestamp:  time.Now().UTC(),
		Controller: b.controllerStatus(),
		Stats:      b.router.Registry().Stats(),
		Entries:    b.router.Entries(),
	}
	payload, err := marshal(msg)
	if err != nil {
		return err
	}
	return b.client.Publish(mqtt.Topics{}.Catalog(b.crateID), payload, 1, true)
}

// handleMQTTMessage routes incoming MQTT messages to appropriate handlers.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.SplitN(topic, "/", topicParts+1)
	if len(parts) < topicParts {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}
	if parts[2] != b.crateID {
		b.logDebug("ignoring message for other crate", "topic", topic)
		return
	}

	var suffix string
	if len(parts) > topicParts {
		suffix = parts[topicParts]
	}

	switch parts[1] {
	case "command":
		b.handleCommand(suffix, payload)
	case "request":
		b.handleRequest(suffix, payload)
	default:
		b.logError("unknown message type", fmt.Errorf("type: %s", parts[1]))
	}
}

// handleCommand writes one parameter and acknowledges the outcome.
// The ack goes to the topic the command arrived on, under ack/.
func (b *Bridge) handleCommand(suffix string, payload []byte) {
	b.commands.Add(1)

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.publishAckError(suffix, cmd, registry.Entry{}, ErrCodeInvalidCommand,
			fmt.Sprintf("invalid command payload: %v", err))
		return
	}

	ref := cmd.Ref
	if ref == "" {
		ref = suffix
	}
	ackRef := suffix
	if ackRef == "" {
		ackRef = ref
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"ref", ref,
		"source", cmd.Source)

	text, err := cmd.ValueText()
	if err != nil {
		b.publishAckError(ackRef, cmd, registry.Entry{}, ErrCodeInvalidValue, err.Error())
		b.notifyCommand(cmd, ref, Reading{}, err)
		return
	}

	r, err := b.router.Write(ref, text, cmd.EffectiveMask())
	if err != nil {
		b.publishAckError(ackRef, cmd, r.Entry, errorCode(err), err.Error())
		b.notifyCommand(cmd, ref, r, err)
		return
	}

	b.publishAck(ackRef, NewAckMessage(b.crateID, cmd, r))
	b.publishReadBack(r.Entry)
	b.notifyCommand(cmd, ref, r, nil)
}

func (b *Bridge) notifyCommand(cmd CommandMessage, ref string, r Reading, err error) {
	if b.onCommand == nil {
		return
	}
	cmd.Ref = ref
	b.onCommand(cmd, r, err)
}

// Write writes a parameter on behalf of a caller other than MQTT (the HTTP
// API) and publishes the read-back like a command would.
//
// Parameters:
//   - ref: Decimal token or record name
//   - text: Value in the parameter's text form
//   - mask: Bits to write for bitmask kinds
//
// Returns:
//   - Reading: The value that was sent
//   - error: Any router error (see Router.Write)
func (b *Bridge) Write(ref, text string, mask uint32) (Reading, error) {
	b.commands.Add(1)
	r, err := b.router.Write(ref, text, mask)
	if err != nil {
		b.commandErrors.Add(1)
		return r, err
	}
	b.publishReadBack(r.Entry)
	return r, nil
}

// publishReadBack publishes the current value so subscribers see a write
// before the next poll.
func (b *Bridge) publishReadBack(e registry.Entry) {
	if !e.Param.Readable() {
		return
	}
	back, err := b.router.ReadEntry(e, FullMask)
	if err != nil {
		b.logDebug("read-back failed", "record", e.ID.Record, "error", err)
		return
	}
	b.publishState(back)
}

// errorCode maps a router error to an ack/response error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrMissingRef),
		errors.Is(err, registry.ErrUnknownToken),
		errors.Is(err, registry.ErrUnknownRecord):
		return ErrCodeUnknownParameter
	case errors.Is(err, ErrNotWritable):
		return ErrCodeNotWritable
	case errors.Is(err, ErrNotReadable):
		return ErrCodeNotReadable
	case errors.Is(err, param.ErrInvalidValue), errors.Is(err, ErrInvalidValue):
		return ErrCodeInvalidValue
	case errors.Is(err, param.ErrDeviceAccess):
		return ErrCodeDeviceError
	default:
		return ErrCodeBridgeError
	}
}

// publishAck publishes a command acknowledgment (QoS 1, not retained).
func (b *Bridge) publishAck(ref string, ack AckMessage) {
	payload, err := marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	if err := b.client.Publish(mqtt.Topics{}.Ack(b.crateID, ref), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// publishAckError publishes a failed command acknowledgment.
func (b *Bridge) publishAckError(ref string, cmd CommandMessage, e registry.Entry, code, message string) {
	b.commandErrors.Add(1)
	b.logError("command failed",
		fmt.Errorf("ref=%s code=%s message=%s", ref, code, message))

	if ref == "" {
		return
	}
	b.publishAck(ref, NewAckError(b.crateID, cmd, e, code, message))
}

// handleRequest processes a request message.
func (b *Bridge) handleRequest(suffix string, payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logError("failed to parse request", err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = suffix
	}
	if req.RequestID == "" {
		b.logError("request without ID", fmt.Errorf("action: %s", req.Action))
		return
	}

	b.logInfo("received request",
		"request_id", req.RequestID,
		"action", req.Action)

	var resp ResponseMessage

	switch req.Action {
	case "read":
		resp = b.handleRead(req)
	case "catalog":
		resp = b.handleCatalog(req)
	case "crate_info":
		resp = b.handleCrateInfo(req)
	default:
		resp = errorResponse(req, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown action: %s", req.Action))
	}

	respPayload, err := marshal(resp)
	if err != nil {
		b.logError("failed to marshal response", err)
		return
	}

	respTopic := mqtt.Topics{}.Response(b.crateID, req.RequestID)
	if err := b.client.Publish(respTopic, respPayload, 1, false); err != nil {
		b.logError("failed to publish response", err)
	}
}

// handleRead reads one parameter on demand.
func (b *Bridge) handleRead(req RequestMessage) ResponseMessage {
	mask := FullMask
	if req.Mask != nil {
		mask = *req.Mask
	}

	r, err := b.router.Read(req.Ref, mask)
	if err != nil {
		return errorResponse(req, errorCode(err), err.Error())
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"token":     r.Entry.Token,
			"record":    r.Entry.ID.Record,
			"kind":      r.Entry.Kind,
			"value":     r.Native(),
			"formatted": r.Formatted(),
		},
	}
}

// handleCatalog returns every registry entry.
func (b *Bridge) handleCatalog(req RequestMessage) ResponseMessage {
	entries := b.router.Entries()
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"count":   len(entries),
			"entries": entries,
		},
	}
}

// handleCrateInfo describes the controller and its boards.
func (b *Bridge) handleCrateInfo(req RequestMessage) ResponseMessage {
	c := b.router.Registry().Crate()

	boards := make([]map[string]any, 0, len(c.Boards))
	for _, bd := range c.Boards {
		boards = append(boards, map[string]any{
			"slot":          bd.Slot,
			"model":         bd.Model,
			"description":   bd.Description,
			"serial":        bd.Serial,
			"firmware":      bd.Firmware,
			"channel_count": bd.ChannelCount,
		})
	}

	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data: map[string]any{
			"system_type": c.SystemType.String(),
			"address":     c.Address,
			"read_only":   c.ReadOnly,
			"skipped":     c.Skipped(),
			"boards":      boards,
			"stats":       b.router.Registry().Stats(),
		},
	}
}

func (b *Bridge) controllerStatus() ControllerStatus {
	c := b.router.Registry().Crate()
	return ControllerStatus{
		SystemType: c.SystemType.String(),
		Address:    c.Address,
		ReadOnly:   c.ReadOnly,
		Boards:     len(c.Boards),
	}
}

// statistics snapshots the bridge counters.
func (b *Bridge) statistics() BridgeStatistics {
	return BridgeStatistics{
		Polls:            b.polls.Load(),
		Reads:            b.reads.Load(),
		ReadErrors:       b.readErrors.Load(),
		Published:        b.published.Load(),
		Commands:         b.commands.Load(),
		CommandErrors:    b.commandErrors.Load(),
		LastPollFailures: int(b.lastPollFailures.Load()),
	}
}

// ClearStateCache forgets every published value so the next poll
// republishes all parameters. Called after a broker reconnect, since a
// restarted broker without persistence has lost the retained state.
func (b *Bridge) ClearStateCache() {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()

	b.stateCache = make(map[registry.Token]any)
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	if b.logger != nil {
		b.logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, keysAndValues...)
	}
}

// BridgeMetrics contains a point-in-time view of the bridge.
type BridgeMetrics struct {
	Connected  bool
	Status     HealthStatus
	Parameters int
	Statistics BridgeStatistics
}

// GetMetrics returns current bridge metrics.
func (b *Bridge) GetMetrics() BridgeMetrics {
	status, _ := b.health.status()
	return BridgeMetrics{
		Connected:  b.client.IsConnected(),
		Status:     status,
		Parameters: b.router.Registry().Len(),
		Statistics: b.statistics(),
	}
}
