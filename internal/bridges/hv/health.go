package hv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/hvcrate-core/internal/infrastructure/mqtt"
)

const defaultHealthInterval = 30 * time.Second

// HealthPublisher is the part of the MQTT client the reporter needs.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporterConfig configures a HealthReporter. Only CrateID is
// required; a nil Publisher turns every publish into a no-op.
type HealthReporterConfig struct {
	CrateID    string
	Version    string
	Interval   time.Duration // 30s when zero
	Publisher  HealthPublisher
	Controller ControllerStatus
	Parameters int

	// Stats supplies the counters embedded in each message.
	Stats func() BridgeStatistics

	// OnError receives periodic publish failures.
	OnError func(error)
}

// HealthReporter publishes a retained HealthMessage for one crate on
// hvcrate/health/{crate}: once at start, then every Interval, and a final
// "stopping" message from Stop.
type HealthReporter struct {
	cfg     HealthReporterConfig
	topic   string
	started time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewHealthReporter returns a reporter; nothing is published until Start
// or one of the Publish methods is called.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultHealthInterval
	}
	return &HealthReporter{
		cfg:     cfg,
		topic:   mqtt.Topics{}.Health(cfg.CrateID),
		started: time.Now(),
	}
}

// Start runs the periodic report until ctx is done or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := h.PublishNow(); err != nil && h.cfg.OnError != nil {
					h.cfg.OnError(err)
				}
			}
		}
	}()
}

// Stop ends the report loop and publishes "stopping". Later calls do
// nothing.
func (h *HealthReporter) Stop() {
	h.once.Do(func() {
		h.mu.Lock()
		cancel := h.cancel
		h.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		h.wg.Wait()

		h.publish(HealthStopping, "") //nolint:errcheck // shutting down
	})
}

// PublishStarting announces the bridge before the first poll.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(HealthStarting, "bridge starting")
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.status()
	return h.publish(status, reason)
}

// status derives the crate's health. A broker outage makes the bridge
// unreachable to subscribers, so it reads as offline; failed reads in the
// last poll degrade it.
func (h *HealthReporter) status() (HealthStatus, string) {
	if h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected() {
		return HealthOffline, "MQTT disconnected"
	}
	if h.cfg.Stats == nil {
		return HealthHealthy, ""
	}
	if n := h.cfg.Stats().LastPollFailures; n > 0 {
		return HealthDegraded, fmt.Sprintf("%d parameters failed to read", n)
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) message(status HealthStatus, reason string) HealthMessage {
	controller := h.cfg.Controller
	msg := HealthMessage{
		Crate:         h.cfg.CrateID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Reason:        reason,
		Version:       h.cfg.Version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Controller:    &controller,
		Parameters:    h.cfg.Parameters,
	}
	if h.cfg.Stats != nil {
		stats := h.cfg.Stats()
		msg.Statistics = &stats
	}
	return msg
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil {
		return nil
	}
	payload, err := marshal(h.message(status, reason))
	if err != nil {
		return err
	}
	return h.cfg.Publisher.Publish(h.topic, payload, 1, true)
}
