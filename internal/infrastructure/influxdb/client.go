package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/hvcrate-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	// Used when the config leaves batching unset.
	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client writes crate telemetry to an InfluxDB v2 bucket.
//
// Writes go through the library's non-blocking write API: points are
// batched and sent in the background, and failures arrive later on the
// error callback given to Connect. The most recent failure is also held
// until the next HealthCheck, which reports it.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	open    atomic.Bool
	written atomic.Int64

	errMu   sync.Mutex
	lastErr error
	onError func(error)
}

// Connect pings the server at cfg.URL and prepares the write API for
// cfg.Org/cfg.Bucket.
//
// Parameters:
//   - cfg: InfluxDB configuration
//   - onError: Called for every failed background write; may be nil
//
// Returns:
//   - *Client: Client ready for writes
//   - error: ErrDisabled when cfg.Enabled is false, ErrConnectionFailed otherwise
func Connect(cfg config.InfluxDBConfig, onError func(error)) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		onError:  onError,
	}
	c.open.Store(true)
	go c.collectErrors()
	return c, nil
}

// clientOptions maps the batch settings, falling back to the defaults for
// zero or negative values.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds()))
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not ready")
	}
	return nil
}

// collectErrors drains the write API's error channel until Close.
func (c *Client) collectErrors() {
	for err := range c.writeAPI.Errors() {
		c.errMu.Lock()
		c.lastErr = err
		c.errMu.Unlock()
		if c.onError != nil {
			c.onError(err)
		}
	}
}

// write queues p unless the client is closed or was never connected.
func (c *Client) write(p *write.Point) {
	if !c.open.Load() {
		return
	}
	c.writeAPI.WritePoint(p)
	c.written.Add(1)
}

// Written returns the number of points queued since Connect.
func (c *Client) Written() int64 {
	return c.written.Load()
}

// Flush sends buffered points now. It is a no-op on a closed client.
func (c *Client) Flush() {
	if c.open.Load() {
		c.writeAPI.Flush()
	}
}

// Close flushes buffered points and releases the client. It is safe to
// call more than once.
func (c *Client) Close() error {
	if !c.open.CompareAndSwap(true, false) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// IsConnected reports whether the client accepts writes.
func (c *Client) IsConnected() bool {
	return c.open.Load()
}

// HealthCheck pings the server and reports a background write failure
// seen since the previous check as ErrWriteFailed.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.open.Load() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}

	c.errMu.Lock()
	err := c.lastErr
	c.lastErr = nil
	c.errMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
