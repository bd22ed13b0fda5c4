package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the hv bridge.
const (
	MeasurementParameter = "hv_parameter"
	MeasurementPoll      = "hv_poll"
)

// ParameterSample is one polled value of a crate parameter.
type ParameterSample struct {
	Crate    string
	Token    uint32
	Record   string
	Category string
	Units    string

	// Slot and Channel are -1 when not applicable.
	Slot    int
	Channel int

	Value float64
	Time  time.Time
}

// NewParameterPoint builds the hv_parameter point for a sample.
//
// Tags carry the crate, record name and category so dashboards can group
// by board or channel without parsing record names. A zero Time means now.
func NewParameterPoint(s ParameterSample) *write.Point {
	tags := map[string]string{
		"crate":    s.Crate,
		"record":   s.Record,
		"category": s.Category,
	}
	if s.Slot >= 0 {
		tags["slot"] = strconv.Itoa(s.Slot)
	}
	if s.Channel >= 0 {
		tags["channel"] = strconv.Itoa(s.Channel)
	}
	if s.Units != "" {
		tags["units"] = s.Units
	}

	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(
		MeasurementParameter,
		tags,
		map[string]interface{}{
			"value": s.Value,
			"token": int64(s.Token),
		},
		ts,
	)
}

// WriteParameter writes one parameter sample.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Calls on a closed client are dropped.
//
// Example:
//
//	client.WriteParameter(influxdb.ParameterSample{
//	    Crate: "crate1", Token: 12, Record: "S00:C01:VMON",
//	    Category: "channel.numeric", Slot: 0, Channel: 1, Value: 1500.2,
//	})
func (c *Client) WriteParameter(s ParameterSample) {
	c.write(NewParameterPoint(s))
}

// NewPollPoint builds the hv_poll point summarising one poll cycle.
func NewPollPoint(crate string, reads, failures int, elapsed time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementPoll,
		map[string]string{"crate": crate},
		map[string]interface{}{
			"reads":       int64(reads),
			"failures":    int64(failures),
			"duration_ms": elapsed.Seconds() * 1000,
		},
		ts,
	)
}

// WritePollStats records the outcome of one poll cycle.
//
// Parameters:
//   - crate: Crate identifier
//   - reads: Number of successful parameter reads
//   - failures: Number of reads that returned an error
//   - elapsed: Wall time of the whole cycle
func (c *Client) WritePollStats(crate string, reads, failures int, elapsed time.Duration) {
	c.write(NewPollPoint(crate, reads, failures, elapsed, time.Now()))
}
