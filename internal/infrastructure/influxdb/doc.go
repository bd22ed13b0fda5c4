// Package influxdb provides InfluxDB connectivity for crate telemetry.
//
// # Purpose
//
// The hv bridge records every polled numeric or integer parameter in the
// hv_parameter measurement, tagged with crate, record, category and,
// where applicable, slot and channel. Each poll cycle is summarised in
// hv_poll.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, func(err error) {
//	    log.Error("InfluxDB write error", "error", err)
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteParameter(influxdb.ParameterSample{
//	    Crate: "crate1", Record: "S00:C01:VMON", Category: "channel.numeric",
//	    Slot: 0, Channel: 1, Value: 1500.2,
//	})
//
// # Error Handling
//
// Writes never block the poll loop. Batch failures go to the callback
// passed to Connect, and the latest one is returned once by HealthCheck
// wrapped in ErrWriteFailed.
package influxdb
