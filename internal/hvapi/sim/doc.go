// Package sim provides an in-memory controller for development and tests.
//
// The simulator presents a crate described by a Layout, which may be loaded
// from YAML:
//
//	system_props:
//	  - {name: ModelName, type: str, mode: ro, text: SY4527}
//	slots:
//	  - model: A1535
//	    description: 24 Ch 3.5KV/3mA
//	    channels: 24
//	    channel_name: CH
//	    board_params:
//	      - {name: BdStatus, type: bdstatus, mode: ro}
//	    channel_params:
//	      - {name: V0Set, type: numeric, mode: rw, max: 3500, unit: 2}
//
// Values written through the Device are stored and read back unchanged.
// Failures can be injected on a schedule (SetErrorEvery) or per call
// (FailOn), and Calls counts every call so tests can assert that an
// operation never reached the controller.
package sim
