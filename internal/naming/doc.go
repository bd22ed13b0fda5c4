// Package naming derives the identifiers under which discovered parameters
// are exported.
//
// Every parameter gets a triple: a short name usable as a map key or MQTT
// topic segment, a colon-separated record name, and a human description.
//
//	system   C_HVPWSM        C:HVPWSM        Chassis, HvPwSM (RW)
//	board    S03_V0SET       S03:V0SET       Slot 3, V0Set (RW)
//	channel  S03_C01_V0SET   S03:C01:V0SET   Slot 3, Ch 1, V0Set (RW)
//
// All functions are pure.
package naming
