// Package param models the parameters discovered on a high-voltage crate.
//
// A Param is a closed tagged union over seven kinds: Numeric, OnOff,
// ChStatus, BdStatus, Binary, String and Integer. Each Param is bound at
// construction to its location on the crate (system, board slot or board
// channel), its access mode, its identifier triple and the device handle it
// talks through. Kind metadata (bounds and units, on/off labels, status bit
// tables) is fetched or assigned once and never refreshed.
//
// Access rules shared by every kind:
//
//   - Get on a write-only parameter returns the zero Value without a device call.
//   - Set on a read-only parameter does nothing and makes no device call.
//   - A failing device call is returned as *DeviceAccessError. System
//     properties whose get or set is not implemented by the controller
//     read as zero and accept writes silently.
//
// Integer parameters are backed by a narrower physical type (u8, u16, u32,
// i16 or i32). Reads widen to int32 and writes narrow, so out-of-range
// writes truncate or change sign.
package param
