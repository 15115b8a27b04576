// Package trace is an append-only, segmented log of list operations.
//
// A trace captures a deterministic workload together with the result
// each operation observed, so the same sequence can be replayed
// single-threaded against every lock strategy and compared.
//
// Frame layout:
//
//	[op:1][seq:8][len:4][payload][crc:4]
//
// The payload is protobuf wire format (field 1 value, field 2 result,
// both zigzag varints). The CRC covers header and payload.
package trace
