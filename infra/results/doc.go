// Package results is a durable outbox of harness run reports.
//
// Each run is stored under run/<id> with a delivery state so a
// broadcaster can publish new reports and mark them acknowledged.
// Values are [state:1][retries:4][lastAttempt:8] followed by the
// report as a protobuf Struct.
package results
