// Package lock provides the mutual-exclusion strategies used by the
// sorted lists: a blocking mutex, a test-and-test-and-set spinlock,
// an MCS queue lock and a no-op lock for coarse-grained lists.
//
// Every lock takes a caller-owned *Waiter. Queue locks link the record
// into their wait queue; the others ignore it. A Waiter may be queued
// on at most one lock at a time.
package lock
