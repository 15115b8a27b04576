// Package harness drives the sorted lists under concurrent load and
// checks their invariants.
//
// Run hammers one shared list from many workers and then verifies
// sortedness, multiset conservation and that draining the list returns
// every node to the allocator. Equivalence replays one deterministic
// operation sequence against several strategies and requires identical
// results. Fairness records lock grant order against request order.
package harness
