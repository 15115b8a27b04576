// Package sortedlist implements a concurrent sorted singly-linked
// multiset whose locking strategy is chosen at construction.
//
// All operations share one hand-over-hand traversal: a walker holds
// the lock of its predecessor and current node, and to advance it
// releases the predecessor before locking the successor, so at most
// two locks are ever held and they are always taken in list order.
// Coarse strategies wrap the same walk in a single list-wide lock and
// place no-op locks in the nodes.
//
// A node is owned by its predecessor's next link. Remove unlinks a
// node while holding both its predecessor's and its own lock; no other
// walker can then reach it, so the remover returns it to the allocator
// after releasing the locks.
package sortedlist
