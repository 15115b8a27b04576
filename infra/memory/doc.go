// Package memory provides the node allocator used by the sorted lists.
//
// Pool wraps sync.Pool with the bookkeeping the lists need: a live
// count that must return to zero once a list is drained, and an
// optional capacity that turns allocation into a recoverable failure
// instead of unbounded growth.
package memory
