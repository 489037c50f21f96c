// Package storage persists the dispatch journal: an append-only record of
// every reminder snapshot handed to the delivery queue.
//
// The journal is write-mostly and is never replayed into the in-memory
// reminder store; it exists for operators and post-mortems.
package storage
