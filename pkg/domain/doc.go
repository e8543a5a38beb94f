// Package domain holds the core value types of the reasoning pipeline:
// the persisted per-thread State, conversation Messages, suspension and
// resume values, event stream entries, and the pure merge functions for
// document-id sets and the title→id registry.
//
// Nothing here performs IO. Everything is JSON-serializable so a snapshot
// store can round-trip the state between processes.
package domain
