// Package ports defines the boundary interfaces of the reasoning core: the
// snapshot store and thread lease it persists through, and the external
// collaborators it consumes: the classification capability, the document
// entity store, semantic retrieval, and web search.
//
// Adapters live under pkg/adapters; RunSnapshotStoreContract verifies any
// SnapshotStore implementation against the shared contract.
package ports
