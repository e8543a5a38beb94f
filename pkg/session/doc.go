/*
Package session implements thread management and persistence orchestration.

It provides high-level abstractions for handling concurrent access to thread
snapshots across multiple replicas, combining in-process reference-counted
locks with optional distributed locking and the snapshot store adapters.
*/
package session
