// Package middleware provides composable wrappers around a SnapshotStore.
// Middlewares run on the persistence boundary only; the executor keeps
// working with the plain in-memory state.
package middleware

import "github.com/policypal/palgraph/pkg/ports"

// Middleware allows wrapping a SnapshotStore to add behavior.
type Middleware func(ports.SnapshotStore) ports.SnapshotStore

// Chain applies middlewares to a store, first middleware outermost.
func Chain(store ports.SnapshotStore, mws ...Middleware) ports.SnapshotStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
