// Package types defines the shared data model of the UniMemory engine:
// memories, waypoint edges, tenant scopes, the structured error type, and
// the injectable clock used for deterministic testing.
//
// All other packages depend on this one; it depends on nothing inside the
// module.
package types
