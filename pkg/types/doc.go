// Package types defines the data shared by every layer of the engine:
// transitions, key/write sets, and fingerprints. See pkg/store for the
// overlay contract these types flow through and pkg/scheduler for how
// read/write sets drive dispatch.
package types
