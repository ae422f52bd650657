// Package enginetest provides a standardized conformance suite for engine
// implementations.
//
// An implementation passes a factory to RunEngineTests; the suite exercises
// shard lifecycle, atomic batches, cursors, merge dispatch and auxiliary
// records against the engine contract. New engine backends should run this
// suite before anything else.
package enginetest
