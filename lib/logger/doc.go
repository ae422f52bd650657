// Package logger provides leveled, named loggers for the whole application.
//
// Every subsystem obtains its logger once via GetLogger(name); the name is
// printed in a fixed-width column so interleaved output from the store, the
// engine and the compaction worker stays readable. Levels follow the usual
// DEBUG < INFO < WARNING < ERROR ordering and can be adjusted per logger at
// runtime.
//
// The logger satisfies the embedded engine's logging interface so engine
// internals are routed through the same sink as everything else.
package logger
