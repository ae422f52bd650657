// Package cmd implements the command-line interface for the shardkv storage
// layer. It provides a hierarchical command structure with operations for
// reading and writing a local store and for administrative maintenance.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations (get, set, delete, list, perf)
//   - admin: Commands for maintenance (info, schema, compact, repair, metrics)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See shardkv -help for a list of all commands.
package cmd
