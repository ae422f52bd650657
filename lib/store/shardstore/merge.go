package shardstore

import (
	"bytes"
	"sort"
	"strings"

	"shardkv/lib/engine"
	"shardkv/lib/sharding"
)

// --------------------------------------------------------------------------
// Merge Routing
// --------------------------------------------------------------------------

// Merge operators are bound to logical prefixes at open time and frozen for
// the store's lifetime. A prefix with its own column gets its operator bound
// directly to every physical shard of that column; all other prefixes share
// the default column family and are dispatched by key through a router.
//
// The engine merger identity is derived from the frozen binding set, so
// reopening a store with a different set of operators is rejected by the
// engine's cross-restart identity validation.

// mergerIdentityBase anchors the merger name; the bound operators are
// appended as sorted ".prefix:name" segments.
const mergerIdentityBase = "shardkv.merge"

type mergeBinding struct {
	prefix string
	op     engine.MergeOperator
}

// identitySegments renders bindings as sorted ".prefix:name" segments.
func identitySegments(bindings []mergeBinding) string {
	segs := make([]string, 0, len(bindings))
	for _, b := range bindings {
		segs = append(segs, "."+b.prefix+":"+b.op.Name())
	}
	sort.Strings(segs)
	return strings.Join(segs, "")
}

// mergerIdentity returns the engine merger name for a frozen operator set.
func mergerIdentity(bindings []mergeBinding) string {
	return mergerIdentityBase + identitySegments(bindings)
}

// --------------------------------------------------------------------------
// Default-Family Router
// --------------------------------------------------------------------------

// mergeRouter dispatches merges on the default column family by the combined
// key's prefix. The first matching binding wins; operands for unbound
// prefixes pass through unchanged, so a missing binding never loses data.
type mergeRouter struct {
	bindings []mergeBinding
}

func newMergeRouter(bindings []mergeBinding) *mergeRouter {
	// Sorted for deterministic dispatch order. Prefix matches are exact up
	// to the separator, so order only matters for the identity string.
	sorted := append([]mergeBinding(nil), bindings...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].prefix < sorted[j].prefix })
	return &mergeRouter{bindings: sorted}
}

func (r *mergeRouter) Name() string {
	return "router" + identitySegments(r.bindings)
}

// match returns the binding of a combined key and the logical key after the
// separator, ok=false when no binding covers the key.
func (r *mergeRouter) match(key []byte) (mergeBinding, []byte, bool) {
	for _, b := range r.bindings {
		if len(key) > len(b.prefix) && key[len(b.prefix)] == 0 &&
			bytes.HasPrefix(key, []byte(b.prefix)) {
			return b, key[len(b.prefix)+1:], true
		}
	}
	return mergeBinding{}, nil, false
}

func (r *mergeRouter) Merge(key, existing, operand []byte) []byte {
	if b, logical, ok := r.match(key); ok {
		return b.op.Merge(logical, existing, operand)
	}
	return operand
}

func (r *mergeRouter) MergeNonexistent(key, operand []byte) []byte {
	if b, logical, ok := r.match(key); ok {
		return b.op.MergeNonexistent(logical, operand)
	}
	return operand
}

// --------------------------------------------------------------------------
// Binding Construction
// --------------------------------------------------------------------------

// buildMergeConfig splits the configured prefix-to-operator map into
// per-family engine bindings and computes the composite merger identity.
// Prefixes with their own column bind directly to each physical shard;
// the rest share a router on the default family.
func buildMergeConfig(defs []sharding.ColumnDescriptor,
	ops map[string]engine.MergeOperator) (map[string]engine.MergeOperator, string) {

	columns := make(map[string]sharding.ColumnDescriptor, len(defs))
	for _, d := range defs {
		columns[d.Name] = d
	}

	families := make(map[string]engine.MergeOperator)
	var all, routed []mergeBinding
	for prefix, op := range ops {
		b := mergeBinding{prefix: prefix, op: op}
		all = append(all, b)
		if d, ok := columns[prefix]; ok {
			for _, name := range d.ShardNames() {
				families[name] = op
			}
		} else {
			routed = append(routed, b)
		}
	}
	if len(routed) > 0 {
		families["default"] = newMergeRouter(routed)
	}
	return families, mergerIdentity(all)
}
