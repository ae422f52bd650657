package shardstore

// Keys of prefixes without their own column live on the default column family
// as "prefix \x00 key". The zero byte keeps distinct prefixes from
// interleaving while preserving key order within one prefix.

// combineKey encodes (prefix, key) for the default column family.
func combineKey(prefix, key string) []byte {
	k := make([]byte, 0, len(prefix)+1+len(key))
	k = append(k, prefix...)
	k = append(k, 0)
	return append(k, key...)
}

// combinedPrefix returns the byte prefix shared by all combined keys of a
// logical prefix.
func combinedPrefix(prefix string) []byte {
	p := make([]byte, 0, len(prefix)+1)
	p = append(p, prefix...)
	return append(p, 0)
}

// combinedUpper returns the exclusive upper bound of a logical prefix on the
// default column family.
func combinedUpper(prefix string) []byte {
	p := make([]byte, 0, len(prefix)+1)
	p = append(p, prefix...)
	return append(p, 1)
}

// keyUpper returns the exclusive upper bound of all keys beginning with p, or
// nil when no finite bound exists. p is not modified.
func keyUpper(p []byte) []byte {
	up := append([]byte(nil), p...)
	for i := len(up) - 1; i >= 0; i-- {
		if up[i] != 0xff {
			up[i]++
			return up[:i+1]
		}
	}
	return nil
}

func copyOf(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
