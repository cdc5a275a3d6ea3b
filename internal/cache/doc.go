// Package cache implements a persistent key/value cache on the local
// filesystem with per-entry TTL. Each key maps deterministically to
// <Dir>/<shardToken>/<token>.json without a central index file; entries are
// JSON envelopes holding the payload bytes, the original key, the value's type
// tag and its expiry. An in-memory hour-bucketed expiry index, rebuilt from disk
// by Open, lets Get/Set/Touch evict stale entries incrementally instead of
// scanning the whole directory, while every read still checks the entry's own
// expiry so stale files are never served.
package cache
