// Package cache resolves the served paper feed through three tiers: an
// in-process cache, the durable paper store, and a live fetch-and-enrich
// loader.
//
// The default feed uses all three tiers with a 30 minute freshness window.
// Search and category feeds are kept in a keyed in-process cache with a
// 15 minute window and go straight to the loader on a miss. Entries are
// replaced wholesale on every refresh and expire by age, never by eviction.
//
// The Manager takes its clock, store, and loader as dependencies so that
// freshness and fallback behavior can be exercised without real time or
// network access.
package cache
