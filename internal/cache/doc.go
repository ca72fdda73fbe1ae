// Package cache keeps synthesized segment audio between runs. Lookups go
// through an in-memory LRU (L1) and then a zstd-compressed disk store (L2);
// disk hits are promoted to memory.
package cache
