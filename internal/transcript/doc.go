// Package transcript implements overlap-aware merging of per-chunk word lists
// into a single append-only transcript. It aligns the tail of the previous
// chunk against the head of the current chunk by token content and emits only
// the genuinely new suffix.
package transcript
