// Package stablejson renders values as deterministic JSON and hashes them.
//
// Every fingerprint and cache key in the engine is derived from the output of
// this package, so its encoding must stay byte-stable: object keys are sorted,
// output is compact, and strings are NFC normalized before encoding. Changing
// any of those rules invalidates every previously written producer index.
package stablejson
