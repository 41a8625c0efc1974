// Package testutil provides seeded dataset generators and brute-force range
// oracles for tests and benchmarks.
//
// This package is intended for use in tests and benchmarks only.
//
// # Ordinal Generation
//
//	rng := testutil.NewRNG(seed)
//	vals := rng.UniformOrdinals(n, maxValue)   // worst case for compression
//	vals = rng.ZipfOrdinals(n, distinct, 1.5)  // power-law column
//	vals = rng.ClusteredOrdinals(n, 8, maxValue, spread)
//
// # Ground Truth
//
//	want := testutil.MatchLt(vals, threshold)
//	got := rb.Lt(threshold)
//	// compare want and got
package testutil
