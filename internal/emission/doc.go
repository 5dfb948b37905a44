// Package emission is the pass/fail engine for vehicle emissions tests.
//
// Resolve picks the regulatory limits for a vehicle from a configuration
// Snapshot (fuel type × load category × age bracket, with scalar fallback).
// Evaluate checks a Measurement against those limits and returns a Verdict.
// Both are pure functions; persistence and configuration loading live in the
// calling services.
package emission
