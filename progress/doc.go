// Package progress keeps aggregated kernel counters (ticks, steps, grants,
// misses, …) for a single simulation run. The tracker can travel in a
// context so that observers reach it without a global registry.
package progress
