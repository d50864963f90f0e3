// Package idgen produces run identifiers. Callers treat them as opaque
// strings; tests replace NewFunc for deterministic output.
package idgen
