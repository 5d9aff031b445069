// Package dedupe provides activity deduplication using a time-based cache
// so redelivered turns are processed at most once within a configurable window.
package dedupe
