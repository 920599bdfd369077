// Package output renders finalized hitfetch results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output, written on Flush
package output
