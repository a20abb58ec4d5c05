// Package ir provides the value model shared by the executor, the result
// mapper and the CLI.
//
// This package contains type definitions and their serialization only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Value is sealed: Null, Int, Float, Text and Blob are the only
//     implementations, one per SQLite storage class
//   - Null is the single null marker; nil never appears inside a result
//   - Every Value is a driver.Valuer so it can be bound as a parameter
//     without conversion
package ir
