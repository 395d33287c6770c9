// Package cdc provides the public interfaces and types for the watermark
// polling engine.
//
// The package defines RowSource for fetching newly inserted rows from a
// table, EventSink for handing decoded rows downstream, and TableMonitor for
// the long-running poll loop itself. External applications integrate with the
// engine through these interfaces.
//
// Key Components:
//   - RowSource: range queries against the monitored table
//   - EventSink: receives one RowEvent per captured row
//   - TableMonitor: the poll loop for a single table
//   - TableMonitorFactory: creates monitors per table
package cdc
