// Package tasks runs the long-running workflows of the yomi client with real-time progress reporting.
//
// # Core Operations
//
// [JobEngine] drives every job the API accepts:
//
//  1. [JobEngine.Upload] : streaming history import
//     - Validates the export file (exists, .json, sniffed as JSON, top-level array of stream records)
//     - Uploads it as multipart form data, reporting bytes sent
//     - Polls the returned job and decodes the {status, inserted, total} summary
//
//  2. [JobEngine.GenerateSnapshots] : snapshot generation for one or more periods
//     - Submits the periods in one request
//     - Polls every returned job concurrently in a bounded worker pool
//     - Shares one rate limiter across all status checks
//     - Reports partial failures per period
//
//  3. [JobEngine.GenerateCustomSnapshot], [JobEngine.LatestSnapshot] and [JobEngine.Watch]
//
// # Progress Reporting
//
// All operations accept a progress channel. The [ProgressUpdate] struct contains phase, step counters, a message
// and optional data for advanced UI rendering. Updates use select with default so a slow reader never blocks a
// job.
//
// # Job History
//
// The optional [JobRecorder] (repositories.JobRepository in production) receives every job when polling starts
// and again when it ends. Recording errors are logged, never returned.
package tasks
