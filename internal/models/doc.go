// Package models defines the types yomi passes between its API client, job poller, persistence and presentation layers.
//
// The package contains two categories of types:
//
// 1. Job tracking: the client-side view of a server-side asynchronous job
//   - [Job] : one observed job with status, progress, result and error
//   - [JobStatus] : canonical status vocabulary (queued, processing, succeeded, failed)
//   - [JobResult] : opaque result payload, interpreted only by presenting code
//   - [UploadSummary] : typed reading of an upload job's result
//
// 2. Data Transfer Objects (DTOs): response shapes mirrored from the listening-history API
//   - [Song], [Artist] : list and search entries
//   - [SongDetails], [ArtistDetails] : detail pages
//   - [SearchResults], [ListQuery] : search and top-N list queries
//   - [Snapshot] : precomputed listening statistics for a period
//   - [User] : payload for the user sync endpoint
//   - [StreamRecord] : one entry of a Spotify extended streaming history export
package models
