// Package services implements HTTP clients for the listening-history API.
//
// # API Service
//
// [APIService] is the raw client: it resolves paths against the configured base URL, injects the bearer token
// from a [TokenFunc] and returns an [APIResponse] with the status, headers and body of every call. It also
// builds multipart uploads and can fetch a URL without following redirects.
//
// # Job Client
//
// [JobClient] maps the job endpoints onto poller types. Submissions report acceptance only for HTTP 202 with a
// job id. Status responses are sniffed with gjson so both the job endpoint (finished/failed, job_id) and the
// legacy task endpoint (SUCCESS/FAILURE, task_id, progress.progress_pct) normalise to one [poller.Status].
//
// # Stats Service
//
// [StatsService] wraps the read-only endpoints (search, top-N lists, song and artist details, latest snapshot,
// API status) and the Spotify connection endpoints. Reads may go through a retrying client built by
// [NewRetryingClient]; submissions and status checks never retry.
//
// # User Sync
//
// [UserSyncer] posts the signed-in user to /api/users/sync once per subject, recording a flag in a store.Store.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : no bearer token, or the API answered 401
//   - [shared.ErrAPIRequest] : HTTP request failed or returned an unexpected status
//   - [shared.ErrNotFound] : song or artist id not found
//   - [shared.ErrSnapshotNotReady] : latest snapshot is still being generated (HTTP 202)
//   - [shared.ErrUnexpectedResponse] : body could not be decoded
package services
