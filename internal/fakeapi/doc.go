// Package fakeapi is an in-memory implementation of the yomi listening-history API.
//
// It serves every endpoint the client consumes from a chi router so that tests and `yomi dev serve` can exercise
// uploads, snapshot generation and job polling without the real service. Jobs advance one step per status poll:
// they report queued, then processing with rising progress, then finish after [Options.StepsToFinish] polls.
//
// Both status shapes are served. /api/job-status/{id} answers in the job-queue vocabulary (queued, started,
// finished, failed) and /api/task-status/{id} in the task-queue vocabulary (PENDING, PROGRESS, SUCCESS, FAILURE).
//
// Uploaded streaming history is aggregated into the song and artist tables, so lists and search reflect what was
// uploaded once the upload job has finished.
package fakeapi
