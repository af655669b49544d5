// Package database provides the PostgreSQL connection pool used to persist
// live dataset points.
//
// The schema is a single table, realtime_points, keyed by a client-generated
// UUID so that replayed batches are idempotent.
package database
