// Package writer persists live dataset points to PostgreSQL.
//
// The writer batches points by size and time and inserts them with
// ON CONFLICT DO NOTHING. Row IDs are derived from the point itself, so
// replays and duplicate deliveries are absorbed by the primary key.
package writer
