// Package recorder persists stream events to PostgreSQL.
//
// Writers:
//   - Prediction writer (prediction_events table)
//   - Pipeline writer (pipeline_events table)
//
// Events flow from stream listeners into growable buffers, then batch
// writers flush them with ON CONFLICT DO NOTHING on message_id. Inserts
// are append-only; replayed frames after a reconnect deduplicate at the
// database.
package recorder
