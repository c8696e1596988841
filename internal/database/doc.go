// Package database provides the PostgreSQL connection pool for recorded
// stream events.
package database
