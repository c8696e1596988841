// Package api provides the Finexia REST API client.
//
// The client:
//   - Authenticates with username/password and installs the bearer token
//     on the shared auth.Session
//   - Retries transient failures (5xx, 429) with exponential backoff + jitter
//   - Covers the surfaces the stream consumers need: symbols, predictions,
//     scheduler tasks, tenants
package api
