// Package server implements the Classboard network front end.
//
// It accepts participants over raw TCP and over WebSocket, runs one reader and
// one writer goroutine per connection, and feeds every inbound line into the
// shared room. The code is split by concern: configuration, connection
// transports, per-client pumps, the live connection hub, HTTP routing and
// handlers, origin checks and rate limiting.
package server
