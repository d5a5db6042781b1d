// Package integration runs classboard end to end: a real server on loopback
// ports and participants speaking the line protocol over TCP and WebSocket.
package integration
