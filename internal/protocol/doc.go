// Package protocol implements the Classboard line protocol: newline-delimited,
// pipe-separated UTF-8 text lines exchanged between clients and the server.
//
// Inbound lines are decoded by Parse into one of a closed set of Message
// types. Outbound lines are produced by the Encode helpers so that every
// server-originated line has exactly one canonical spelling.
package protocol
