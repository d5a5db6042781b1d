package protocol

import "strings"

// Kind identifies the leading tag of a protocol line.
type Kind int

const (
	KindUnknown Kind = iota

	// Sent by clients; CHAT, DRAW, CURSOR, CLEAR, BOARD_LOCK and POLL_CREATE
	// are also relayed by the server.
	KindJoin
	KindChat
	KindDraw
	KindCursor
	KindClear
	KindBoardLock
	KindPollCreate
	KindPollVote

	// Server only.
	KindUsername
	KindRole
	KindUserList
	KindPollResults
)

var kindTags = map[Kind]string{
	KindJoin:        "JOIN",
	KindChat:        "CHAT",
	KindDraw:        "DRAW",
	KindCursor:      "CURSOR",
	KindClear:       "CLEAR",
	KindBoardLock:   "BOARD_LOCK",
	KindPollCreate:  "POLL_CREATE",
	KindPollVote:    "POLL_VOTE",
	KindUsername:    "USERNAME",
	KindRole:        "ROLE",
	KindUserList:    "USERLIST",
	KindPollResults: "POLL_RESULTS",
}

var tagKinds = func() map[string]Kind {
	m := make(map[string]Kind, len(kindTags))
	for k, tag := range kindTags {
		m[tag] = k
	}
	return m
}()

// String returns the wire tag for k, or "UNKNOWN".
func (k Kind) String() string {
	if tag, ok := kindTags[k]; ok {
		return tag
	}
	return "UNKNOWN"
}

// KindOf reports the kind of an encoded line by its leading tag.
func KindOf(line string) Kind {
	tag, _, _ := strings.Cut(line, Separator)
	return tagKinds[tag]
}
