package protocol

import (
	"strconv"
	"strings"
)

const (
	// Separator splits the fields of a line.
	Separator = "|"
	// ListSeparator splits poll options and tallies.
	ListSeparator = ";"
	// NameSeparator splits the names of a USERLIST line.
	NameSeparator = ","

	// ServerUser is the author of server announcements.
	ServerUser = "SERVER"

	RoleTeacher = "TEACHER"
	RoleStudent = "STUDENT"
)

func join(k Kind, fields ...string) string {
	var b strings.Builder
	b.WriteString(k.String())
	for _, f := range fields {
		b.WriteString(Separator)
		b.WriteString(f)
	}
	return b.String()
}

// EncodeUsername tells a joining session the name it was assigned.
func EncodeUsername(name string) string {
	return join(KindUsername, name)
}

// EncodeRole tells a joining session its role.
func EncodeRole(teacher bool) string {
	if teacher {
		return join(KindRole, RoleTeacher)
	}
	return join(KindRole, RoleStudent)
}

func EncodeBoardLock(locked bool) string {
	return join(KindBoardLock, strconv.FormatBool(locked))
}

// EncodeServerChat builds a chat line authored by the server.
func EncodeServerChat(text string) string {
	return join(KindChat, ServerUser, text)
}

func EncodeUserList(names []string) string {
	return join(KindUserList, strings.Join(names, NameSeparator))
}

// EncodePollResults renders the tallies of a poll in option order.
func EncodePollResults(pollID string, counts []int) string {
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = strconv.Itoa(c)
	}
	return join(KindPollResults, pollID, strings.Join(parts, ListSeparator))
}
