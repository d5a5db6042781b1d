package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnknownTag is returned for lines whose tag is not a client message.
	ErrUnknownTag = errors.New("unknown message tag")
	// ErrMalformed is returned for a known tag with unusable fields.
	ErrMalformed = errors.New("malformed message")
)

// Parse decodes one inbound line. A trailing carriage return is ignored.
func Parse(line string) (Message, error) {
	line = strings.TrimSuffix(line, "\r")
	tag, rest, hasFields := strings.Cut(line, Separator)

	switch tagKinds[tag] {
	case KindJoin:
		if !hasFields {
			return nil, malformed(KindJoin, "missing name field")
		}
		return Join{Name: rest}, nil

	case KindChat:
		fields, err := splitN(KindChat, rest, hasFields, 2)
		if err != nil {
			return nil, err
		}
		return Chat{User: fields[0], Text: fields[1]}, nil

	case KindDraw:
		return parseDraw(rest, hasFields)

	case KindCursor:
		fields, err := splitExact(KindCursor, rest, hasFields, 3)
		if err != nil {
			return nil, err
		}
		ints, err := atois(KindCursor, fields[1:])
		if err != nil {
			return nil, err
		}
		return Cursor{User: fields[0], X: ints[0], Y: ints[1]}, nil

	case KindClear:
		return Clear{}, nil

	case KindBoardLock:
		if !hasFields {
			return nil, malformed(KindBoardLock, "missing value")
		}
		locked, err := parseBool(rest)
		if err != nil {
			return nil, malformed(KindBoardLock, err.Error())
		}
		return BoardLock{Locked: locked}, nil

	case KindPollCreate:
		return parsePollCreate(rest, hasFields)

	case KindPollVote:
		fields, err := splitExact(KindPollVote, rest, hasFields, 3)
		if err != nil {
			return nil, err
		}
		if fields[1] == "" {
			return nil, malformed(KindPollVote, "empty poll id")
		}
		idx, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			return nil, malformed(KindPollVote, "option index is not an integer")
		}
		return PollVote{User: fields[0], PollID: fields[1], Option: idx}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
}

func parseDraw(rest string, hasFields bool) (Message, error) {
	fields, err := splitExact(KindDraw, rest, hasFields, 6)
	if err != nil {
		return nil, err
	}
	ints, err := atois(KindDraw, fields[:5])
	if err != nil {
		return nil, err
	}
	width, err := strconv.ParseFloat(strings.TrimSpace(fields[5]), 64)
	if err != nil || width < 0 {
		return nil, malformed(KindDraw, "invalid stroke width")
	}
	return Draw{
		X1: ints[0], Y1: ints[1], X2: ints[2], Y2: ints[3],
		RGB:   ints[4],
		Width: width,
	}, nil
}

func parsePollCreate(rest string, hasFields bool) (Message, error) {
	fields, err := splitN(KindPollCreate, rest, hasFields, 4)
	if err != nil {
		return nil, err
	}
	if fields[1] == "" {
		return nil, malformed(KindPollCreate, "empty poll id")
	}
	options := strings.Split(fields[3], ListSeparator)
	// Trailing empty options are dropped, so "Red;Blue;" has two options.
	for len(options) > 0 && options[len(options)-1] == "" {
		options = options[:len(options)-1]
	}
	if len(options) == 0 {
		return nil, malformed(KindPollCreate, "no options")
	}
	return PollCreate{
		User:     fields[0],
		PollID:   fields[1],
		Question: fields[2],
		Options:  options,
	}, nil
}

// splitN splits into at most n fields; the last field keeps any separators.
func splitN(k Kind, rest string, hasFields bool, n int) ([]string, error) {
	if !hasFields {
		return nil, malformed(k, "missing fields")
	}
	fields := strings.SplitN(rest, Separator, n)
	if len(fields) != n {
		return nil, malformed(k, fmt.Sprintf("want %d fields, got %d", n, len(fields)))
	}
	return fields, nil
}

func splitExact(k Kind, rest string, hasFields bool, n int) ([]string, error) {
	if !hasFields {
		return nil, malformed(k, "missing fields")
	}
	fields := strings.Split(rest, Separator)
	if len(fields) != n {
		return nil, malformed(k, fmt.Sprintf("want %d fields, got %d", n, len(fields)))
	}
	return fields, nil
}

func atois(k Kind, fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, malformed(k, fmt.Sprintf("field %d is not an integer", i+1))
		}
		out[i] = v
	}
	return out, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("want true or false, got %q", s)
}

func malformed(k Kind, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, k, reason)
}
