package protocol

import (
	"strconv"
	"strings"
)

// Message is an inbound client message. The set of implementations is closed;
// callers dispatch on it with a type switch.
type Message interface {
	Kind() Kind
	// Encode renders the message in its canonical wire form.
	Encode() string
	isMessage()
}

// Join requests a display name. Only meaningful as the first line.
type Join struct {
	Name string
}

// Chat is a text message to the whole room.
type Chat struct {
	User string
	Text string
}

// Draw is one stroke segment on the shared board.
type Draw struct {
	X1, Y1, X2, Y2 int
	RGB            int
	Width          float64
}

// Cursor reports a participant's pointer position.
type Cursor struct {
	User string
	X, Y int
}

// Clear wipes the board.
type Clear struct{}

// BoardLock sets or releases the board lock.
type BoardLock struct {
	Locked bool
}

// PollCreate announces a new poll, replacing any active one.
type PollCreate struct {
	User     string
	PollID   string
	Question string
	Options  []string
}

// PollVote casts a vote for Options[Option] of poll PollID.
type PollVote struct {
	User   string
	PollID string
	Option int
}

func (Join) Kind() Kind       { return KindJoin }
func (Chat) Kind() Kind       { return KindChat }
func (Draw) Kind() Kind       { return KindDraw }
func (Cursor) Kind() Kind     { return KindCursor }
func (Clear) Kind() Kind      { return KindClear }
func (BoardLock) Kind() Kind  { return KindBoardLock }
func (PollCreate) Kind() Kind { return KindPollCreate }
func (PollVote) Kind() Kind   { return KindPollVote }

func (Join) isMessage()       {}
func (Chat) isMessage()       {}
func (Draw) isMessage()       {}
func (Cursor) isMessage()     {}
func (Clear) isMessage()      {}
func (BoardLock) isMessage()  {}
func (PollCreate) isMessage() {}
func (PollVote) isMessage()   {}

func (m Join) Encode() string { return join(KindJoin, m.Name) }

func (m Chat) Encode() string { return join(KindChat, m.User, m.Text) }

func (m Draw) Encode() string {
	return join(KindDraw,
		strconv.Itoa(m.X1), strconv.Itoa(m.Y1),
		strconv.Itoa(m.X2), strconv.Itoa(m.Y2),
		strconv.Itoa(m.RGB),
		strconv.FormatFloat(m.Width, 'f', -1, 64))
}

func (m Cursor) Encode() string {
	return join(KindCursor, m.User, strconv.Itoa(m.X), strconv.Itoa(m.Y))
}

// Encode keeps the trailing separator; clients match on "CLEAR|".
func (Clear) Encode() string { return KindClear.String() + Separator }

func (m BoardLock) Encode() string { return EncodeBoardLock(m.Locked) }

func (m PollCreate) Encode() string {
	return join(KindPollCreate, m.User, m.PollID, m.Question,
		strings.Join(m.Options, ListSeparator))
}

func (m PollVote) Encode() string {
	return join(KindPollVote, m.User, m.PollID, strconv.Itoa(m.Option))
}
