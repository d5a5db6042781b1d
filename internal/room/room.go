// Package room holds the shared state of a Classboard session: the registry of
// connected participants, the teacher and board-lock flags, and the active
// poll. All of it lives behind a single mutex so that teacher uniqueness, name
// uniqueness and one-vote-per-name hold together, and so that every room-wide
// broadcast is delivered to all participants in the same order.
package room

import (
	"log/slog"
	"sync"

	"github.com/Tyrowin/classboard/internal/protocol"
)

// Member is a connected participant as seen by the room. Deliver is called
// with the room lock held and must not block or call back into the room; it
// reports whether the line was queued.
type Member interface {
	Deliver(line string) bool
}

// Observer receives notifications about room activity. Calls are made with the
// room lock held.
type Observer interface {
	MemberJoined(teacher bool)
	MemberLeft()
	Broadcast(kind protocol.Kind, delivered, dropped int)
	PollCreated()
	VoteCast(accepted bool)
}

type nopObserver struct{}

func (nopObserver) MemberJoined(bool)                 {}
func (nopObserver) MemberLeft()                       {}
func (nopObserver) Broadcast(protocol.Kind, int, int) {}
func (nopObserver) PollCreated()                      {}
func (nopObserver) VoteCast(bool)                     {}

type seat struct {
	name    string
	teacher bool
	seq     uint64
}

// Room is the single in-memory classroom. The zero value is not usable; call
// New.
type Room struct {
	mu      sync.Mutex
	seats   map[Member]*seat
	names   map[string]Member
	nextSeq uint64

	teacherClaimed bool
	boardLocked    bool
	poll           *poll

	enforceLock bool
	logger      *slog.Logger
	observer    Observer
}

// Option configures a Room.
type Option func(*Room)

// WithLogger sets the logger used for join, leave and moderation events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Room) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver registers an Observer, typically the metrics collector.
func WithObserver(o Observer) Option {
	return func(r *Room) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithBoardLockEnforcement makes the room drop DRAW lines from students while
// the board is locked.
func WithBoardLockEnforcement(enforce bool) Option {
	return func(r *Room) {
		r.enforceLock = enforce
	}
}

// New creates an empty room with no teacher, an unlocked board and no poll.
func New(opts ...Option) *Room {
	r := &Room{
		seats:    make(map[Member]*seat),
		names:    make(map[string]Member),
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot is a point-in-time view of the room.
type Snapshot struct {
	Participants   []string      `json:"participants"`
	TeacherClaimed bool          `json:"teacherClaimed"`
	BoardLocked    bool          `json:"boardLocked"`
	Poll           *PollSnapshot `json:"poll,omitempty"`
}

// Snapshot returns the current participants, flags and active poll.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		Participants:   r.activeNamesLocked(),
		TeacherClaimed: r.teacherClaimed,
		BoardLocked:    r.boardLocked,
	}
	if r.poll != nil {
		p := r.poll.snapshot()
		s.Poll = &p
	}
	return s
}
