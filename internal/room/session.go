package room

import (
	"github.com/Tyrowin/classboard/internal/protocol"
)

// Admit registers m, hands out a role and sends the joining member its
// identity, the board lock state and any active poll. Everyone, m included,
// then gets the join announcement and the new participant list. Admitting a
// member twice returns its original identity without further effects.
func (r *Room) Admit(m Member, requested string) Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.seats[m]; ok {
		return Identity{Name: s.name, Teacher: s.teacher}
	}

	s := r.joinLocked(m, requested)
	s.teacher = r.claimTeacherLocked()

	r.sendLocked(m,
		protocol.EncodeUsername(s.name),
		protocol.EncodeRole(s.teacher),
		protocol.EncodeBoardLock(r.boardLocked))
	if r.poll != nil {
		p := r.poll.snapshot()
		r.sendLocked(m, p.AnnounceLine(), p.TallyLine())
	}

	r.fanOutLocked(protocol.EncodeServerChat(s.name+" joined the session."), nil)
	r.fanOutLocked(protocol.EncodeUserList(r.activeNamesLocked()), nil)
	r.observer.MemberJoined(s.teacher)

	r.logger.Info("participant joined",
		"user", s.name,
		"teacher", s.teacher,
		"participants", len(r.seats))
	return Identity{Name: s.name, Teacher: s.teacher}
}

// Depart removes m and tells the remaining participants. It reports false if m
// was not in the room, in which case nothing is sent.
func (r *Room) Depart(m Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.leaveLocked(m)
	if !ok {
		return false
	}
	r.fanOutLocked(protocol.EncodeServerChat(name+" left the session."), nil)
	r.fanOutLocked(protocol.EncodeUserList(r.activeNamesLocked()), nil)
	r.observer.MemberLeft()

	r.logger.Info("participant left", "user", name, "participants", len(r.seats))
	return true
}

// Handle applies one inbound message from m and reports whether it had any
// effect. Messages from members that were never admitted, unauthorized
// moderation requests, stale or duplicate votes and repeated JOINs have none.
//
// Name fields supplied by the client are replaced with the name m was
// admitted under.
func (r *Room) Handle(m Member, msg protocol.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.seats[m]
	if !ok {
		return false
	}

	switch msg := msg.(type) {
	case protocol.Join:
		return false

	case protocol.Chat:
		msg.User = s.name
		r.fanOutLocked(msg.Encode(), nil)
		return true

	case protocol.Draw:
		if r.enforceLock && r.boardLocked && !s.teacher {
			return false
		}
		r.fanOutLocked(msg.Encode(), m)
		return true

	case protocol.Cursor:
		msg.User = s.name
		r.fanOutLocked(msg.Encode(), m)
		return true

	case protocol.Clear:
		if !s.teacher {
			return false
		}
		r.fanOutLocked(msg.Encode(), m)
		return true

	case protocol.BoardLock:
		if !r.setBoardLockLocked(s.teacher, msg.Locked) {
			return false
		}
		state := "unlocked"
		if msg.Locked {
			state = "locked"
		}
		r.fanOutLocked(protocol.EncodeBoardLock(msg.Locked), nil)
		r.fanOutLocked(protocol.EncodeServerChat("Board "+state+" by teacher."), nil)
		r.logger.Info("board lock changed", "user", s.name, "locked", msg.Locked)
		return true

	case protocol.PollCreate:
		p, ok := r.createPollLocked(s.teacher, s.name, msg.PollID, msg.Question, msg.Options)
		if !ok {
			return false
		}
		r.fanOutLocked(p.AnnounceLine(), nil)
		r.logger.Info("poll created", "user", s.name, "poll", p.ID, "options", len(p.Options))
		return true

	case protocol.PollVote:
		p, ok := r.voteLocked(s.name, msg.PollID, msg.Option)
		if !ok {
			return false
		}
		r.fanOutLocked(p.TallyLine(), nil)
		return true
	}

	r.logger.Debug("unhandled message kind", "kind", msg.Kind().String())
	return false
}
