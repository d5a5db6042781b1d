package room

import "github.com/Tyrowin/classboard/internal/protocol"

type poll struct {
	id       string
	creator  string
	question string
	options  []string
	counts   []int
	voted    map[string]struct{}
}

func newPoll(creator, id, question string, options []string) *poll {
	return &poll{
		id:       id,
		creator:  creator,
		question: question,
		options:  append([]string(nil), options...),
		counts:   make([]int, len(options)),
		voted:    make(map[string]struct{}),
	}
}

func (p *poll) vote(voter, pollID string, option int) bool {
	if p.id != pollID {
		return false
	}
	if option < 0 || option >= len(p.counts) {
		return false
	}
	if _, dup := p.voted[voter]; dup {
		return false
	}
	p.voted[voter] = struct{}{}
	p.counts[option]++
	return true
}

func (p *poll) snapshot() PollSnapshot {
	return PollSnapshot{
		ID:       p.id,
		Creator:  p.creator,
		Question: p.question,
		Options:  append([]string(nil), p.options...),
		Counts:   append([]int(nil), p.counts...),
		Voters:   len(p.voted),
	}
}

// PollSnapshot is a copy of a poll's definition and tallies.
type PollSnapshot struct {
	ID       string   `json:"id"`
	Creator  string   `json:"creator"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Counts   []int    `json:"counts"`
	Voters   int      `json:"voters"`
}

// TallyLine renders the POLL_RESULTS line for the snapshot.
func (p PollSnapshot) TallyLine() string {
	return protocol.EncodePollResults(p.ID, p.Counts)
}

// AnnounceLine renders the POLL_CREATE line for the snapshot.
func (p PollSnapshot) AnnounceLine() string {
	return protocol.PollCreate{
		User:     p.Creator,
		PollID:   p.ID,
		Question: p.Question,
		Options:  p.Options,
	}.Encode()
}

// CreatePoll replaces the active poll when requested by a teacher. The previous
// poll and its tallies are discarded. Empty option lists are rejected.
func (r *Room) CreatePoll(requesterIsTeacher bool, creator, id, question string, options []string) (PollSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createPollLocked(requesterIsTeacher, creator, id, question, options)
}

// Vote records one vote by voter for option of poll pollID. It reports false
// and changes nothing when there is no active poll, pollID is stale, option is
// out of range, or voter has already voted in this poll.
func (r *Room) Vote(voter, pollID string, option int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.voteLocked(voter, pollID, option)
	return ok
}

// ActivePoll returns the active poll, if any.
func (r *Room) ActivePoll() (PollSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.poll == nil {
		return PollSnapshot{}, false
	}
	return r.poll.snapshot(), true
}

func (r *Room) createPollLocked(requesterIsTeacher bool, creator, id, question string, options []string) (PollSnapshot, bool) {
	if !requesterIsTeacher || id == "" || len(options) == 0 {
		return PollSnapshot{}, false
	}
	r.poll = newPoll(creator, id, question, options)
	r.observer.PollCreated()
	return r.poll.snapshot(), true
}

func (r *Room) voteLocked(voter, pollID string, option int) (PollSnapshot, bool) {
	accepted := r.poll != nil && r.poll.vote(voter, pollID, option)
	r.observer.VoteCast(accepted)
	if !accepted {
		return PollSnapshot{}, false
	}
	return r.poll.snapshot(), true
}
