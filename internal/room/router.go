package room

import "github.com/Tyrowin/classboard/internal/protocol"

// BroadcastAll delivers line to every participant and returns how many
// accepted it.
func (r *Room) BroadcastAll(line string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fanOutLocked(line, nil)
}

// BroadcastOthers delivers line to every participant except exclude.
func (r *Room) BroadcastOthers(line string, exclude Member) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fanOutLocked(line, exclude)
}

// fanOutLocked hands line to each member's queue. A member that refuses the
// line is skipped; it is removed by its own disconnect path, not here.
func (r *Room) fanOutLocked(line string, exclude Member) int {
	delivered, dropped := 0, 0
	for m := range r.seats {
		if exclude != nil && m == exclude {
			continue
		}
		if m.Deliver(line) {
			delivered++
		} else {
			dropped++
		}
	}
	r.observer.Broadcast(protocol.KindOf(line), delivered, dropped)
	if dropped > 0 {
		r.logger.Warn("broadcast not delivered to every participant",
			"kind", protocol.KindOf(line).String(),
			"delivered", delivered,
			"dropped", dropped)
	}
	return delivered
}

func (r *Room) sendLocked(m Member, lines ...string) {
	for _, line := range lines {
		if !m.Deliver(line) {
			r.logger.Warn("direct message not delivered", "kind", protocol.KindOf(line).String())
			return
		}
	}
}
