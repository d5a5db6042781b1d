package room

import (
	"sort"
	"strconv"
	"strings"
)

const (
	// GuestName replaces a blank requested name.
	GuestName = "Guest"
	// AnonymousName is used when a connection never sent a usable JOIN line.
	AnonymousName = "Anonymous"
)

// Delimiters of the line protocol cannot appear in a display name, or the
// USERLIST and relayed lines would no longer split correctly.
var nameReplacer = strings.NewReplacer("|", "_", ",", "_", ";", "_", "\r", "", "\n", "")

// Identity is the name and role a member was admitted with.
type Identity struct {
	Name    string
	Teacher bool
}

// Join registers m under a unique display name derived from requested and
// returns the name. Joining an already registered member returns its existing
// name.
func (r *Room) Join(m Member, requested string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joinLocked(m, requested).name
}

// Leave removes m and frees its name. It reports the name m held, if any.
func (r *Room) Leave(m Member) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(m)
}

// ActiveNames returns the names of all participants in join order.
func (r *Room) ActiveNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeNamesLocked()
}

// Identity looks up the name and role m was admitted with.
func (r *Room) Identity(m Member) (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.seats[m]
	if !ok {
		return Identity{}, false
	}
	return Identity{Name: s.name, Teacher: s.teacher}, true
}

// Len returns the number of registered participants.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seats)
}

func (r *Room) joinLocked(m Member, requested string) *seat {
	if s, ok := r.seats[m]; ok {
		return s
	}
	name := r.uniqueNameLocked(requested)
	r.nextSeq++
	s := &seat{name: name, seq: r.nextSeq}
	r.seats[m] = s
	r.names[name] = m
	return s
}

func (r *Room) leaveLocked(m Member) (string, bool) {
	s, ok := r.seats[m]
	if !ok {
		return "", false
	}
	delete(r.seats, m)
	delete(r.names, s.name)
	return s.name, true
}

// uniqueNameLocked appends -2, -3, ... to base until the name is free.
func (r *Room) uniqueNameLocked(requested string) string {
	base := normalizeName(requested)
	if _, taken := r.names[base]; !taken {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, taken := r.names[candidate]; !taken {
			return candidate
		}
	}
}

func (r *Room) activeNamesLocked() []string {
	seats := make([]*seat, 0, len(r.seats))
	for _, s := range r.seats {
		seats = append(seats, s)
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].seq < seats[j].seq })

	names := make([]string, len(seats))
	for i, s := range seats {
		names[i] = s.name
	}
	return names
}

func normalizeName(requested string) string {
	name := strings.TrimSpace(nameReplacer.Replace(requested))
	if name == "" {
		return GuestName
	}
	return name
}
