package room

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

// recorder is a Member that keeps every delivered line.
type recorder struct {
	mu     sync.Mutex
	lines  []string
	refuse bool
}

func (r *recorder) Deliver(line string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refuse {
		return false
	}
	r.lines = append(r.lines, line)
	return true
}

// take returns the lines received since the last call.
func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.lines
	r.lines = nil
	return out
}

func assertLines(t *testing.T, who string, got []string, want ...string) {
	t.Helper()
	if len(want) == 0 && len(got) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%s received %q, want %q", who, got, want)
	}
}

func TestJoinResolvesCollidingNamesInArrivalOrder(t *testing.T) {
	r := New()
	var got []string
	for i := 0; i < 3; i++ {
		got = append(got, r.Join(&recorder{}, "Sam"))
	}
	want := []string{"Sam", "Sam-2", "Sam-3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Join names = %v, want %v", got, want)
	}
	if names := r.ActiveNames(); !reflect.DeepEqual(names, want) {
		t.Errorf("ActiveNames() = %v, want %v", names, want)
	}
}

func TestJoinNormalizesRequestedNames(t *testing.T) {
	tests := []struct {
		requested string
		want      string
	}{
		{"", GuestName},
		{"   ", GuestName},
		{"  Ada  ", "Ada"},
		{"a|b,c;d", "a_b_c_d"},
		{"line\nbreak", "linebreak"},
	}
	for _, tt := range tests {
		r := New()
		if got := r.Join(&recorder{}, tt.requested); got != tt.want {
			t.Errorf("Join(%q) = %q, want %q", tt.requested, got, tt.want)
		}
	}
}

func TestJoinBlankNamesCollideOnPlaceholder(t *testing.T) {
	r := New()
	first := r.Join(&recorder{}, "")
	second := r.Join(&recorder{}, " ")
	if first != "Guest" || second != "Guest-2" {
		t.Errorf("got %q and %q, want Guest and Guest-2", first, second)
	}
}

func TestJoinIsIdempotentPerMember(t *testing.T) {
	r := New()
	m := &recorder{}
	first := r.Join(m, "Sam")
	second := r.Join(m, "Other")
	if first != second {
		t.Errorf("second Join returned %q, want %q", second, first)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestLeaveFreesName(t *testing.T) {
	r := New()
	a, b := &recorder{}, &recorder{}
	r.Join(a, "Sam")
	r.Join(b, "Sam")

	name, ok := r.Leave(a)
	if !ok || name != "Sam" {
		t.Fatalf("Leave() = %q, %v; want Sam, true", name, ok)
	}
	if _, ok := r.Leave(a); ok {
		t.Error("second Leave reported success")
	}
	if got := r.Join(&recorder{}, "Sam"); got != "Sam" {
		t.Errorf("rejoin got %q, want Sam", got)
	}
	if names := r.ActiveNames(); !reflect.DeepEqual(names, []string{"Sam-2", "Sam"}) {
		t.Errorf("ActiveNames() = %v", names)
	}
}

func TestConcurrentJoinsAssignUniqueNames(t *testing.T) {
	r := New()
	const n = 100

	var wg sync.WaitGroup
	names := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			names[i] = r.Join(&recorder{}, "Sam")
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, name := range names {
		if seen[name] {
			t.Fatalf("name %q assigned twice", name)
		}
		seen[name] = true
	}
	for i := 2; i <= n; i++ {
		if !seen[fmt.Sprintf("Sam-%d", i)] {
			t.Errorf("missing Sam-%d", i)
		}
	}
}

func TestClaimTeacherOnlyOnce(t *testing.T) {
	r := New()
	if !r.ClaimTeacherIfUnclaimed() {
		t.Fatal("first claim failed")
	}
	if r.ClaimTeacherIfUnclaimed() {
		t.Fatal("second claim succeeded")
	}
}

func TestConcurrentTeacherClaims(t *testing.T) {
	r := New()
	const n = 200

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if r.ClaimTeacherIfUnclaimed() {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if winners != 1 {
		t.Fatalf("%d callers got the teacher role, want 1", winners)
	}
}

func TestSetBoardLockRequiresTeacher(t *testing.T) {
	r := New()
	if r.SetBoardLock(false, true) {
		t.Error("student lock request applied")
	}
	if r.BoardLocked() {
		t.Error("board locked by student request")
	}
	if !r.SetBoardLock(true, true) {
		t.Error("teacher lock request rejected")
	}
	if !r.BoardLocked() {
		t.Error("board not locked after teacher request")
	}
	if r.SetBoardLock(false, false) || !r.BoardLocked() {
		t.Error("student unlock request applied")
	}
}

func TestSnapshot(t *testing.T) {
	r := New()
	r.Admit(&recorder{}, "A")
	r.Admit(&recorder{}, "B")
	r.SetBoardLock(true, true)
	r.CreatePoll(true, "A", "p1", "Q", []string{"x", "y"})
	r.Vote("B", "p1", 0)

	s := r.Snapshot()
	if !reflect.DeepEqual(s.Participants, []string{"A", "B"}) {
		t.Errorf("Participants = %v", s.Participants)
	}
	if !s.TeacherClaimed || !s.BoardLocked {
		t.Errorf("flags = %+v", s)
	}
	if s.Poll == nil || !reflect.DeepEqual(s.Poll.Counts, []int{1, 0}) || s.Poll.Voters != 1 {
		t.Errorf("Poll = %+v", s.Poll)
	}
}
