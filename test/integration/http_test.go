package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/Tyrowin/classboard/internal/room"
	"github.com/Tyrowin/classboard/test/testhelpers"
)

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

// TestHealthEndpoint verifies the liveness probe.
func TestHealthEndpoint(t *testing.T) {
	srv := testhelpers.StartServer(t, nil)

	resp, body := get(t, testhelpers.HTTPURL(srv, "/healthz"))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	if body != "Classboard server is running!" {
		t.Errorf("body = %q", body)
	}
}

// TestRoomEndpoint verifies the snapshot tracks live participants.
func TestRoomEndpoint(t *testing.T) {
	srv := testhelpers.StartServer(t, nil)
	ann, bob := joinPair(t, srv, "Ann", "Bob")

	ann.Send(t, "POLL_CREATE|Ann|p1|Lunch?|Pizza;Soup")
	bob.Expect(t, "POLL_CREATE|Ann|p1|Lunch?|Pizza;Soup")
	bob.Send(t, "POLL_VOTE|Bob|p1|0")
	bob.Expect(t, "POLL_RESULTS|p1|1;0")

	_, body := get(t, testhelpers.HTTPURL(srv, "/api/room"))
	var snap room.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	if strings.Join(snap.Participants, ",") != "Ann,Bob" {
		t.Errorf("Participants = %v", snap.Participants)
	}
	if snap.Poll == nil || snap.Poll.Counts[0] != 1 {
		t.Fatalf("Poll = %+v", snap.Poll)
	}
	if snap.Poll.Voters != 1 {
		t.Errorf("Voters = %d, want 1", snap.Poll.Voters)
	}
}

// TestMetricsEndpoint verifies connection and join counters are exported.
func TestMetricsEndpoint(t *testing.T) {
	srv := testhelpers.StartServer(t, nil)
	joinPair(t, srv, "Ann", "Bob")

	resp, body := get(t, testhelpers.HTTPURL(srv, "/metrics"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, want := range []string{
		"classboard_participants 2",
		`classboard_joins_total{role="teacher"} 1`,
		`classboard_joins_total{role="student"} 1`,
		`classboard_connections{transport="tcp"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
