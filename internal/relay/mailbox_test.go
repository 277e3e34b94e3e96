package relay

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lumen-support/backend/internal/models"
)

func testSignal(from models.Role, typ models.SignalType, ts int64) models.Signal {
	return models.Signal{From: from, Type: typ, Data: json.RawMessage(`{}`), Timestamp: ts}
}

func TestMailbox_RoleIsolation(t *testing.T) {
	clk := newFakeClock()
	r := NewRegistry(Config{TTL: 10 * time.Minute}, clk.Now, nil)
	m := NewMailbox(r, clk.Now)

	s, err := r.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := m.Add(s.Code, testSignal(models.RoleHost, models.SignalOffer, 0)); err != nil {
		t.Fatalf("add host signal: %v", err)
	}
	if _, err := m.Add(s.Code, testSignal(models.RoleViewer, models.SignalAnswer, 0)); err != nil {
		t.Fatalf("add viewer signal: %v", err)
	}

	forViewer, err := m.Signals(s.Code, models.RoleViewer, 0)
	if err != nil {
		t.Fatalf("viewer read: %v", err)
	}
	if len(forViewer) != 1 || forViewer[0].From != models.RoleHost {
		t.Fatalf("expected viewer to read only host signals, got %+v", forViewer)
	}

	forHost, err := m.Signals(s.Code, models.RoleHost, 0)
	if err != nil {
		t.Fatalf("host read: %v", err)
	}
	if len(forHost) != 1 || forHost[0].From != models.RoleViewer {
		t.Fatalf("expected host to read only viewer signals, got %+v", forHost)
	}
}

func TestMailbox_CursorFiltersStrictlyAfter(t *testing.T) {
	clk := newFakeClock()
	r := NewRegistry(Config{TTL: 10 * time.Minute}, clk.Now, nil)
	m := NewMailbox(r, clk.Now)

	s, err := r.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, ts := range []int64{100, 200, 300} {
		if _, err := m.Add(s.Code, testSignal(models.RoleHost, models.SignalCandidate, ts)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	got, err := m.Signals(s.Code, models.RoleViewer, 200)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].Timestamp != 300 {
		t.Fatalf("expected only ts 300 past cursor 200, got %+v", got)
	}

	all, err := m.Signals(s.Code, models.RoleViewer, 0)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected full stream for cursor 0, got %d", len(all))
	}
}

func TestMailbox_EqualTimestampsKeepInsertionOrder(t *testing.T) {
	clk := newFakeClock()
	r := NewRegistry(Config{TTL: 10 * time.Minute}, clk.Now, nil)
	m := NewMailbox(r, clk.Now)

	s, err := r.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first := models.Signal{From: models.RoleHost, Type: models.SignalCandidate, Data: json.RawMessage(`{"n":1}`), Timestamp: 500}
	second := models.Signal{From: models.RoleHost, Type: models.SignalCandidate, Data: json.RawMessage(`{"n":2}`), Timestamp: 500}
	if _, err := m.Add(s.Code, first); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.Add(s.Code, second); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := m.Signals(s.Code, models.RoleViewer, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(got))
	}
	if string(got[0].Data) != `{"n":1}` || string(got[1].Data) != `{"n":2}` {
		t.Fatalf("expected insertion order for equal timestamps, got %s then %s", got[0].Data, got[1].Data)
	}
}

func TestMailbox_ServerTimestampsAreMonotonic(t *testing.T) {
	clk := newFakeClock()
	r := NewRegistry(Config{TTL: 10 * time.Minute}, clk.Now, nil)
	m := NewMailbox(r, clk.Now)

	s, err := r.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The clock is frozen, so both signals land in the same millisecond.
	a, err := m.Add(s.Code, testSignal(models.RoleHost, models.SignalCandidate, 0))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	b, err := m.Add(s.Code, testSignal(models.RoleHost, models.SignalCandidate, 0))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if a.Timestamp == 0 || b.Timestamp == 0 {
		t.Fatalf("expected server-assigned timestamps, got %d and %d", a.Timestamp, b.Timestamp)
	}
	if b.Timestamp <= a.Timestamp {
		t.Fatalf("expected strictly increasing timestamps, got %d then %d", a.Timestamp, b.Timestamp)
	}

	// Polling with the first timestamp as cursor must return only the second.
	got, err := m.Signals(s.Code, models.RoleViewer, a.Timestamp)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].Timestamp != b.Timestamp {
		t.Fatalf("expected exactly the second signal, got %+v", got)
	}
}
