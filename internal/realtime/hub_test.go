package realtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/lumen-support/backend/internal/models"
)

func newTestClient(code string, role models.Role) *Client {
	return &Client{
		ID:          string(role) + "-" + code,
		SessionCode: code,
		Role:        role,
		send:        make(chan WSMessage, 8),
	}
}

func TestHub_NotifySignalSkipsSender(t *testing.T) {
	h := NewHub(nil, nil, nil)

	host := newTestClient("123456789", models.RoleHost)
	viewer := newTestClient("123456789", models.RoleViewer)
	h.Register(host)
	h.Register(viewer)

	h.NotifySignal("123456789", models.RoleHost)

	select {
	case msg := <-viewer.send:
		if msg.Event != EventSignalAdded {
			t.Fatalf("expected %s, got %s", EventSignalAdded, msg.Event)
		}
	default:
		t.Fatalf("expected viewer to receive nudge")
	}
	select {
	case msg := <-host.send:
		t.Fatalf("expected host to be skipped, got %+v", msg)
	default:
	}
}

func TestHub_SessionUpdateReachesBothRoles(t *testing.T) {
	h := NewHub(nil, nil, nil)

	host := newTestClient("123456789", models.RoleHost)
	viewer := newTestClient("123456789", models.RoleViewer)
	other := newTestClient("987654321", models.RoleHost)
	h.Register(host)
	h.Register(viewer)
	h.Register(other)

	h.NotifySessionUpdate("123456789", "ended")

	for _, c := range []*Client{host, viewer} {
		select {
		case msg := <-c.send:
			if msg.Event != EventSessionUpdate {
				t.Fatalf("expected %s, got %s", EventSessionUpdate, msg.Event)
			}
		default:
			t.Fatalf("expected %s to receive session update", c.Role)
		}
	}
	select {
	case msg := <-other.send:
		t.Fatalf("expected other session untouched, got %+v", msg)
	default:
	}
}

func TestHub_ConcurrentClientsAndNotifies(t *testing.T) {
	h := NewHub(nil, nil, nil)
	const code = "123456789"

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			c := newTestClient(code, models.RoleViewer)
			c.ID = fmt.Sprintf("viewer-%d", i)
			h.Register(c)
			h.Unregister(c)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			h.NotifySignal(code, models.RoleHost)
		}
	}()
	wg.Wait()

	if h.RoomSize(code) != 0 {
		t.Fatalf("expected empty room, got %d", h.RoomSize(code))
	}
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	h := NewHub(nil, nil, nil)

	viewer := newTestClient("123456789", models.RoleViewer)
	h.Register(viewer)
	if h.RoomSize("123456789") != 1 {
		t.Fatalf("expected room size 1, got %d", h.RoomSize("123456789"))
	}

	h.Unregister(viewer)
	if h.RoomSize("123456789") != 0 {
		t.Fatalf("expected empty room, got %d", h.RoomSize("123456789"))
	}

	h.NotifySignal("123456789", models.RoleHost)
	select {
	case msg := <-viewer.send:
		t.Fatalf("expected no delivery after unregister, got %+v", msg)
	default:
	}
}
