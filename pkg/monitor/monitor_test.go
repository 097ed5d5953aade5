package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubFanOut(t *testing.T) {
	h := NewHub(4)
	a, b := h.Subscribe(), h.Subscribe()
	defer a.Close()
	defer b.Close()

	h.Publish(Event{Type: TurnCaller, CallID: "CA1", Text: "hello"})

	for _, s := range []*Subscription{a, b} {
		select {
		case e := <-s.C:
			if e.Type != TurnCaller || e.CallID != "CA1" || e.Time.IsZero() {
				t.Fatalf("event = %+v", e)
			}
		case <-time.After(time.Second):
			t.Fatal("no event delivered")
		}
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub(2)
	s := h.Subscribe()
	defer s.Close()

	for range 5 {
		h.Publish(Event{Type: TurnCaller})
	}
	if s.Dropped() != 3 {
		t.Fatalf("Dropped = %d, want 3", s.Dropped())
	}
	if len(s.C) != 2 {
		t.Fatalf("buffered = %d, want 2", len(s.C))
	}
}

func TestSubscriptionClose(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe()
	s.Close()
	s.Close()
	if h.Subscribers() != 0 {
		t.Fatalf("Subscribers = %d, want 0", h.Subscribers())
	}
	if _, ok := <-s.C; ok {
		t.Fatal("channel not closed")
	}
	h.Publish(Event{Type: CallEnded})
}

func TestHandlerStreamsJSON(t *testing.T) {
	h := NewHub(8)
	srv := httptest.NewServer(NewHandler(h, "secret", nil))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=wrong", nil); err == nil {
		t.Fatal("dial with wrong token succeeded")
	} else if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("wrong token response = %v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=secret", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.Publish(Event{Type: TurnAssistant, CallID: "CA7", Text: "Hi there!"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e Event
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if e.Type != TurnAssistant || e.CallID != "CA7" || e.Text != "Hi there!" {
		t.Fatalf("event = %+v", e)
	}
}
