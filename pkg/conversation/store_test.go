package conversation_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/haivivi/voicebridge/pkg/conversation"
)

func TestGetOrCreateIdempotent(t *testing.T) {
	s := conversation.NewStore()

	first := s.GetOrCreate("CA1")
	if first.CallID != "CA1" {
		t.Fatalf("CallID = %q, want CA1", first.CallID)
	}
	if len(first.Turns) != 0 {
		t.Fatalf("new session has %d turns, want 0", len(first.Turns))
	}

	second := s.GetOrCreate("CA1")
	if len(second.Turns) != 0 || !second.StartedAt.Equal(first.StartedAt) {
		t.Fatalf("GetOrCreate not idempotent: %+v vs %+v", first, second)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestAppendTurnUnknownCall(t *testing.T) {
	s := conversation.NewStore()
	if s.AppendTurn("nope", conversation.RoleCaller, "hello") {
		t.Fatal("AppendTurn on unknown call returned true")
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
	if got := s.HistoryWindow("nope", 5); len(got) != 0 {
		t.Fatalf("HistoryWindow = %v, want empty", got)
	}
}

func TestHistoryWindow(t *testing.T) {
	s := conversation.NewStore()
	s.GetOrCreate("CA1")
	for i := range 7 {
		role := conversation.RoleCaller
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		s.AppendTurn("CA1", role, fmt.Sprintf("t%d", i))
	}

	tests := []struct {
		n    int
		want []string
	}{
		{0, nil},
		{-1, nil},
		{1, []string{"t6"}},
		{3, []string{"t4", "t5", "t6"}},
		{7, []string{"t0", "t1", "t2", "t3", "t4", "t5", "t6"}},
		{100, []string{"t0", "t1", "t2", "t3", "t4", "t5", "t6"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			got := s.HistoryWindow("CA1", tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, turn := range got {
				if turn.Text != tt.want[i] {
					t.Errorf("[%d] = %q, want %q", i, turn.Text, tt.want[i])
				}
			}
		})
	}
}

func TestHistoryWindowIsCopy(t *testing.T) {
	s := conversation.NewStore()
	s.GetOrCreate("CA1")
	s.AppendTurn("CA1", conversation.RoleCaller, "hello")

	got := s.HistoryWindow("CA1", 1)
	got[0].Text = "mutated"

	if again := s.HistoryWindow("CA1", 1); again[0].Text != "hello" {
		t.Fatalf("store mutated through window: %q", again[0].Text)
	}
}

func TestDrop(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := conversation.NewStore(conversation.WithClock(func() time.Time { return base }))
	s.GetOrCreate("CA1")
	s.AppendTurn("CA1", conversation.RoleCaller, "bye")
	s.SetContext("CA1", conversation.ContextTone, "positive")

	final, ok := s.Drop("CA1")
	if !ok {
		t.Fatal("Drop returned false")
	}
	if len(final.Turns) != 1 || final.Turns[0].Text != "bye" {
		t.Fatalf("final turns = %+v", final.Turns)
	}
	if final.Context[conversation.ContextTone] != "positive" {
		t.Fatalf("final context = %v", final.Context)
	}
	if !final.Turns[0].CreatedAt.Equal(base) {
		t.Fatalf("CreatedAt = %v, want %v", final.Turns[0].CreatedAt, base)
	}

	if _, ok := s.Session("CA1"); ok {
		t.Fatal("session still present after Drop")
	}
	if _, ok := s.Drop("CA1"); ok {
		t.Fatal("second Drop returned true")
	}
	if s.AppendTurn("CA1", conversation.RoleCaller, "late") {
		t.Fatal("AppendTurn after Drop returned true")
	}
}

func TestConcurrentCalls(t *testing.T) {
	s := conversation.NewStore()
	const calls, turns = 16, 50

	var wg sync.WaitGroup
	for c := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("CA%d", c)
			s.GetOrCreate(id)
			for i := range turns {
				s.AppendTurn(id, conversation.RoleCaller, fmt.Sprint(i))
			}
		}()
	}
	wg.Wait()

	if s.Len() != calls {
		t.Fatalf("Len = %d, want %d", s.Len(), calls)
	}
	for c := range calls {
		id := fmt.Sprintf("CA%d", c)
		got := s.HistoryWindow(id, turns)
		if len(got) != turns {
			t.Fatalf("%s has %d turns, want %d", id, len(got), turns)
		}
		for i, turn := range got {
			if turn.Text != fmt.Sprint(i) {
				t.Fatalf("%s turn %d = %q out of order", id, i, turn.Text)
			}
		}
	}
}
