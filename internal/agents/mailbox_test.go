package agents

import (
	"testing"
	"time"
)

func TestMailboxFIFO(t *testing.T) {
	m := NewMailbox()
	m.Send("first")
	m.Send("second")
	m.Send("third")

	for _, want := range []string{"first", "second", "third"} {
		got, ok := m.Receive(100 * time.Millisecond)
		if !ok || got != want {
			t.Errorf("Receive = %q/%v, want %q", got, ok, want)
		}
	}
}

func TestMailboxReceiveTimeout(t *testing.T) {
	m := NewMailbox()

	start := time.Now()
	if _, ok := m.Receive(50 * time.Millisecond); ok {
		t.Error("Receive on empty mailbox returned a message")
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Receive returned after %v, want at least 50ms", elapsed)
	}
}

func TestMailboxReceiveWakesOnSend(t *testing.T) {
	m := NewMailbox()

	go func() {
		time.Sleep(20 * time.Millisecond)
		m.Send("late arrival")
	}()

	got, ok := m.Receive(2 * time.Second)
	if !ok || got != "late arrival" {
		t.Errorf("Receive = %q/%v, want the sent message", got, ok)
	}
}

func TestMailboxDrain(t *testing.T) {
	m := NewMailbox()
	m.Send("a")
	m.Send("b")

	got := m.Drain()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Drain = %v, want [a b]", got)
	}

	// A second drain is empty, not an error.
	if again := m.Drain(); again != nil {
		t.Errorf("second Drain = %v, want nil", again)
	}

	// The mailbox is still usable afterwards.
	m.Send("c")
	if got := m.Drain(); len(got) != 1 || got[0] != "c" {
		t.Errorf("Drain after refill = %v, want [c]", got)
	}
}

func TestMailboxLen(t *testing.T) {
	m := NewMailbox()
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
	m.Send("x")
	m.Send("y")
	if m.Len() != 2 {
		t.Errorf("Len = %d, want 2", m.Len())
	}
}
