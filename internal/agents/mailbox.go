// Package agents implements the supervised agent pair: a primary loop that
// produces output on a fixed cadence and a critic loop that reviews it, wired
// together through one-directional mailboxes.
package agents

import (
	"sync"
	"time"
)

// Mailbox is an unbounded FIFO message queue for inter-agent communication.
// Senders never block; the reader can wait with a timeout or drain everything
// at once.
type Mailbox struct {
	mu   sync.Mutex
	msgs []string
	wake chan struct{}
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{wake: make(chan struct{}, 1)}
}

// Send appends a message. It never blocks.
func (m *Mailbox) Send(msg string) {
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Receive returns the oldest message, waiting up to timeout for one to
// arrive. The second return is false when the timeout elapses empty.
func (m *Mailbox) Receive(timeout time.Duration) (string, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if msg, ok := m.pop(); ok {
			return msg, true
		}
		select {
		case <-m.wake:
		case <-timer.C:
			// Last look: a send may have raced the timer.
			return m.pop()
		}
	}
}

// Drain removes and returns all queued messages in send order. An empty
// mailbox yields nil.
func (m *Mailbox) Drain() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.msgs) == 0 {
		return nil
	}
	out := m.msgs
	m.msgs = nil
	return out
}

// Len returns the number of queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

func (m *Mailbox) pop() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.msgs) == 0 {
		return "", false
	}
	msg := m.msgs[0]
	m.msgs = m.msgs[1:]
	return msg, true
}
