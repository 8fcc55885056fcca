package stackcpu

import "sync"

// mailbox is the mutex-guarded FIFO every interrupt, hardware or software,
// passes through before the dispatch loop sees it (spec §4.2 Interrupts).
type mailbox struct {
	mu    sync.Mutex
	codes []uint32
}

func newMailbox() *mailbox {
	return &mailbox{}
}

// enqueue appends code to the back of the queue. It never blocks and never
// fails: the queue is unbounded, matching the original's linked-list mailbox.
func (m *mailbox) enqueue(code uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.codes = append(m.codes, code)
}

// dequeue removes and returns the oldest queued code, if any.
func (m *mailbox) dequeue() (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.codes) == 0 {
		return 0, false
	}

	code := m.codes[0]
	m.codes = m.codes[1:]

	return code, true
}

// reset empties the queue, called on device Reset.
func (m *mailbox) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.codes = nil
}
