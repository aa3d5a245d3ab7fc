package transport

import "sync"

// Queue buffers one topic's payloads between drains. Pushes come from the
// paho callback goroutine, drains from the tick loop.
type Queue struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (q *Queue) push(payload []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payloads = append(q.payloads, payload)
}

// Drain returns everything buffered since the previous call, oldest first.
// It never blocks and returns nil when the topic was quiet.
func (q *Queue) Drain() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.payloads
	q.payloads = nil
	return out
}
