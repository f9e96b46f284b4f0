// ABOUTME: Bounded non-blocking audio hand-off between network reader and consumer
// ABOUTME: Drops the newest chunk when full; reads time out instead of blocking forever
package audio

import (
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultQueueCapacity is the number of chunks held before dropping
	DefaultQueueCapacity = 100
	// DefaultReadTimeout bounds how long Read waits for data
	DefaultReadTimeout = 20 * time.Millisecond
)

// QueueStats counts queue traffic
type QueueStats struct {
	Pushed   int64
	Dropped  int64
	Read     int64 // Chunks handed to the consumer
	Queued   int
	Capacity int
}

// Queue is a fixed-capacity FIFO of audio chunks. Push never blocks.
// Read and Next are meant for a single consumer goroutine; every other
// method is safe from any goroutine.
type Queue struct {
	ch          chan Chunk
	readTimeout time.Duration

	mu        sync.Mutex
	partial   []byte
	gen       uint64 // Bumped by Drain
	eof       chan struct{}
	eofMarked bool
	headTS    int64 // Timestamp of the chunk most recently taken
	tailTS    int64 // Timestamp of the chunk most recently pushed

	closed      atomic.Bool
	pushed      atomic.Int64
	dropped     atomic.Int64
	read        atomic.Int64
	queuedBytes atomic.Int64
}

// NewQueue creates a queue holding at most capacity chunks
func NewQueue(capacity int, readTimeout time.Duration) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &Queue{
		ch:          make(chan Chunk, capacity),
		readTimeout: readTimeout,
		eof:         make(chan struct{}),
	}
}

// Push enqueues c without blocking. It returns false when the queue is
// full (the chunk is dropped) or closed.
func (q *Queue) Push(c Chunk) bool {
	if q.closed.Load() {
		return false
	}

	select {
	case q.ch <- c:
		q.pushed.Add(1)
		q.queuedBytes.Add(int64(len(c.Data)))
		q.mu.Lock()
		q.tailTS = c.Timestamp
		if len(q.ch) <= 1 && len(q.partial) == 0 {
			q.headTS = c.Timestamp
		}
		q.mu.Unlock()
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Read copies queued audio into p. It returns (n, nil) with data,
// (0, nil) when nothing arrived within the read timeout, and (0, io.EOF)
// once the stream has ended and everything queued has been consumed.
// The unread tail of a chunk is kept for the next call.
func (q *Queue) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	q.mu.Lock()
	if len(q.partial) > 0 {
		n := copy(p, q.partial)
		q.partial = q.partial[n:]
		q.queuedBytes.Add(-int64(n))
		q.mu.Unlock()
		return n, nil
	}
	gen := q.gen
	q.mu.Unlock()

	c, ok, err := q.Next(q.readTimeout)
	if err != nil || !ok {
		return 0, err
	}

	n := copy(p, c.Data)
	if n < len(c.Data) {
		q.keepTail(gen, c.Data[n:])
	}
	return n, nil
}

// keepTail stores the unread remainder of a chunk taken while the drain
// generation was gen. A Drain in between means the tail belongs to audio
// that was cleared, so it is discarded.
func (q *Queue) keepTail(gen uint64, tail []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.gen != gen {
		return false
	}
	q.partial = tail
	q.queuedBytes.Add(int64(len(tail)))
	return true
}

// Next returns the next whole chunk. ok is false on timeout; err is io.EOF
// after end-of-stream once the queue is empty.
func (q *Queue) Next(timeout time.Duration) (Chunk, bool, error) {
	select {
	case c := <-q.ch:
		return q.took(c), true, nil
	default:
	}

	q.mu.Lock()
	eof := q.eof
	q.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c := <-q.ch:
		return q.took(c), true, nil
	case <-eof:
		select {
		case c := <-q.ch:
			return q.took(c), true, nil
		default:
			return Chunk{}, false, io.EOF
		}
	case <-timer.C:
		return Chunk{}, false, nil
	}
}

func (q *Queue) took(c Chunk) Chunk {
	q.read.Add(1)
	q.queuedBytes.Add(-int64(len(c.Data)))
	q.mu.Lock()
	q.headTS = c.Timestamp
	q.mu.Unlock()
	return c
}

// Drain discards everything queued without closing the queue
func (q *Queue) Drain() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			q.mu.Lock()
			q.gen++
			q.partial = nil
			q.headTS = q.tailTS
			q.queuedBytes.Store(0)
			q.mu.Unlock()
			return n
		}
	}
}

// MarkEOF signals end-of-stream; readers see io.EOF once queued data is gone
func (q *Queue) MarkEOF() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.eofMarked {
		q.eofMarked = true
		close(q.eof)
	}
}

// Reset clears a previous end-of-stream so the queue can carry a new stream
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.eofMarked {
		q.eofMarked = false
		q.eof = make(chan struct{})
	}
}

// Close tears the queue down for good: later pushes are refused and
// readers get io.EOF.
func (q *Queue) Close() {
	q.closed.Store(true)
	q.Drain()
	q.MarkEOF()
}

// Len returns the number of whole chunks waiting
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the fixed capacity
func (q *Queue) Cap() int { return cap(q.ch) }

// BufferedBytes returns payload bytes not yet read, including a partial chunk
func (q *Queue) BufferedBytes() int { return int(q.queuedBytes.Load()) }

// Span returns the server-time distance between the newest pushed chunk and
// the chunk the consumer is on, or 0 when nothing is buffered.
func (q *Queue) Span() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ch) == 0 && len(q.partial) == 0 {
		return 0
	}
	d := q.tailTS - q.headTS
	if d < 0 {
		return 0
	}
	return time.Duration(d) * time.Microsecond
}

// Stats returns a snapshot of the counters
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Pushed:   q.pushed.Load(),
		Dropped:  q.dropped.Load(),
		Read:     q.read.Load(),
		Queued:   len(q.ch),
		Capacity: cap(q.ch),
	}
}

var _ io.Reader = (*Queue)(nil)
