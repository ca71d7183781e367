package pipeline

import (
	"errors"
	"sync"

	"github.com/jhoneycutt/analyze-keyframes/internal/media"
)

// DefaultQueueCapacity is the number of decoded keyframes that may wait for
// a worker before the reader stalls (MaxUnprocessedFrameCount).
const DefaultQueueCapacity = 100

// ErrQueueClosed is returned by Push after Close.
var ErrQueueClosed = errors.New("pending frame queue is closed")

// FrameQueue is a bounded FIFO of decoded keyframes waiting for a worker.
//
// Push blocks while the queue holds capacity frames, so a fast reader
// stalls instead of buffering without bound; frames are never dropped.
// Pop blocks while the queue is empty and returns false only once the
// queue is closed and fully drained.
type FrameQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	frames    []*media.Keyframe
	capacity  int
	closed    bool
	highWater int

	// onFull is called with the lock held each time Push has to wait. It
	// must not call back into the queue.
	onFull func(length int)
}

// NewFrameQueue creates a queue holding at most capacity frames.
// A capacity below 1 uses DefaultQueueCapacity.
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	q := &FrameQueue{
		frames:   make([]*media.Keyframe, 0, capacity),
		capacity: capacity,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Push appends frame to the tail, waiting for room if the queue is full.
// Ownership of frame passes to the queue.
func (q *FrameQueue) Push(frame *media.Keyframe) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) >= q.capacity && !q.closed && q.onFull != nil {
		q.onFull(len(q.frames))
	}
	for len(q.frames) >= q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return ErrQueueClosed
	}

	q.frames = append(q.frames, frame)
	if len(q.frames) > q.highWater {
		q.highWater = len(q.frames)
	}
	q.notEmpty.Signal()
	return nil
}

// TryPop removes and returns the head without waiting. The second result is
// false when the queue is empty.
func (q *FrameQueue) TryPop() (*media.Keyframe, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Pop removes and returns the head, waiting for a frame if the queue is
// empty. It returns false once the queue is closed and empty.
func (q *FrameQueue) Pop() (*media.Keyframe, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.frames) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	return q.popLocked()
}

func (q *FrameQueue) popLocked() (*media.Keyframe, bool) {
	if len(q.frames) == 0 {
		return nil, false
	}
	frame := q.frames[0]
	q.frames[0] = nil
	q.frames = q.frames[1:]
	q.notFull.Signal()
	return frame, true
}

// Len returns the number of frames waiting.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Cap returns the queue capacity.
func (q *FrameQueue) Cap() int {
	return q.capacity
}

// HighWater returns the largest length the queue has reached.
func (q *FrameQueue) HighWater() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.highWater
}

// Close marks the end of input. Frames already queued are still handed out
// by Pop; blocked Push calls return ErrQueueClosed.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}
