package pipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jhoneycutt/analyze-keyframes/internal/media"
)

func TestFrameQueue_FIFO(t *testing.T) {
	q := NewFrameQueue(4)
	for i := int64(0); i < 3; i++ {
		if err := q.Push(&media.Keyframe{Number: i}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("len: got %d, want 3", q.Len())
	}
	for want := int64(0); want < 3; want++ {
		frame, ok := q.TryPop()
		if !ok {
			t.Fatalf("TryPop %d: queue empty", want)
		}
		if frame.Number != want {
			t.Errorf("got frame %d, want %d", frame.Number, want)
		}
	}
}

func TestFrameQueue_TryPopEmpty(t *testing.T) {
	q := NewFrameQueue(1)
	if frame, ok := q.TryPop(); ok || frame != nil {
		t.Errorf("got (%v, %v), want (nil, false)", frame, ok)
	}
}

func TestFrameQueue_DefaultCapacity(t *testing.T) {
	if got := NewFrameQueue(0).Cap(); got != DefaultQueueCapacity {
		t.Errorf("got %d, want %d", got, DefaultQueueCapacity)
	}
}

func TestFrameQueue_PushBlocksWhenFull(t *testing.T) {
	q := NewFrameQueue(2)
	_ = q.Push(&media.Keyframe{Number: 0})
	_ = q.Push(&media.Keyframe{Number: 1})

	stalled := 0
	q.onFull = func(int) { stalled++ }

	done := make(chan error, 1)
	go func() {
		done <- q.Push(&media.Keyframe{Number: 2})
	}()

	select {
	case <-done:
		t.Fatal("Push returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	if _, ok := q.TryPop(); !ok {
		t.Fatal("TryPop: queue empty")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Push: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Push did not resume after a slot was freed")
	}

	if q.Len() != 2 {
		t.Errorf("len: got %d, want 2", q.Len())
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if stalled != 1 {
		t.Errorf("onFull calls: got %d, want 1", stalled)
	}
}

func TestFrameQueue_NeverExceedsCapacity(t *testing.T) {
	const (
		capacity = 3
		frames   = 200
	)
	q := NewFrameQueue(capacity)

	go func() {
		for i := int64(0); i < frames; i++ {
			if err := q.Push(&media.Keyframe{Number: i}); err != nil {
				t.Errorf("Push: %v", err)
				return
			}
		}
		q.Close()
	}()

	var got []int64
	for {
		frame, ok := q.Pop()
		if !ok {
			break
		}
		if n := q.Len(); n > capacity {
			t.Fatalf("len %d exceeds capacity %d", n, capacity)
		}
		got = append(got, frame.Number)
		if len(got)%20 == 0 {
			time.Sleep(time.Millisecond)
		}
	}

	if len(got) != frames {
		t.Fatalf("received %d frames, want %d", len(got), frames)
	}
	for i, n := range got {
		if n != int64(i) {
			t.Fatalf("frame %d out of order: got %d", i, n)
		}
	}
	if hw := q.HighWater(); hw > capacity || hw < 1 {
		t.Errorf("high water: got %d, want 1..%d", hw, capacity)
	}
}

func TestFrameQueue_CloseDrainsPendingFrames(t *testing.T) {
	q := NewFrameQueue(10)
	for i := int64(0); i < 5; i++ {
		_ = q.Push(&media.Keyframe{Number: i})
	}
	q.Close()

	var (
		mu    sync.Mutex
		count int
		wg    sync.WaitGroup
	)
	for w := 0; w < 3; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, ok := q.Pop(); !ok {
					return
				}
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count != 5 {
		t.Errorf("drained %d frames, want 5", count)
	}
}

func TestFrameQueue_PushAfterClose(t *testing.T) {
	q := NewFrameQueue(1)
	q.Close()
	if err := q.Push(&media.Keyframe{}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("got %v, want ErrQueueClosed", err)
	}
}

func TestFrameQueue_CloseReleasesBlockedPush(t *testing.T) {
	q := NewFrameQueue(1)
	_ = q.Push(&media.Keyframe{})

	done := make(chan error, 1)
	go func() {
		done <- q.Push(&media.Keyframe{})
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrQueueClosed) {
			t.Errorf("got %v, want ErrQueueClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Push was not released by Close")
	}
}
