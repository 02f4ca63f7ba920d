package containers

import (
	"errors"
	"testing"
)

func TestRingQueueFIFOOrder(t *testing.T) {
	q := NewRingQueue[int](4)
	for i := 0; i < 4; i++ {
		if err := q.Enqueue(i); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	for i := 0; i < 4; i++ {
		value, err := q.Dequeue()
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if value != i {
			t.Errorf("dequeued %d, want %d", value, i)
		}
	}
}

func TestRingQueueFullAndEmpty(t *testing.T) {
	q := NewRingQueue[string](2)
	if _, err := q.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("dequeue on empty queue: %v", err)
	}

	q.Enqueue("a")
	q.Enqueue("b")
	if err := q.Enqueue("c"); !errors.Is(err, ErrQueueFull) {
		t.Errorf("enqueue on full queue: %v", err)
	}
}

func TestRingQueueWrapsAround(t *testing.T) {
	q := NewRingQueue[int](3)
	for round := 0; round < 5; round++ {
		q.Enqueue(round)
		q.Enqueue(round + 100)
		a, _ := q.Dequeue()
		b, _ := q.Dequeue()
		if a != round || b != round+100 {
			t.Fatalf("round %d: got %d, %d", round, a, b)
		}
	}
	if !q.IsEmpty() {
		t.Error("queue should be empty after balanced rounds")
	}
}

func TestRingQueuePeekDoesNotRemove(t *testing.T) {
	q := NewRingQueue[int](2)
	q.Enqueue(7)
	value, err := q.Peek()
	if err != nil || value != 7 {
		t.Fatalf("peek = %d, %v", value, err)
	}
	if q.Len() != 1 {
		t.Errorf("peek consumed the element, len = %d", q.Len())
	}
}
