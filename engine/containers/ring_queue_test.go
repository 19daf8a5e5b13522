package containers

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/anima-blit/engine/core"
)

func TestRingQueueOrder(t *testing.T) {
	rq, err := NewRingQueue[int](3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		if err := rq.Enqueue(i); err != nil {
			t.Fatal(err)
		}
	}
	if err := rq.Enqueue(4); !errors.Is(err, core.ErrContainerFull) {
		t.Fatalf("Enqueue on full queue error = %v", err)
	}

	if v, _ := rq.Peek(); v != 1 {
		t.Errorf("Peek = %d, want 1", v)
	}
	v, _ := rq.Dequeue()
	if v != 1 {
		t.Errorf("Dequeue = %d, want 1", v)
	}
	// wrap around
	if err := rq.Enqueue(4); err != nil {
		t.Fatal(err)
	}
	for _, want := range []int{2, 3, 4} {
		got, err := rq.Dequeue()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("Dequeue = %d, want %d", got, want)
		}
	}
	if _, err := rq.Dequeue(); !errors.Is(err, core.ErrContainerEmpty) {
		t.Errorf("Dequeue on empty queue error = %v", err)
	}
}

func TestNewRingQueueRejectsInvalidSize(t *testing.T) {
	if _, err := NewRingQueue[int](0); !errors.Is(err, core.ErrInvalidCapacity) {
		t.Errorf("NewRingQueue(0) error = %v", err)
	}
}
