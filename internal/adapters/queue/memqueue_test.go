package queue

import (
	"testing"

	"entropyd/internal/domain"
)

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue(4)

	b1 := &domain.Block{Source: "s1", Seq: 1}
	b2 := &domain.Block{Source: "s1", Seq: 2}

	if !q.Enqueue(b1) || !q.Enqueue(b2) {
		t.Fatalf("expected successful enqueue")
	}

	got, ok := q.Dequeue()
	if !ok || got.Seq != 1 {
		t.Fatalf("unexpected first block: %+v", got)
	}

	got, ok = q.Dequeue()
	if !ok || got.Seq != 2 {
		t.Fatalf("unexpected second block: %+v", got)
	}

	if _, ok := q.Dequeue(); ok {
		t.Fatalf("queue should be empty")
	}
	if q.Len() != 0 {
		t.Fatalf("queue should report empty, got %d", q.Len())
	}
}

func TestMemQueueCapacity(t *testing.T) {
	q := NewMemQueue(2)

	blk := &domain.Block{Source: "cap"}

	if !q.Enqueue(blk) || !q.Enqueue(blk) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(blk) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.Dequeue()
	if !q.Enqueue(blk) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
}
