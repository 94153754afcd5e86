package bus

import (
	"context"
	"testing"
	"time"
)

func closedChan() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

func TestTopicCopyBeforePublishReportsUnset(t *testing.T) {
	topic := NewTopic[int]()
	_, has := topic.Copy()
	if has {
		t.Fatal("expected has=false before any Publish")
	}
}

func TestTopicPublishThenCopy(t *testing.T) {
	topic := NewTopic[int]()
	topic.Publish(42)
	v, has := topic.Copy()
	if !has || v != 42 {
		t.Fatalf("expected (42,true), got (%v,%v)", v, has)
	}
}

func TestTopicCheckIsEdgeTriggered(t *testing.T) {
	topic := NewTopic[string]()
	topic.Publish("a")
	_, v1, updated := topic.Check(0)
	if !updated {
		t.Fatal("expected updated=true on first publish vs version 0")
	}

	_, v2, updated := topic.Check(v1)
	if updated {
		t.Fatal("expected updated=false when lastVersion matches current")
	}
	if v2 != v1 {
		t.Fatalf("expected stable version, got %v then %v", v1, v2)
	}

	topic.Publish("b")
	val, v3, updated := topic.Check(v1)
	if !updated || val != "b" || v3 == v1 {
		t.Fatalf("expected a fresh update after second publish, got val=%v v3=%v updated=%v", val, v3, updated)
	}
}

func TestTopicWaitUnblocksOnPublish(t *testing.T) {
	topic := NewTopic[int]()
	done := make(chan error, 1)
	go func() {
		done <- topic.Wait(context.Background(), func() <-chan struct{} {
			return make(chan struct{}) // never fires; only Publish should unblock
		})
	}()

	time.Sleep(5 * time.Millisecond)
	topic.Publish(1)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock on Publish")
	}
}

func TestTopicWaitUnblocksOnContextCancel(t *testing.T) {
	topic := NewTopic[int]()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- topic.Wait(ctx, func() <-chan struct{} {
			return make(chan struct{})
		})
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected a non-nil context error")
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock on context cancellation")
	}
}

func TestTopicWaitUnblocksOnTimeout(t *testing.T) {
	topic := NewTopic[int]()
	err := topic.Wait(context.Background(), closedChan)
	if err != nil {
		t.Fatalf("expected nil error on timeout path, got %v", err)
	}
}

func TestBusTopicForReusesSameTopicByName(t *testing.T) {
	b := New()
	a := TopicFor[int](b, "foo")
	c := TopicFor[int](b, "foo")
	if a != c {
		t.Fatal("expected the same *Topic instance for repeated calls with the same name")
	}

	a.Publish(7)
	v, _ := c.Copy()
	if v != 7 {
		t.Fatalf("expected both handles to observe the same publish, got %v", v)
	}
}

func TestBusTopicForMismatchedTypePanics(t *testing.T) {
	b := New()
	TopicFor[int](b, "bar")

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on mismatched topic type")
		}
	}()
	TopicFor[string](b, "bar")
}
