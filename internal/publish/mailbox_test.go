package publish

import (
	"testing"
	"time"
)

func TestMailbox_LatestOnly(t *testing.T) {
	m := NewMailbox()

	if _, ok := m.Latest(); ok {
		t.Fatal("new mailbox should be empty")
	}

	m.Publish(Frame{Width: 1})
	m.Publish(Frame{Width: 2})
	m.Publish(Frame{Width: 3})

	got, ok := m.Latest()
	if !ok {
		t.Fatal("Latest() should hold a frame after Publish")
	}
	if got.Width != 3 {
		t.Errorf("Latest().Width = %d, want 3", got.Width)
	}
	if got.Seq != 3 {
		t.Errorf("Latest().Seq = %d, want 3", got.Seq)
	}
}

func TestMailbox_SubscribeCoalesces(t *testing.T) {
	m := NewMailbox()
	ch, cancel := m.Subscribe()
	defer cancel()

	for i := 0; i < 10; i++ {
		m.Publish(Frame{})
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("subscriber was not signalled")
	}

	select {
	case <-ch:
		t.Error("signals should coalesce into one pending wakeup")
	default:
	}
}

func TestMailbox_PublishDoesNotBlock(t *testing.T) {
	m := NewMailbox()
	_, cancel := m.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			m.Publish(Frame{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on an idle subscriber")
	}
}

func TestMailbox_Unsubscribe(t *testing.T) {
	m := NewMailbox()
	ch, cancel := m.Subscribe()
	cancel()

	m.Publish(Frame{})

	select {
	case <-ch:
		t.Error("unsubscribed channel should not be signalled")
	default:
	}
}

func TestMailbox_Clear(t *testing.T) {
	m := NewMailbox()
	m.Publish(Frame{Width: 1})
	m.Clear()

	if _, ok := m.Latest(); ok {
		t.Error("Latest() should be empty after Clear")
	}
}
