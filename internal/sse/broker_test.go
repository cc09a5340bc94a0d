package sse

import (
	"strings"
	"testing"
	"time"

	"github.com/pathview/inkscan/internal/models"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestRequestStateDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.RequestState("slide_a")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: state.request") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"image":"slide_a"`) {
			t.Errorf("missing image in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestLoadSnapshotDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.LoadSnapshot("slide_a", &models.Snapshot{Zoom: 2, Center: [2]float64{1, 2}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: snapshot.load") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"zoom":2`) {
			t.Errorf("missing snapshot payload in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishStatusDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishStatus("slide_a", models.ImageStatus{Done: true, InkFound: true})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: status.updated") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"done":true`) {
			t.Errorf("missing status payload in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestInventoryUpdatedThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Two rapid updates should yield exactly one inventory.updated.
	b.PublishInventoryUpdated()
	b.PublishInventoryUpdated()

	count := 0
	deadline := time.After(300 * time.Millisecond)
loop:
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				break loop
			}
			if strings.Contains(string(msg), "event: inventory.updated") {
				count++
			}
		case <-deadline:
			break loop
		}
	}
	if count != 1 {
		t.Errorf("inventory.updated count = %d, want 1", count)
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	b.Close()

	// Must not panic or block.
	b.RequestState("slide_a")
	b.PublishInventoryUpdated()
	if b.ClientCount() != 0 {
		t.Errorf("client count after close = %d", b.ClientCount())
	}

	ch := b.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("subscribe after close returned open channel")
	}
}
