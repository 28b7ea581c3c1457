package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker()
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

func TestPublishDelivery(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "export.completed", Data: map[string]string{"filename": "biology.apkg"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: export.completed") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"filename":"biology.apkg"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishDeckEvent(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDeckEvent("created", "biology")
	b.PublishDeckEvent("deleted", "geology")

	want := []string{"event: deck.created", "event: deck.deleted"}
	for _, w := range want {
		select {
		case msg := <-ch:
			if !strings.Contains(string(msg), w) {
				t.Errorf("message %q missing %q", msg, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %q", w)
		}
	}
}

func TestPublishExportCompleted(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishExportCompleted("all.apkg", 7)

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "export.completed") || !strings.Contains(s, `"cards":7`) {
			t.Errorf("unexpected message %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestCloseIsIdempotentAndClosesClients(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()

	b.Close()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("client channel not closed")
	}

	// Post-close operations must not panic or block.
	b.Publish(Event{Type: "deck.updated"})
	b.PublishDeckEvent("updated", "x")
	if n := b.ClientCount(); n != 0 {
		t.Errorf("client count after close = %d", n)
	}
}

func TestServeHTTPStreamsEvents(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(rec, req)
		close(done)
	}()

	// Wait until the handler has subscribed.
	deadline := time.Now().Add(time.Second)
	for b.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.PublishDeckEvent("created", "biology")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if !strings.Contains(body, "event: deck.created") {
		t.Errorf("stream body = %q, want deck.created event", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}
