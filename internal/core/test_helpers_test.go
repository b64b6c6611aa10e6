package core

import (
	"testing"
	"time"
)

// mustEvent skips events of other kinds until kind arrives on ch.
func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed waiting for %v", kind)
			}
			if ev != nil && ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("expected event kind %v not received", kind)
			return nil
		}
	}
}
