package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWindow(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(2, time.Minute)
	l.now = func() time.Time { return now }

	if !l.Allow("steve") || !l.Allow("steve") {
		t.Fatal("first two requests refused")
	}
	if l.Allow("steve") {
		t.Error("third request in window allowed")
	}
	if !l.Allow("alex") {
		t.Error("keys are not independent")
	}
	if got := l.RetryAfter("steve"); got != 61 {
		t.Errorf("RetryAfter = %d, want 61", got)
	}

	now = now.Add(time.Minute)
	if !l.Allow("steve") {
		t.Error("request after window refused")
	}
}

func TestCleanup(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(1, time.Second)
	l.now = func() time.Time { return now }
	l.Allow("a")
	now = now.Add(3 * time.Second)
	l.Allow("b")

	if n := l.Cleanup(); n != 1 {
		t.Errorf("Cleanup removed %d, want 1", n)
	}
	if l.RetryAfter("a") != 0 {
		t.Error("stale key kept")
	}
}

func TestDisabled(t *testing.T) {
	l := New(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !l.Allow("x") {
			t.Fatal("disabled limiter refused")
		}
	}
}
