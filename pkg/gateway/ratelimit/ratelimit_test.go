package ratelimit

import (
	"testing"
	"time"
)

func TestAcquireCall_EnforcesConcurrency(t *testing.T) {
	l := New(Config{MaxActiveCalls: 1})

	first := l.AcquireCall()
	if !first.Allowed || first.Permit == nil {
		t.Fatalf("first allowed=%v permit=%v", first.Allowed, first.Permit)
	}

	second := l.AcquireCall()
	if second.Allowed {
		t.Fatalf("second should be denied")
	}

	first.Permit.Release()
	first.Permit.Release() // second release is a no-op

	third := l.AcquireCall()
	if !third.Allowed {
		t.Fatalf("third should be allowed after release")
	}
	fourth := l.AcquireCall()
	if fourth.Allowed {
		t.Fatalf("double release must not free an extra slot")
	}
}

func TestAcquireCall_UnlimitedWhenZero(t *testing.T) {
	l := New(Config{})
	for i := 0; i < 100; i++ {
		d := l.AcquireCall()
		if !d.Allowed || d.Permit == nil {
			t.Fatalf("call %d denied", i)
		}
	}
}

func TestAllowDial_TokenBucket(t *testing.T) {
	l := New(Config{DialRPS: 1, DialBurst: 2})
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 2; i++ {
		if d := l.AllowDial("1.2.3.4", now); !d.Allowed {
			t.Fatalf("dial %d denied within burst", i)
		}
	}
	d := l.AllowDial("1.2.3.4", now)
	if d.Allowed {
		t.Fatalf("third dial should be denied")
	}
	if d.RetryAfter != 1 {
		t.Fatalf("RetryAfter=%d, want 1", d.RetryAfter)
	}

	if d := l.AllowDial("5.6.7.8", now); !d.Allowed {
		t.Fatalf("other key should have its own bucket")
	}

	if d := l.AllowDial("1.2.3.4", now.Add(1100*time.Millisecond)); !d.Allowed {
		t.Fatalf("dial should be allowed after refill")
	}
}

func TestAllowDial_BoundsEntries(t *testing.T) {
	l := New(Config{DialRPS: 1, DialBurst: 1, MaxEntries: 2, EntryTTL: time.Minute})
	now := time.Unix(1_700_000_000, 0)

	l.AllowDial("a", now)
	l.AllowDial("b", now)
	l.AllowDial("c", now.Add(2*time.Minute))

	l.mu.Lock()
	n := len(l.m)
	l.mu.Unlock()
	if n > 2 {
		t.Fatalf("entries=%d, want <= 2", n)
	}
}

func TestNilLimiterAllows(t *testing.T) {
	var l *Limiter
	if d := l.AllowDial("x", time.Now()); !d.Allowed {
		t.Fatalf("nil limiter should allow dial")
	}
	if d := l.AcquireCall(); !d.Allowed {
		t.Fatalf("nil limiter should allow call")
	}
}
