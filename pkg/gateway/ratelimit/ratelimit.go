package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Config bounds outbound dialing and concurrent media streams.
type Config struct {
	// DialRPS and DialBurst shape POST /calls per client key. Zero disables.
	DialRPS   float64
	DialBurst int

	// MaxActiveCalls caps concurrent media streams process-wide. Zero disables.
	MaxActiveCalls int

	// Operational bounds for the in-memory map (single-process only).
	MaxEntries int
	EntryTTL   time.Duration
}

type Limiter struct {
	cfg Config

	calls chan struct{}

	mu sync.Mutex
	m  map[string]*keyLimiter
}

type keyLimiter struct {
	mu sync.Mutex

	tb tokenBucket

	lastSeen time.Time
}

type tokenBucket struct {
	rps      float64
	capacity float64

	tokens float64
	last   time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * time.Minute
	}
	l := &Limiter{
		cfg: cfg,
		m:   make(map[string]*keyLimiter),
	}
	if cfg.MaxActiveCalls > 0 {
		l.calls = make(chan struct{}, cfg.MaxActiveCalls)
	}
	return l
}

type Permit struct {
	release func()
}

func (p *Permit) Release() {
	if p == nil || p.release == nil {
		return
	}
	p.release()
	p.release = nil
}

type Decision struct {
	Allowed    bool
	RetryAfter int
	Permit     *Permit
}

// AllowDial spends one dial token for key.
func (l *Limiter) AllowDial(key string, now time.Time) Decision {
	if l == nil || l.cfg.DialRPS <= 0 || l.cfg.DialBurst <= 0 {
		return Decision{Allowed: true}
	}
	if key == "" {
		key = "anonymous"
	}

	kl := l.getOrCreate(key, now)
	ok, retryAfter := kl.allowToken(now, l.cfg.DialRPS, l.cfg.DialBurst)
	if !ok {
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}
	return Decision{Allowed: true}
}

// AcquireCall reserves a media stream slot. The permit must be released
// when the stream ends.
func (l *Limiter) AcquireCall() Decision {
	if l == nil || l.calls == nil {
		return Decision{Allowed: true, Permit: &Permit{release: func() {}}}
	}
	select {
	case l.calls <- struct{}{}:
		return Decision{
			Allowed: true,
			Permit:  &Permit{release: func() { <-l.calls }},
		}
	default:
		return Decision{Allowed: false, RetryAfter: 1}
	}
}

func (l *Limiter) getOrCreate(key string, now time.Time) *keyLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if kl, ok := l.m[key]; ok {
		kl.lastSeen = now
		return kl
	}

	if len(l.m) >= l.cfg.MaxEntries {
		l.gcLocked(now)
		// If still too big, drop one arbitrary entry (bounded memory > perfect fairness).
		if len(l.m) >= l.cfg.MaxEntries {
			for k := range l.m {
				delete(l.m, k)
				break
			}
		}
	}

	kl := &keyLimiter{lastSeen: now}
	l.m[key] = kl
	return kl
}

func (l *Limiter) gcLocked(now time.Time) {
	ttl := l.cfg.EntryTTL
	for k, v := range l.m {
		if now.Sub(v.lastSeen) > ttl {
			delete(l.m, k)
		}
	}
}

func (kl *keyLimiter) allowToken(now time.Time, rps float64, burst int) (bool, int) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	capacity := float64(burst)
	if kl.tb.capacity == 0 {
		kl.tb = tokenBucket{
			rps:      rps,
			capacity: capacity,
			tokens:   capacity,
			last:     now,
		}
	}

	elapsed := now.Sub(kl.tb.last).Seconds()
	if elapsed > 0 {
		kl.tb.tokens = math.Min(kl.tb.capacity, kl.tb.tokens+(elapsed*kl.tb.rps))
		kl.tb.last = now
	}

	if kl.tb.tokens >= 1.0 {
		kl.tb.tokens -= 1.0
		return true, 0
	}

	needed := 1.0 - kl.tb.tokens
	retryAfter := int(math.Ceil(needed / kl.tb.rps))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter
}
