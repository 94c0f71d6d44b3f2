package lifecycle

import (
	"errors"
	"sync/atomic"
)

// ErrDraining is returned to new work once shutdown has begun.
var ErrDraining = errors.New("server is draining")

// Lifecycle is the process state shared across handlers. Once draining,
// readiness fails and new media streams and outbound calls are refused while
// calls already in progress run to completion.
type Lifecycle struct {
	draining atomic.Bool
}

func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}

// Admit reports ErrDraining when new work must be refused.
func (l *Lifecycle) Admit() error {
	if l.IsDraining() {
		return ErrDraining
	}
	return nil
}
