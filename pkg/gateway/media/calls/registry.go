// Package calls tracks live calls by call SID so the status callback,
// hangup and shutdown paths can reach them.
package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

type Handle struct {
	StreamSID string
	Cancel    func()
}

type Info struct {
	CallSID   string
	StreamSID string
	StartedAt time.Time
}

type Registry struct {
	mu    sync.Mutex
	calls map[string]*trackedCall
	wg    sync.WaitGroup
	now   func() time.Time
}

type trackedCall struct {
	handle  Handle
	started time.Time
	once    sync.Once
}

func NewRegistry() *Registry {
	return &Registry{
		calls: make(map[string]*trackedCall),
		now:   time.Now,
	}
}

// Register adds a call. Registering an SID that is already live replaces and
// cancels the older entry.
func (r *Registry) Register(callSID string, h Handle) (unregister func()) {
	if r == nil {
		return func() {}
	}

	r.mu.Lock()
	if r.calls == nil {
		r.calls = make(map[string]*trackedCall)
	}
	if r.now == nil {
		r.now = time.Now
	}
	entry := &trackedCall{handle: h, started: r.now()}
	old := r.calls[callSID]
	r.calls[callSID] = entry
	r.wg.Add(1)
	r.mu.Unlock()

	if old != nil {
		if old.handle.Cancel != nil {
			old.handle.Cancel()
		}
		r.unregister(callSID, old)
	}

	return func() { r.unregister(callSID, entry) }
}

func (r *Registry) unregister(callSID string, entry *trackedCall) {
	if r == nil || entry == nil {
		return
	}
	entry.once.Do(func() {
		r.mu.Lock()
		if r.calls != nil && r.calls[callSID] == entry {
			delete(r.calls, callSID)
		}
		r.mu.Unlock()
		r.wg.Done()
	})
}

// Cancel cancels the live call with callSID. It reports whether one was found.
func (r *Registry) Cancel(callSID string) bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	entry := r.calls[callSID]
	r.mu.Unlock()
	if entry == nil {
		return false
	}
	if entry.handle.Cancel != nil {
		entry.handle.Cancel()
	}
	return true
}

func (r *Registry) Lookup(callSID string) (Info, bool) {
	if r == nil {
		return Info{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.calls[callSID]
	if entry == nil {
		return Info{}, false
	}
	return Info{CallSID: callSID, StreamSID: entry.handle.StreamSID, StartedAt: entry.started}, true
}

// List returns the live calls, oldest first.
func (r *Registry) List() []Info {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	out := make([]Info, 0, len(r.calls))
	for sid, entry := range r.calls {
		out = append(out, Info{CallSID: sid, StreamSID: entry.handle.StreamSID, StartedAt: entry.started})
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (r *Registry) Count() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *Registry) CancelAll() (canceled int) {
	if r == nil {
		return 0
	}

	var cancels []func()
	r.mu.Lock()
	for _, entry := range r.calls {
		if entry == nil || entry.handle.Cancel == nil {
			continue
		}
		cancels = append(cancels, entry.handle.Cancel)
	}
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered call has unregistered or ctx ends.
func (r *Registry) Wait(ctx context.Context) bool {
	if r == nil {
		return true
	}
	if ctx == nil {
		r.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
