package lifecycle

import (
	"errors"
	"testing"
)

func TestLifecycle_Draining(t *testing.T) {
	var l Lifecycle
	if l.IsDraining() {
		t.Fatalf("new lifecycle should not be draining")
	}
	if err := l.Admit(); err != nil {
		t.Fatalf("Admit() = %v", err)
	}

	l.SetDraining(true)
	if !l.IsDraining() {
		t.Fatalf("IsDraining() = false after SetDraining(true)")
	}
	if err := l.Admit(); !errors.Is(err, ErrDraining) {
		t.Fatalf("Admit() = %v, want ErrDraining", err)
	}
}

func TestLifecycle_NilIsNeverDraining(t *testing.T) {
	var l *Lifecycle
	l.SetDraining(true)
	if l.IsDraining() {
		t.Fatalf("nil lifecycle reported draining")
	}
	if err := l.Admit(); err != nil {
		t.Fatalf("Admit() = %v", err)
	}
}
