package dialogue

import (
	"reflect"
	"testing"
)

func TestFold(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Sí", "si"},
		{"ADIÓS", "adios"},
		{"pingüino", "pinguino"},
		{"Niño", "nino"},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("¡Sí, soy yo! ¿Horario?")
	want := []string{"si", "soy", "yo", "horario"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokens() = %v, want %v", got, want)
	}
}

func TestKeywordSet(t *testing.T) {
	ks := newKeywordSet("no", "hasta luego")
	tests := []struct {
		in   string
		want bool
	}{
		{"No.", true},
		{"nombre", false},
		{"bueno, hasta luego", true},
		{"luego hasta", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ks.match(tt.in); got != tt.want {
			t.Errorf("match(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
