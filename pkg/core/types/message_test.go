package types

import (
	"encoding/json"
	"testing"
)

func TestMessage_JSONShape(t *testing.T) {
	data, err := json.Marshal(UserMessage("hola"))
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	expected := `{"role":"user","content":"hola"}`
	if string(data) != expected {
		t.Errorf("JSON mismatch: got %s, want %s", string(data), expected)
	}
}

func TestTranscript(t *testing.T) {
	msgs := []Message{AssistantMessage("¿Eres Ana?"), UserMessage("sí")}
	want := "assistant: ¿Eres Ana?\nuser: sí"
	if got := Transcript(msgs); got != want {
		t.Errorf("Transcript() = %q, want %q", got, want)
	}
	if Transcript(nil) != "" {
		t.Error("empty transcript should render empty")
	}
}

func TestClone(t *testing.T) {
	orig := []Message{UserMessage("a")}
	c := Clone(orig)
	c[0].Content = "b"
	if orig[0].Content != "a" {
		t.Error("Clone shares backing array")
	}
	if Clone(nil) != nil {
		t.Error("Clone(nil) should be nil")
	}
}
