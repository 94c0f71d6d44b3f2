package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Urzzard/Operador-IA/pkg/core/codec"
)

func TestDecodeMessage_Start(t *testing.T) {
	raw := []byte(`{
		"event":"start",
		"sequenceNumber":"1",
		"start":{
			"accountSid":"AC1",
			"streamSid":"MZ1",
			"callSid":"CA1",
			"tracks":["inbound"],
			"customParameters":{"phone":"+51987654321"},
			"mediaFormat":{"encoding":"audio/x-mulaw","sampleRate":8000,"channels":1}
		},
		"streamSid":"MZ1"
	}`)

	msg, err := DecodeMessage(raw)
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}
	start, ok := msg.(Start)
	if !ok {
		t.Fatalf("decoded type = %T, want Start", msg)
	}
	if start.StreamSID != "MZ1" || start.Start.CallSID != "CA1" {
		t.Fatalf("start=%+v", start)
	}
	if got := start.Param("to", "phone"); got != "+51987654321" {
		t.Fatalf("param=%q", got)
	}
	if start.Start.MediaFormat.Codec() != codec.Mulaw {
		t.Fatalf("codec=%q", start.Start.MediaFormat.Codec())
	}
}

func TestDecodeMessage_StartStreamSidFallsBackToInner(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"event":"start","start":{"streamSid":"MZ9","callSid":"CA9","mediaFormat":{"encoding":"audio/x-alaw"}}}`))
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}
	start := msg.(Start)
	if start.StreamSID != "MZ9" {
		t.Fatalf("streamSid=%q", start.StreamSID)
	}
	if start.Start.MediaFormat.Codec() != codec.Alaw {
		t.Fatalf("codec=%q", start.Start.MediaFormat.Codec())
	}
}

func TestDecodeMessage_Media(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"event":"media","streamSid":"MZ1","media":{"track":"inbound","chunk":"2","timestamp":"20","payload":"//8="}}`))
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}
	media := msg.(Media)
	audio, err := media.Audio()
	if err != nil {
		t.Fatalf("Audio() error = %v", err)
	}
	if len(audio) != 2 || audio[0] != 0xFF {
		t.Fatalf("audio=%v", audio)
	}
}

func TestDecodeMessage_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		code string
	}{
		{name: "invalid json", raw: `{`, code: "bad_request"},
		{name: "missing event", raw: `{"streamSid":"MZ1"}`, code: "bad_request"},
		{name: "unknown event", raw: `{"event":"bogus"}`, code: "unsupported"},
		{name: "start without call", raw: `{"event":"start","streamSid":"MZ1","start":{}}`, code: "bad_request"},
		{name: "media without payload", raw: `{"event":"media","media":{}}`, code: "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(tt.raw))
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("err=%v, want *DecodeError", err)
			}
			if de.Code != tt.code {
				t.Fatalf("code=%q, want %q", de.Code, tt.code)
			}
		})
	}
}

func TestMedia_AudioRejectsBadBase64(t *testing.T) {
	if _, err := (Media{Media: MediaPayload{Payload: "%%%"}}).Audio(); err == nil {
		t.Fatal("expected error")
	}
}

func TestOutboundFrames(t *testing.T) {
	b, err := json.Marshal(NewMedia("MZ1", []byte{0xFF, 0xFF}))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"event":"media","streamSid":"MZ1","media":{"payload":"//8="}}` {
		t.Fatalf("media=%s", b)
	}

	b, _ = json.Marshal(NewMark("MZ1", "r1:0"))
	if string(b) != `{"event":"mark","streamSid":"MZ1","mark":{"name":"r1:0"}}` {
		t.Fatalf("mark=%s", b)
	}

	b, _ = json.Marshal(NewClear("MZ1"))
	if string(b) != `{"event":"clear","streamSid":"MZ1"}` {
		t.Fatalf("clear=%s", b)
	}
}
