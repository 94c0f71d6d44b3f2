// Package protocol decodes and encodes Twilio Media Streams WebSocket frames.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Urzzard/Operador-IA/pkg/core/codec"
)

const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventMark      = "mark"
	EventStop      = "stop"
	EventDTMF      = "dtmf"
	EventClear     = "clear"

	MediaEncodingMulaw = "audio/x-mulaw"
	MediaEncodingAlaw  = "audio/x-alaw"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

type Connected struct {
	Event    string `json:"event"`
	Protocol string `json:"protocol"`
	Version  string `json:"version"`
}

type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// Codec maps the stream's media format to a telephony encoding.
func (f MediaFormat) Codec() codec.Encoding {
	if strings.EqualFold(strings.TrimSpace(f.Encoding), MediaEncodingAlaw) {
		return codec.Alaw
	}
	return codec.Mulaw
}

type StartInfo struct {
	AccountSID       string            `json:"accountSid"`
	StreamSID        string            `json:"streamSid"`
	CallSID          string            `json:"callSid"`
	Tracks           []string          `json:"tracks"`
	CustomParameters map[string]string `json:"customParameters"`
	MediaFormat      MediaFormat       `json:"mediaFormat"`
}

type Start struct {
	Event          string    `json:"event"`
	SequenceNumber string    `json:"sequenceNumber"`
	StreamSID      string    `json:"streamSid"`
	Start          StartInfo `json:"start"`
}

// Param returns the first non-empty custom parameter among keys.
func (s Start) Param(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(s.Start.CustomParameters[k]); v != "" {
			return v
		}
	}
	return ""
}

type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

type Media struct {
	Event          string       `json:"event"`
	SequenceNumber string       `json:"sequenceNumber,omitempty"`
	StreamSID      string       `json:"streamSid"`
	Media          MediaPayload `json:"media"`
}

// Audio returns the decoded companded payload.
func (m Media) Audio() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(m.Media.Payload)
	if err != nil {
		return nil, badRequest("media.payload is not valid base64", "media.payload")
	}
	return b, nil
}

type MarkInfo struct {
	Name string `json:"name"`
}

type Mark struct {
	Event          string   `json:"event"`
	SequenceNumber string   `json:"sequenceNumber,omitempty"`
	StreamSID      string   `json:"streamSid"`
	Mark           MarkInfo `json:"mark"`
}

type StopInfo struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

type Stop struct {
	Event          string   `json:"event"`
	SequenceNumber string   `json:"sequenceNumber"`
	StreamSID      string   `json:"streamSid"`
	Stop           StopInfo `json:"stop"`
}

type DTMFInfo struct {
	Track string `json:"track"`
	Digit string `json:"digit"`
}

type DTMF struct {
	Event     string   `json:"event"`
	StreamSID string   `json:"streamSid"`
	DTMF      DTMFInfo `json:"dtmf"`
}

type Clear struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
}

// DecodeMessage decodes one inbound frame into Connected, Start, Media,
// Mark, Stop or DTMF.
func DecodeMessage(data []byte) (any, error) {
	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	event := strings.TrimSpace(envelope.Event)
	if event == "" {
		return nil, badRequest("missing event", "event")
	}

	switch event {
	case EventConnected:
		var msg Connected
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid connected frame", "")
		}
		return msg, nil
	case EventStart:
		var msg Start
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid start frame", "")
		}
		if msg.StreamSID == "" {
			msg.StreamSID = msg.Start.StreamSID
		}
		if strings.TrimSpace(msg.StreamSID) == "" {
			return nil, badRequest("start.streamSid is required", "streamSid")
		}
		if strings.TrimSpace(msg.Start.CallSID) == "" {
			return nil, badRequest("start.callSid is required", "start.callSid")
		}
		return msg, nil
	case EventMedia:
		var msg Media
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid media frame", "")
		}
		if msg.Media.Payload == "" {
			return nil, badRequest("media.payload is required", "media.payload")
		}
		return msg, nil
	case EventMark:
		var msg Mark
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid mark frame", "")
		}
		return msg, nil
	case EventStop:
		var msg Stop
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid stop frame", "")
		}
		return msg, nil
	case EventDTMF:
		var msg DTMF
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid dtmf frame", "")
		}
		return msg, nil
	default:
		return nil, unsupported("unsupported event", event)
	}
}

// NewMedia builds an outbound media frame carrying companded audio.
func NewMedia(streamSID string, audio []byte) Media {
	return Media{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media:     MediaPayload{Payload: base64.StdEncoding.EncodeToString(audio)},
	}
}

// NewMark builds an outbound mark frame.
func NewMark(streamSID, name string) Mark {
	return Mark{Event: EventMark, StreamSID: streamSID, Mark: MarkInfo{Name: name}}
}

// NewClear builds an outbound clear frame that flushes buffered playback.
func NewClear(streamSID string) Clear {
	return Clear{Event: EventClear, StreamSID: streamSID}
}
