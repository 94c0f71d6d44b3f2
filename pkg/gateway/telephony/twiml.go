package telephony

import (
	"encoding/xml"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
)

type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Connect *twimlConnect `xml:"Connect,omitempty"`
	Say     *twimlSay     `xml:"Say,omitempty"`
	Hangup  *struct{}     `xml:"Hangup,omitempty"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type twimlSay struct {
	Language string `xml:"language,attr,omitempty"`
	Text     string `xml:",chardata"`
}

// StreamURL derives the media-stream WebSocket URL from the public base URL.
func StreamURL(webhookBaseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(webhookBaseURL))
	if err != nil {
		return "", fmt.Errorf("parse webhook base url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("webhook base url %q must be http(s)", webhookBaseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/media-stream"
	u.RawQuery = ""
	return u.String(), nil
}

// ConnectStream renders TwiML that connects the call to streamURL, passing
// params to the stream's start event as custom parameters.
func ConnectStream(streamURL string, params map[string]string) ([]byte, error) {
	stream := twimlStream{URL: streamURL}
	for _, name := range slices.Sorted(maps.Keys(params)) {
		if params[name] == "" {
			continue
		}
		stream.Parameters = append(stream.Parameters, twimlParameter{Name: name, Value: params[name]})
	}
	return render(twimlResponse{Connect: &twimlConnect{Stream: stream}})
}

// SayAndHangup renders TwiML that speaks text with the carrier's voice and ends the call.
func SayAndHangup(text, language string) ([]byte, error) {
	return render(twimlResponse{Say: &twimlSay{Language: language, Text: text}, Hangup: &struct{}{}})
}

func render(doc twimlResponse) ([]byte, error) {
	out, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("render twiml: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
