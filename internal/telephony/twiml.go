package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// TwiML is a minimal Twilio Markup Language response builder.
// Only the verbs the answer webhook needs are modeled.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlConnect struct {
	XMLName xml.Name    `xml:"Connect"`
	Stream  twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// StreamParameter is forwarded to the media stream as a customParameter.
type StreamParameter struct {
	Name  string
	Value string
}

// StreamInstruction tells Twilio to open a bidirectional media stream.
type StreamInstruction struct {
	URL        string
	Parameters []StreamParameter
}

// RenderStreamTwiML renders <Connect><Stream> for the given instruction.
func RenderStreamTwiML(in StreamInstruction) (string, error) {
	u := strings.TrimSpace(in.URL)
	if u == "" {
		return "", errors.New("telephony: stream url required")
	}
	if !strings.HasPrefix(u, "wss://") && !strings.HasPrefix(u, "ws://") {
		return "", errors.New("telephony: stream url must be a websocket url")
	}

	s := twimlStream{URL: u}
	for _, p := range in.Parameters {
		if p.Name == "" {
			continue
		}
		s.Parameters = append(s.Parameters, twimlParameter{Name: p.Name, Value: p.Value})
	}
	return render(twimlResponse{Verbs: []any{twimlConnect{Stream: s}}})
}

// RenderHangupTwiML renders an optional spoken message followed by <Hangup/>.
func RenderHangupTwiML(message string) (string, error) {
	var r twimlResponse
	if m := strings.TrimSpace(message); m != "" {
		r.Verbs = append(r.Verbs, twimlSay{Text: m})
	}
	r.Verbs = append(r.Verbs, twimlHangup{})
	return render(r)
}

func render(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
