package telephony

import (
	"encoding/json"
	"errors"
)

// Media Streams audio is always 8kHz mu-law.
const (
	MediaContentType = "audio/x-mulaw"
	MediaSampleRate  = 8000
)

// Inbound event names on the Twilio media stream.
const (
	EventConnected  = "connected"
	EventStart      = "start"
	EventMedia      = "media"
	EventStop       = "stop"
	EventMark       = "mark"
	EventClear      = "clear"
	EventClearAudio = "clearAudio"
)

// InboundFrame is one JSON message received from the media stream.
type InboundFrame struct {
	Event          string `json:"event"`
	SequenceNumber string `json:"sequenceNumber,omitempty"`
	StreamSid      string `json:"streamSid,omitempty"`

	Start *StartPayload `json:"start,omitempty"`
	Media *MediaPayload `json:"media,omitempty"`
	Mark  *MarkPayload  `json:"mark,omitempty"`
	Stop  *StopPayload  `json:"stop,omitempty"`
}

type StartPayload struct {
	StreamSid        string            `json:"streamSid"`
	CallSid          string            `json:"callSid"`
	AccountSid       string            `json:"accountSid"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	MediaFormat      MediaFormat       `json:"mediaFormat"`
}

type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	// Payload is base64 mu-law audio; it is forwarded without decoding.
	Payload string `json:"payload"`
}

type MarkPayload struct {
	Name string `json:"name"`
}

type StopPayload struct {
	AccountSid string `json:"accountSid,omitempty"`
	CallSid    string `json:"callSid,omitempty"`
}

var ErrMalformedFrame = errors.New("telephony: malformed media frame")

// DecodeInboundFrame parses a media-stream message. Unknown events decode
// successfully so callers can log and ignore them.
func DecodeInboundFrame(data []byte) (InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return InboundFrame{}, errors.Join(ErrMalformedFrame, err)
	}
	if f.Event == "" {
		return InboundFrame{}, ErrMalformedFrame
	}
	if f.Event == EventMedia && f.Media == nil {
		return InboundFrame{}, ErrMalformedFrame
	}
	if f.StreamSid == "" && f.Start != nil {
		f.StreamSid = f.Start.StreamSid
	}
	return f, nil
}

// OutboundFrame is a message sent back to the media stream.
type OutboundFrame struct {
	Event     string         `json:"event"`
	StreamSid string         `json:"streamSid"`
	Media     *OutboundMedia `json:"media,omitempty"`
	Mark      *MarkPayload   `json:"mark,omitempty"`
}

type OutboundMedia struct {
	ContentType string `json:"contentType"`
	SampleRate  int    `json:"sampleRate"`
	Payload     string `json:"payload"`
}

// NewMediaFrame wraps base64 mu-law audio for playback on the call.
func NewMediaFrame(streamSid, payload string) OutboundFrame {
	return OutboundFrame{
		Event:     EventMedia,
		StreamSid: streamSid,
		Media: &OutboundMedia{
			ContentType: MediaContentType,
			SampleRate:  MediaSampleRate,
			Payload:     payload,
		},
	}
}

// NewClearFrame asks Twilio to drop audio it has buffered but not yet played.
func NewClearFrame(streamSid string) OutboundFrame {
	return OutboundFrame{Event: EventClear, StreamSid: streamSid}
}

func NewMarkFrame(streamSid, name string) OutboundFrame {
	return OutboundFrame{Event: EventMark, StreamSid: streamSid, Mark: &MarkPayload{Name: name}}
}
