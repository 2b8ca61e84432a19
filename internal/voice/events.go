package voice

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Server event type names sent by the speech-AI realtime API.
const (
	eventSessionUpdated           = "session.updated"
	eventAudioDelta               = "response.audio.delta"
	eventInputTranscriptCompleted = "conversation.item.input_audio_transcription.completed"
	eventResponseTranscriptDone   = "response.audio_transcript.done"
	eventResponseDone             = "response.done"
	eventSpeechStarted            = "input_audio_buffer.speech_started"
	eventError                    = "error"
)

// ServerEvent is one decoded message from the speech-AI connection.
// The set of implementations is closed; consumers type-switch over it.
type ServerEvent interface {
	EventType() string
	serverEvent()
}

type SessionUpdated struct {
	Session json.RawMessage
}

// AudioDelta carries base64 g711 mu-law audio.
type AudioDelta struct {
	ResponseID string
	ItemID     string
	Delta      string
}

// InputTranscriptCompleted is the transcription of one callee utterance.
type InputTranscriptCompleted struct {
	ItemID     string
	Transcript string
}

// ResponseTranscriptDone is the full transcript of one AI utterance.
type ResponseTranscriptDone struct {
	ResponseID string
	ItemID     string
	Transcript string
}

type ResponseDone struct {
	ResponseID string
	Status     string
}

// SpeechStarted fires when the callee starts talking over the AI.
type SpeechStarted struct {
	ItemID string
}

type ErrorEvent struct {
	Code    string
	Kind    string
	Message string
}

// Unrecognized wraps any event type this package does not model.
type Unrecognized struct {
	Type string
	Raw  json.RawMessage
}

func (SessionUpdated) EventType() string { return eventSessionUpdated }
func (AudioDelta) EventType() string { return eventAudioDelta }
func (InputTranscriptCompleted) EventType() string { return eventInputTranscriptCompleted }
func (ResponseTranscriptDone) EventType() string { return eventResponseTranscriptDone }
func (ResponseDone) EventType() string { return eventResponseDone }
func (SpeechStarted) EventType() string { return eventSpeechStarted }
func (ErrorEvent) EventType() string { return eventError }
func (u Unrecognized) EventType() string { return u.Type }

func (SessionUpdated) serverEvent() {}
func (AudioDelta) serverEvent() {}
func (InputTranscriptCompleted) serverEvent() {}
func (ResponseTranscriptDone) serverEvent() {}
func (ResponseDone) serverEvent() {}
func (SpeechStarted) serverEvent() {}
func (ErrorEvent) serverEvent() {}
func (Unrecognized) serverEvent() {}

var ErrMalformedEvent = errors.New("voice: malformed server event")

type wireEvent struct {
	Type       string          `json:"type"`
	Session    json.RawMessage `json:"session"`
	ResponseID string          `json:"response_id"`
	ItemID     string          `json:"item_id"`
	Delta      string          `json:"delta"`
	Transcript string          `json:"transcript"`
	Response   *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"response"`
	Error *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// DecodeServerEvent parses one realtime message. Unknown types are returned as
// Unrecognized rather than an error.
func DecodeServerEvent(data []byte) (ServerEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}
	if w.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}

	switch w.Type {
	case eventSessionUpdated:
		return SessionUpdated{Session: w.Session}, nil
	case eventAudioDelta:
		return AudioDelta{ResponseID: w.ResponseID, ItemID: w.ItemID, Delta: w.Delta}, nil
	case eventInputTranscriptCompleted:
		return InputTranscriptCompleted{ItemID: w.ItemID, Transcript: w.Transcript}, nil
	case eventResponseTranscriptDone:
		return ResponseTranscriptDone{ResponseID: w.ResponseID, ItemID: w.ItemID, Transcript: w.Transcript}, nil
	case eventResponseDone:
		ev := ResponseDone{}
		if w.Response != nil {
			ev.ResponseID = w.Response.ID
			ev.Status = w.Response.Status
		}
		return ev, nil
	case eventSpeechStarted:
		return SpeechStarted{ItemID: w.ItemID}, nil
	case eventError:
		ev := ErrorEvent{}
		if w.Error != nil {
			ev.Code = w.Error.Code
			ev.Kind = w.Error.Type
			ev.Message = w.Error.Message
		}
		return ev, nil
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return Unrecognized{Type: w.Type, Raw: raw}, nil
	}
}

// Client events sent to the speech-AI connection.

type sessionUpdate struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type responseCreate struct {
	Type     string          `json:"type"`
	Response *responseParams `json:"response,omitempty"`
}

type responseParams struct {
	Modalities   []string `json:"modalities,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
}

func newSessionUpdate(cfg SessionConfig) sessionUpdate {
	return sessionUpdate{Type: "session.update", Session: cfg}
}

func newAudioAppend(payload string) audioAppend {
	return audioAppend{Type: "input_audio_buffer.append", Audio: payload}
}

// newGreetingRequest asks the AI to speak first.
func newGreetingRequest() responseCreate {
	return responseCreate{
		Type: "response.create",
		Response: &responseParams{
			Modalities:   []string{"text", "audio"},
			Instructions: "Greet the person on the call now, following your instructions.",
		},
	}
}
