package telephony

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeInboundFrameStart(t *testing.T) {
	raw := []byte(`{"event":"start","sequenceNumber":"1","start":{"streamSid":"MZ1","callSid":"CA1","accountSid":"AC1","customParameters":{"leadId":"l1","campaignId":"c1"},"mediaFormat":{"encoding":"audio/x-mulaw","sampleRate":8000,"channels":1}}}`)
	f, err := DecodeInboundFrame(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if f.Event != EventStart || f.StreamSid != "MZ1" {
		t.Fatalf("unexpected frame %+v", f)
	}
	if f.Start.CallSid != "CA1" || f.Start.CustomParameters["leadId"] != "l1" {
		t.Fatalf("unexpected start payload %+v", f.Start)
	}
}

func TestDecodeInboundFrameMedia(t *testing.T) {
	f, err := DecodeInboundFrame([]byte(`{"event":"media","streamSid":"MZ1","media":{"track":"inbound","payload":"//8="}}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if f.Media.Payload != "//8=" {
		t.Fatalf("payload must be passed through, got %q", f.Media.Payload)
	}
}

func TestDecodeInboundFrameMalformed(t *testing.T) {
	for _, raw := range []string{`not json`, `{}`, `{"event":"media"}`} {
		if _, err := DecodeInboundFrame([]byte(raw)); !errors.Is(err, ErrMalformedFrame) {
			t.Fatalf("%s: expected ErrMalformedFrame, got %v", raw, err)
		}
	}
	if f, err := DecodeInboundFrame([]byte(`{"event":"dtmf"}`)); err != nil || f.Event != "dtmf" {
		t.Fatalf("unknown events should decode, got %+v %v", f, err)
	}
}

func TestNewMediaFrameEnvelope(t *testing.T) {
	b, err := json.Marshal(NewMediaFrame("MZ1", "AAAA"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"event":"media","streamSid":"MZ1","media":{"contentType":"audio/x-mulaw","sampleRate":8000,"payload":"AAAA"}}`
	if string(b) != want {
		t.Fatalf("unexpected envelope:\n got %s\nwant %s", b, want)
	}

	b, _ = json.Marshal(NewClearFrame("MZ1"))
	if string(b) != `{"event":"clear","streamSid":"MZ1"}` {
		t.Fatalf("unexpected clear frame %s", b)
	}
}
