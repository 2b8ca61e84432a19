package voice

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"propdial/internal/campaigns"
)

var (
	testLead = campaigns.Lead{ID: "l1", Name: "Asha"}
	testOrg  = campaigns.Organization{ID: "o1", Name: "Skyline Realty"}
	testCamp = campaigns.Campaign{ID: "c1", Name: "Green Acres"}
)

func TestBuildSessionConfigDeterministic(t *testing.T) {
	a, _ := json.Marshal(BuildSessionConfig(testLead, testCamp, testOrg, Defaults{}))
	b, _ := json.Marshal(BuildSessionConfig(testLead, testCamp, testOrg, Defaults{}))
	if string(a) != string(b) {
		t.Fatalf("expected byte-identical output:\n%s\n%s", a, b)
	}
}

func TestBuildSessionConfigDefaults(t *testing.T) {
	cfg := BuildSessionConfig(testLead, testCamp, testOrg, Defaults{})
	if cfg.Voice != DefaultVoice {
		t.Fatalf("expected default voice, got %q", cfg.Voice)
	}
	if cfg.InputAudioFormat != AudioFormatG711Ulaw || cfg.OutputAudioFormat != AudioFormatG711Ulaw {
		t.Fatalf("unexpected audio formats %q/%q", cfg.InputAudioFormat, cfg.OutputAudioFormat)
	}
	want := TurnDetection{Type: "server_vad", Threshold: 0.5, PrefixPaddingMs: 300, SilenceDurationMs: 500}
	if cfg.TurnDetection != want {
		t.Fatalf("unexpected turn detection %+v", cfg.TurnDetection)
	}
	if cfg.Temperature != 0.8 {
		t.Fatalf("unexpected temperature %v", cfg.Temperature)
	}
	if !strings.Contains(cfg.Instructions, "Asha") || !strings.Contains(cfg.Instructions, "Skyline Realty") {
		t.Fatalf("greeting should reference lead and organization: %s", cfg.Instructions)
	}

	cfg = BuildSessionConfig(testLead, testCamp, testOrg, Defaults{Voice: "verse"})
	if cfg.Voice != "verse" {
		t.Fatalf("expected deployment default voice, got %q", cfg.Voice)
	}
	c := testCamp
	c.Voice = "shimmer"
	if cfg := BuildSessionConfig(testLead, c, testOrg, Defaults{Voice: "verse"}); cfg.Voice != "shimmer" {
		t.Fatalf("campaign voice should win, got %q", cfg.Voice)
	}
}

func TestBuildSessionConfigScriptOnlyChangesInstructions(t *testing.T) {
	base := BuildSessionConfig(testLead, testCamp, testOrg, Defaults{})
	c := testCamp
	c.AIScript = "Hi {{lead_name}}, this is {{organization}}."
	scripted := BuildSessionConfig(testLead, c, testOrg, Defaults{})

	if scripted.Instructions != "Hi Asha, this is Skyline Realty." {
		t.Fatalf("unexpected scripted instructions %q", scripted.Instructions)
	}
	base.Instructions, scripted.Instructions = "", ""
	if !reflect.DeepEqual(base, scripted) {
		t.Fatalf("script must only change instructions:\n%+v\n%+v", base, scripted)
	}
}

func TestBuildSessionConfigAnonymousLead(t *testing.T) {
	cfg := BuildSessionConfig(campaigns.Lead{}, testCamp, campaigns.Organization{}, Defaults{})
	if strings.Contains(cfg.Instructions, "{{") {
		t.Fatalf("placeholders must be filled: %s", cfg.Instructions)
	}
}
