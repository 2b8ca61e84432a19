// Package voice bridges a Twilio media stream to a speech-AI realtime session
// for one outbound call.
package voice

import (
	"strings"

	"propdial/internal/campaigns"
)

const (
	DefaultVoice = "alloy"

	AudioFormatG711Ulaw = "g711_ulaw"

	defaultTemperature        = 0.8
	defaultVADThreshold       = 0.5
	defaultPrefixPaddingMs    = 300
	defaultSilenceDurationMs  = 500
	defaultTranscriptionModel = "whisper-1"
)

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

type InputTranscription struct {
	Model string `json:"model"`
}

// SessionConfig is the session object sent in session.update.
type SessionConfig struct {
	Modalities              []string            `json:"modalities"`
	Instructions            string              `json:"instructions"`
	Voice                   string              `json:"voice"`
	InputAudioFormat        string              `json:"input_audio_format"`
	OutputAudioFormat       string              `json:"output_audio_format"`
	InputAudioTranscription *InputTranscription `json:"input_audio_transcription,omitempty"`
	TurnDetection           TurnDetection       `json:"turn_detection"`
	Temperature             float64             `json:"temperature"`
}

// Defaults are deployment-level fallbacks for campaign settings.
type Defaults struct {
	Voice string
}

// BuildSessionConfig maps a lead and its campaign to the AI session settings.
// It is pure: equal inputs yield equal outputs.
func BuildSessionConfig(lead campaigns.Lead, campaign campaigns.Campaign, org campaigns.Organization, d Defaults) SessionConfig {
	voice := strings.TrimSpace(campaign.Voice)
	if voice == "" {
		voice = strings.TrimSpace(d.Voice)
	}
	if voice == "" {
		voice = DefaultVoice
	}

	return SessionConfig{
		Modalities:        []string{"text", "audio"},
		Instructions:      instructions(lead, campaign, org),
		Voice:             voice,
		InputAudioFormat:  AudioFormatG711Ulaw,
		OutputAudioFormat: AudioFormatG711Ulaw,
		InputAudioTranscription: &InputTranscription{
			Model: defaultTranscriptionModel,
		},
		TurnDetection: TurnDetection{
			Type:              "server_vad",
			Threshold:         defaultVADThreshold,
			PrefixPaddingMs:   defaultPrefixPaddingMs,
			SilenceDurationMs: defaultSilenceDurationMs,
		},
		Temperature: defaultTemperature,
	}
}

const greetingTemplate = `You are a friendly, professional real-estate sales assistant calling on behalf of {{organization}}.
You are speaking with {{lead_name}} about the "{{campaign}}" project.
Start by greeting {{lead_name}} by name and introducing yourself and {{organization}}.
Ask whether now is a good time to talk, then find out their budget, preferred location and timeline.
Keep every reply short and conversational. If they ask to speak with a person, tell them you will connect them to an agent.`

// instructions uses the campaign script when present. Scripts may reference
// the same placeholders as the built-in greeting.
func instructions(lead campaigns.Lead, campaign campaigns.Campaign, org campaigns.Organization) string {
	leadName := strings.TrimSpace(lead.Name)
	if leadName == "" {
		leadName = "there"
	}
	orgName := strings.TrimSpace(org.Name)
	if orgName == "" {
		orgName = "our team"
	}
	r := strings.NewReplacer(
		"{{organization}}", orgName,
		"{{lead_name}}", leadName,
		"{{campaign}}", strings.TrimSpace(campaign.Name),
	)

	script := strings.TrimSpace(campaign.AIScript)
	if script == "" {
		script = greetingTemplate
	}
	return r.Replace(script)
}
