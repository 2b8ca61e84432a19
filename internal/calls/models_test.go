package calls

import "testing"

func TestStatusVocabulary(t *testing.T) {
	all := []Status{
		StatusCompleted,
		StatusTransferred,
		StatusVoicemail,
		StatusNoAnswer,
		StatusFailed,
		StatusBusy,
		StatusInProgress,
		StatusRinging,
	}
	for _, s := range all {
		if !s.Valid() {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	if Status("canceled").Valid() {
		t.Fatalf("canceled is not part of the call-log vocabulary")
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range TerminalStatuses() {
		if !s.Terminal() {
			t.Fatalf("expected %q to be terminal", s)
		}
	}
	if StatusInProgress.Terminal() || StatusRinging.Terminal() {
		t.Fatalf("in-flight statuses must not be terminal")
	}
	if len(TerminalStatuses()) != 6 {
		t.Fatalf("expected 6 terminal statuses, got %d", len(TerminalStatuses()))
	}
}

func TestConversationStatuses(t *testing.T) {
	if !StatusCompleted.Conversation() || !StatusTransferred.Conversation() {
		t.Fatalf("completed and transferred are conversations")
	}
	if StatusNoAnswer.Conversation() || StatusVoicemail.Conversation() {
		t.Fatalf("no_answer and voicemail are not conversations")
	}
}

func TestQueueEntryKey(t *testing.T) {
	e := QueueEntry{CampaignID: "c1", LeadID: "l1"}
	if e.Key() != "c1/l1" {
		t.Fatalf("unexpected key %q", e.Key())
	}
}
