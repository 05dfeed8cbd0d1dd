package segment

import (
	"testing"

	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/types"
)

const sampleTranscript = `City Listening Project - Session 12
Recorded at the community center.

Interviewer: How long have you lived in the neighborhood?
Respondent: About eleven years now.
We moved here when my daughter was born.

Interviewer: What would you change first?
Respondent: The bus connection. It stops running at eight,
and the night shift workers have no way home.
`

func TestSegmentBasic(t *testing.T) {
	turns, err := Segment(sampleTranscript)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}

	for i, turn := range turns {
		if turn.TurnID != i+1 {
			t.Errorf("turn %d: id = %d, want %d", i, turn.TurnID, i+1)
		}
	}

	if turns[0].Speaker != types.RoleInterviewer {
		t.Errorf("turn 1 speaker = %s, want interviewer", turns[0].Speaker)
	}
	if turns[1].Speaker != types.RoleParticipant {
		t.Errorf("turn 2 speaker = %s, want participant", turns[1].Speaker)
	}
	if want := "About eleven years now. We moved here when my daughter was born."; turns[1].Text != want {
		t.Errorf("turn 2 text = %q, want %q", turns[1].Text, want)
	}
	if want := "The bus connection. It stops running at eight, and the night shift workers have no way home."; turns[3].Text != want {
		t.Errorf("turn 4 text = %q, want %q", turns[3].Text, want)
	}
}

func TestSegmentSkipsPreamble(t *testing.T) {
	turns, err := Segment("Session notes\nDate recorded\n\nQ: First question?\nA: First answer.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Speaker != types.RoleInterviewer || turns[1].Speaker != types.RoleParticipant {
		t.Errorf("Q/A labels not normalized: %s, %s", turns[0].Speaker, turns[1].Speaker)
	}
}

func TestSegmentEmptyTranscript(t *testing.T) {
	for _, raw := range []string{"", "   \n  \n", "just prose without any labels\nmore prose"} {
		_, err := Segment(raw)
		if err == nil {
			t.Fatalf("expected error for %q", raw)
		}
		if !apperrors.Is(err, apperrors.ErrEmptyTranscript) {
			t.Errorf("expected ErrEmptyTranscript, got %v", err)
		}
	}
}

func TestSegmentCRLF(t *testing.T) {
	turns, err := Segment("Interviewer: Hello?\r\nParticipant 2: Hi there.\r\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[1].Speaker != types.RoleParticipant {
		t.Errorf("numbered participant label should normalize, got %s", turns[1].Speaker)
	}
	if turns[0].Text != "Hello?" {
		t.Errorf("CR not stripped: %q", turns[0].Text)
	}
}

func TestSpeakerLineRejects(t *testing.T) {
	cases := []string{
		"See http://example.com for details",
		"It was late: nearly midnight, she said",
		"One two three four five six: text",
		": leading colon",
	}
	for _, line := range cases {
		if _, _, ok := speakerLine(line); ok {
			t.Errorf("%q should not start a turn", line)
		}
	}
}

func TestNormalizeRole(t *testing.T) {
	cases := []struct {
		label string
		want  types.SpeakerRole
	}{
		{"Interviewer", types.RoleInterviewer},
		{"MODERATOR", types.RoleInterviewer},
		{"Facilitator 1", types.RoleInterviewer},
		{"Q", types.RoleInterviewer},
		{"Respondent", types.RoleParticipant},
		{"Participant 3", types.RoleParticipant},
		{"citizen", types.RoleParticipant},
		{"A", types.RoleParticipant},
		{"Maria", types.RoleUnknown},
		{"JK", types.RoleUnknown},
	}
	for _, c := range cases {
		if got := normalizeRole(c.label); got != c.want {
			t.Errorf("normalizeRole(%q) = %s, want %s", c.label, got, c.want)
		}
	}
}

func TestSegmentDeterministic(t *testing.T) {
	first, err := Segment(sampleTranscript)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Segment(sampleTranscript)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("segmentation not deterministic: %d vs %d turns", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("turn %d differs between runs", i+1)
		}
	}
}
