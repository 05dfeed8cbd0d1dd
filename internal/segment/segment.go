package segment

import (
	"strings"

	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/types"
)

// Segment splits a raw transcript into ordered speaker turns. A turn starts
// at a line of the form "Label: text" and absorbs following lines until the
// next labeled line. Text before the first label (headers, consent notes)
// is ignored. A transcript with no labeled lines cannot be annotated and is
// rejected.
func Segment(raw string) ([]types.Turn, error) {
	var turns []types.Turn
	var current *types.Turn
	var buf strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(buf.String())
		turns = append(turns, *current)
		current = nil
		buf.Reset()
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)

		if label, rest, ok := speakerLine(trimmed); ok {
			flush()
			current = &types.Turn{
				TurnID:  len(turns) + 1,
				Speaker: normalizeRole(label),
			}
			buf.WriteString(rest)
			continue
		}

		if current == nil || trimmed == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(trimmed)
	}
	flush()

	if len(turns) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrEmptyTranscript,
			"no speaker-labeled lines found")
	}
	return turns, nil
}

// speakerLine reports whether a line opens a new turn and splits it into
// the speaker label and the remaining text.
func speakerLine(line string) (label, rest string, ok bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 || idx > 40 {
		return "", "", false
	}

	label = strings.TrimSpace(line[:idx])
	rest = strings.TrimSpace(line[idx+1:])

	if label == "" {
		return "", "", false
	}
	// Sentence punctuation in the label means a sentence with a colon,
	// not a speaker tag. Likewise "http://..." style schemes.
	if strings.ContainsAny(label, ".!?;,") {
		return "", "", false
	}
	if strings.HasPrefix(rest, "//") {
		return "", "", false
	}
	if len(strings.Fields(label)) > 4 {
		return "", "", false
	}
	return label, rest, true
}

// normalizeRole maps a transcript label onto a speaker role. Labels that
// match neither side (speaker names, initials) stay unknown; the annotation
// prompt carries the role as-is.
func normalizeRole(label string) types.SpeakerRole {
	l := strings.ToLower(strings.TrimSpace(label))

	for _, kw := range []string{"interviewer", "moderator", "facilitator", "int"} {
		if l == kw || strings.HasPrefix(l, kw+" ") {
			return types.RoleInterviewer
		}
	}
	if l == "q" {
		return types.RoleInterviewer
	}

	for _, kw := range []string{"respondent", "participant", "interviewee", "resident", "citizen"} {
		if l == kw || strings.HasPrefix(l, kw+" ") {
			return types.RoleParticipant
		}
	}
	if l == "a" || l == "p" {
		return types.RoleParticipant
	}

	return types.RoleUnknown
}
