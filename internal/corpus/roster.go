package corpus

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "interview-insights-go/internal/errors"
)

// RosterEntry is per-interview metadata supplied by the optional corpus
// workbook. Fields left blank in the sheet stay zero.
type RosterEntry struct {
	InterviewID      string
	Date             time.Time
	Location         string
	ParticipantCount int
}

var rosterDateLayouts = []string{
	"2006-01-02", "2006/01/02", "02.01.2006", "01/02/2006", "20060102",
}

// LoadRoster reads the workbook's first sheet, detecting columns by header
// heuristics: an id column, and optional date, location, and participant
// count columns. Rows without an id are skipped.
func LoadRoster(path string) (map[string]RosterEntry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, "open roster workbook",
			map[string]interface{}{"path": path})
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.New("roster workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.Wrap(err, "read roster rows")
	}
	if len(rows) <= 1 {
		return nil, apperrors.New("roster workbook has no data rows")
	}

	idIdx := -1
	dateIdx := -1
	locIdx := -1
	countIdx := -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "interview") && strings.Contains(l, "id") || l == "id":
			if idIdx == -1 {
				idIdx = i
			}
		case strings.Contains(l, "date") || strings.Contains(l, "recorded"):
			if dateIdx == -1 {
				dateIdx = i
			}
		case strings.Contains(l, "location") || strings.Contains(l, "ward") ||
			strings.Contains(l, "district") || strings.Contains(l, "place"):
			if locIdx == -1 {
				locIdx = i
			}
		case strings.Contains(l, "participant") || strings.Contains(l, "attendee") ||
			strings.Contains(l, "group size"):
			if countIdx == -1 {
				countIdx = i
			}
		}
	}
	if idIdx == -1 {
		// Conventional layouts put the id first.
		idIdx = 0
	}

	cell := func(r []string, idx int) string {
		if idx >= 0 && idx < len(r) {
			return strings.TrimSpace(r[idx])
		}
		return ""
	}

	entries := make(map[string]RosterEntry)
	for i, r := range rows {
		if i == 0 {
			continue
		}
		entry := RosterEntry{InterviewID: cell(r, idIdx)}
		if entry.InterviewID == "" {
			continue
		}
		if raw := cell(r, dateIdx); raw != "" {
			for _, layout := range rosterDateLayouts {
				if d, err := time.Parse(layout, raw); err == nil {
					entry.Date = d
					break
				}
			}
		}
		entry.Location = cell(r, locIdx)
		if raw := cell(r, countIdx); raw != "" {
			entry.ParticipantCount, _ = strconv.Atoi(raw)
		}
		entries[entry.InterviewID] = entry
	}
	return entries, nil
}
