package corpus

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/segment"
	"interview-insights-go/internal/types"
)

// Loader reads interview documents from the corpus directory and enriches
// them with roster metadata when a roster workbook is configured.
type Loader struct {
	dir    string
	roster map[string]RosterEntry
	log    *logger.Logger
}

func NewLoader(dir, rosterFile string, log *logger.Logger) (*Loader, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, apperrors.Wrap(err, "corpus directory not accessible",
			map[string]interface{}{"dir": dir})
	}
	if !info.IsDir() {
		return nil, apperrors.NewInvalidInput("corpus path is not a directory",
			map[string]interface{}{"dir": dir})
	}

	l := &Loader{dir: dir, log: log}

	if rosterFile != "" {
		roster, err := LoadRoster(rosterFile)
		if err != nil {
			// A broken roster degrades metadata, it does not stop a run.
			log.WithError(err).WithField("roster", rosterFile).
				Warn("Roster workbook unavailable, continuing without it")
		} else {
			l.roster = roster
			log.WithField("entries", len(roster)).Debug("Roster loaded")
		}
	}

	return l, nil
}

// Documents returns the sorted paths of annotatable documents in the
// corpus directory. Hidden files and non-transcript extensions are skipped.
func (l *Loader) Documents() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, apperrors.Wrap(err, "list corpus directory",
			map[string]interface{}{"dir": l.dir})
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".txt", ".md":
			paths = append(paths, filepath.Join(l.dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Load reads and segments one document. Unreadable files and transcripts
// with no speaker turns return errors the runner treats as skip-and-log.
func (l *Loader) Load(path string) (*types.Interview, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewUnreadableDocument("cannot read document",
			map[string]interface{}{"path": path}).WithField("cause", err.Error())
	}
	if !utf8.Valid(data) {
		return nil, apperrors.NewUnreadableDocument("document is not valid UTF-8",
			map[string]interface{}{"path": path})
	}

	base := filepath.Base(path)
	id, date, ok := ParseFilename(base)
	if !ok {
		id = strings.TrimSuffix(base, filepath.Ext(base))
		if info, statErr := os.Stat(path); statErr == nil {
			date = info.ModTime()
		}
		l.log.WithField("file", base).
			Warn("Filename does not follow YYYYMMDD_HHMM_<id> convention, using file stem as id")
	}

	turns, err := segment.Segment(string(data))
	if err != nil {
		return nil, apperrors.Wrap(err, "segment document",
			map[string]interface{}{"path": path, "interview_id": id})
	}

	meta := types.InterviewMetadata{
		Date:       date,
		SourceFile: base,
	}
	if entry, found := l.roster[id]; found {
		meta.Location = entry.Location
		meta.ParticipantCount = entry.ParticipantCount
		if meta.Date.IsZero() && !entry.Date.IsZero() {
			meta.Date = entry.Date
		}
	}

	return &types.Interview{
		ID:       id,
		RawText:  string(data),
		Metadata: meta,
		Turns:    turns,
	}, nil
}

// DocumentID derives the interview id a document loads under without
// reading it, matching Load's fallback for unconventional names.
func DocumentID(path string) string {
	base := filepath.Base(path)
	if id, _, ok := ParseFilename(base); ok {
		return id
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseFilename extracts the interview id and recording time from the
// YYYYMMDD_HHMM_<id>.<ext> convention.
func ParseFilename(name string) (id string, date time.Time, ok bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.SplitN(stem, "_", 3)
	if len(parts) != 3 || len(parts[0]) != 8 || len(parts[1]) != 4 {
		return "", time.Time{}, false
	}
	parsed, err := time.Parse("200601021504", parts[0]+parts[1])
	if err != nil || parts[2] == "" {
		return "", time.Time{}, false
	}
	return parts[2], parsed, true
}
