package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/types"
)

const (
	annotationSuffix = "_final_annotation.json"
	summaryFile      = "validation_summary.json"
)

// Stage names recorded as <stage>.done marker files in the output
// directory. A stage refuses to run until its predecessor's marker
// exists.
const (
	StageAnnotate = "annotate"
	StageValidate = "validate"
	StageExtract  = "extract"
)

// MarkerStamp is the payload of a stage marker file.
type MarkerStamp struct {
	RunID       string    `json:"run_id"`
	CompletedAt time.Time `json:"completed_at"`
	Interviews  int       `json:"interviews"`
}

// Store persists annotation artifacts, the validation summary, and stage
// markers under one output directory.
type Store struct {
	dir string
	log *logger.Logger
}

func NewStore(dir string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Wrap(err, "cannot create output directory",
			map[string]interface{}{"dir": dir})
	}
	return &Store{dir: dir, log: log}, nil
}

func (s *Store) Dir() string { return s.dir }

// AnnotationPath returns where the artifact for an interview lives.
func (s *Store) AnnotationPath(interviewID string) string {
	return filepath.Join(s.dir, interviewID+annotationSuffix)
}

// HasAnnotation reports whether an artifact already exists on disk.
func (s *Store) HasAnnotation(interviewID string) bool {
	_, err := os.Stat(s.AnnotationPath(interviewID))
	return err == nil
}

// WriteAnnotation persists one artifact. The write goes through a temp
// file and a rename so readers never observe a partial artifact.
func (s *Store) WriteAnnotation(ann *types.InterviewAnnotation) error {
	return s.writeJSON(s.AnnotationPath(ann.InterviewID), ann)
}

func (s *Store) ReadAnnotation(interviewID string) (*types.InterviewAnnotation, error) {
	path := s.AnnotationPath(interviewID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFound("no annotation artifact for interview",
				map[string]interface{}{"interview_id": interviewID})
		}
		return nil, apperrors.Wrap(err, "cannot read annotation artifact",
			map[string]interface{}{"path": path})
	}

	var ann types.InterviewAnnotation
	if err := json.Unmarshal(data, &ann); err != nil {
		return nil, apperrors.Wrap(err, "annotation artifact is not valid JSON",
			map[string]interface{}{"path": path})
	}
	return &ann, nil
}

// ListAnnotations loads every artifact in the output directory, sorted by
// interview id. Files that fail to parse are skipped with a warning.
func (s *Store) ListAnnotations() ([]*types.InterviewAnnotation, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, apperrors.Wrap(err, "cannot list output directory",
			map[string]interface{}{"dir": s.dir})
	}

	var anns []*types.InterviewAnnotation
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), annotationSuffix) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), annotationSuffix)
		ann, err := s.ReadAnnotation(id)
		if err != nil {
			s.log.WithError(err).WithField("file", entry.Name()).Warn("Skipping unreadable artifact")
			continue
		}
		anns = append(anns, ann)
	}

	sort.Slice(anns, func(i, j int) bool {
		return anns[i].InterviewID < anns[j].InterviewID
	})
	return anns, nil
}

func (s *Store) SummaryPath() string {
	return filepath.Join(s.dir, summaryFile)
}

func (s *Store) WriteSummary(summary *types.ValidationSummary) error {
	return s.writeJSON(s.SummaryPath(), summary)
}

func (s *Store) ReadSummary() (*types.ValidationSummary, error) {
	data, err := os.ReadFile(s.SummaryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFound("no validation summary, run the validate stage first")
		}
		return nil, apperrors.Wrap(err, "cannot read validation summary")
	}

	var summary types.ValidationSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, apperrors.Wrap(err, "validation summary is not valid JSON")
	}
	return &summary, nil
}

func (s *Store) markerPath(stage string) string {
	return filepath.Join(s.dir, stage+".done")
}

// WriteMarker records stage completion.
func (s *Store) WriteMarker(stage string, stamp MarkerStamp) error {
	return s.writeJSON(s.markerPath(stage), stamp)
}

// ReadMarker loads a stage marker; a missing marker means the stage has
// not completed for this output directory.
func (s *Store) ReadMarker(stage string) (*MarkerStamp, error) {
	data, err := os.ReadFile(s.markerPath(stage))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewMarkerMissing("stage has not completed",
				map[string]interface{}{"stage": stage})
		}
		return nil, apperrors.Wrap(err, "cannot read stage marker",
			map[string]interface{}{"stage": stage})
	}

	var stamp MarkerStamp
	if err := json.Unmarshal(data, &stamp); err != nil {
		return nil, apperrors.Wrap(err, "stage marker is not valid JSON",
			map[string]interface{}{"stage": stage})
	}
	return &stamp, nil
}

func (s *Store) writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, "cannot marshal artifact",
			map[string]interface{}{"path": path})
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return apperrors.Wrap(err, "cannot create temp file",
			map[string]interface{}{"dir": s.dir})
	}

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return apperrors.Wrap(err, "cannot write artifact",
			map[string]interface{}{"path": path})
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return apperrors.Wrap(err, "cannot set artifact permissions",
			map[string]interface{}{"path": path})
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return apperrors.Wrap(err, "cannot close artifact",
			map[string]interface{}{"path": path})
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return apperrors.Wrap(err, "cannot finalize artifact",
			map[string]interface{}{"path": path})
	}
	return nil
}
