package logger

import (
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "interview-insights-go/internal/errors"
)

type Logger struct {
	*logrus.Entry
}

func New() *Logger {
	base := logrus.New()

	// Local env = pretty console; others = JSON
	env := os.Getenv("ENVIRONMENT")
	if env == "" || env == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
			ForceColors:     true,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	base.SetOutput(os.Stdout)

	// Log level
	level := os.Getenv("LOG_LEVEL")
	switch level {
	case "debug":
		base.SetLevel(logrus.DebugLevel)
	case "warn":
		base.SetLevel(logrus.WarnLevel)
	case "error":
		base.SetLevel(logrus.ErrorLevel)
	default:
		base.SetLevel(logrus.InfoLevel)
	}

	return &Logger{Entry: logrus.NewEntry(base)}
}

// WithInterview scopes log output to one interview.
func (l *Logger) WithInterview(id string) *logrus.Entry {
	return l.Entry.WithField("interview_id", id)
}

// WithStage scopes log output to a pipeline stage (annotate, validate, ...).
func (l *Logger) WithStage(stage string) *logrus.Entry {
	return l.Entry.WithField("stage", stage)
}

// WithRun scopes log output to one batch run.
func (l *Logger) WithRun(runID string) *logrus.Entry {
	return l.Entry.WithField("run_id", runID)
}

// WithRequest attaches request metadata and returns an entry
func (l *Logger) WithRequest(r *http.Request) *logrus.Entry {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.New().String()
	}

	return l.WithFields(logrus.Fields{
		"req_id":     reqID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote_ip":  r.RemoteAddr,
		"user_agent": r.UserAgent(),
	})
}

// WithError standardizes error logging. Structured errors contribute their
// context fields, code, and origin location.
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}

	entry := l.Entry.WithField("error", err.Error())

	var structured *apperrors.Error
	if apperrors.As(err, &structured) {
		if fields := structured.GetFields(); len(fields) > 0 {
			entry = entry.WithFields(logrus.Fields(fields))
		}
		if structured.Code != "" {
			entry = entry.WithField("error_code", structured.Code)
		}
		entry = entry.WithField("error_at", structured.Location())
	}
	return entry
}
