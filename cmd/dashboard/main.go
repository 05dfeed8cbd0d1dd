package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"interview-insights-go/internal/config"
	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/review"
	"interview-insights-go/internal/store"
	"interview-insights-go/internal/types"
	"interview-insights-go/internal/validator"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "interview-insights-dashboard").Info("starting service")

	cfg, err := config.Load(log)
	if err != nil {
		log.WithError(err).Fatal("configuration invalid")
	}

	st, err := store.NewStore(cfg.Corpus.OutputDir, log)
	if err != nil {
		log.WithError(err).Fatal("cannot open artifact store")
	}

	// The dashboard reads whatever the pipeline has produced so far; a
	// missing validate marker just means the numbers are not final yet.
	if _, err := st.ReadMarker(store.StageValidate); err != nil {
		log.WithError(err).Warn("Validate stage has not completed, serving partial data")
	}

	addr := fmt.Sprintf(":%s", cfg.HTTP.DashboardPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      newMux(st),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}

func newMux(st *store.Store) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, indexPage)
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.New().WithRequest(r).Info("health check")
		fmt.Fprint(w, "ok")
	})

	// summary endpoint
	mux.HandleFunc("/api/summary", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "summary")

		summary, err := st.ReadSummary()
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				reqLog.Warn("no validation summary yet")
				http.Error(w, "no validation summary, run the validate stage first", http.StatusNotFound)
				return
			}
			reqLog.WithError(err).Error("summary read failed")
			http.Error(w, "summary read failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, reqLog, summary)
	})

	// interview list endpoint (per-interview report rows)
	mux.HandleFunc("/api/interviews", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "interviews")

		anns, err := st.ListAnnotations()
		if err != nil {
			reqLog.WithError(err).Error("artifact listing failed")
			http.Error(w, "artifact listing failed", http.StatusInternalServerError)
			return
		}

		statusFilter := r.URL.Query().Get("status")
		reports := make([]types.InterviewReport, 0, len(anns))
		for _, ann := range anns {
			if statusFilter != "" && string(ann.Status) != statusFilter {
				continue
			}
			reports = append(reports, validator.ReportFor(ann))
		}
		reqLog.WithField("interviews", len(reports)).Info("interview list served")
		writeJSON(w, reqLog, reports)
	})

	// single interview endpoint (full artifact)
	mux.HandleFunc("/api/interviews/", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "interview")

		id := strings.TrimPrefix(r.URL.Path, "/api/interviews/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}

		ann, err := st.ReadAnnotation(id)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				http.Error(w, "unknown interview", http.StatusNotFound)
				return
			}
			reqLog.WithError(err).Error("artifact read failed")
			http.Error(w, "artifact read failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, reqLog.WithField("interview_id", id), ann)
	})

	// followup hints endpoint
	mux.HandleFunc("/api/hints", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "hints")

		summary, err := st.ReadSummary()
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				http.Error(w, "no validation summary, run the validate stage first", http.StatusNotFound)
				return
			}
			reqLog.WithError(err).Error("summary read failed")
			http.Error(w, "summary read failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, reqLog, review.Hints(summary))
	})

	// pipeline stage status endpoint
	mux.HandleFunc("/api/stages", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "stages")

		stages := make(map[string]*store.MarkerStamp, 3)
		for _, stage := range []string{store.StageAnnotate, store.StageValidate, store.StageExtract} {
			stamp, err := st.ReadMarker(stage)
			if err != nil {
				stages[stage] = nil
				continue
			}
			stages[stage] = stamp
		}
		writeJSON(w, reqLog, stages)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, log *logrus.Entry, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
    <title>Interview Insights</title>
    <style>
        body { font-family: sans-serif; max-width: 1100px; margin: 0 auto; padding: 20px; color: #222; }
        h1 { color: #333; }
        .cards { display: flex; gap: 12px; margin: 20px 0; }
        .card { background: #f5f5f5; border-radius: 5px; padding: 12px 18px; min-width: 110px; }
        .card .num { font-size: 1.6em; font-weight: bold; }
        .card .lbl { color: #666; font-size: 0.85em; }
        table { border-collapse: collapse; width: 100%; margin: 12px 0; }
        th, td { text-align: left; padding: 6px 10px; border-bottom: 1px solid #ddd; }
        tr.flagged { background: #fff3cd; }
        #hints li { margin: 6px 0; }
        .muted { color: #888; }
    </style>
</head>
<body>
    <h1>Interview Insights</h1>
    <div class="cards" id="cards"></div>
    <h2>Interviews</h2>
    <table>
        <thead><tr><th>ID</th><th>Status</th><th>Quality</th><th>Coverage</th><th>Turns</th><th>Cost</th><th>Issues</th></tr></thead>
        <tbody id="rows"><tr><td colspan="7" class="muted">loading...</td></tr></tbody>
    </table>
    <h2>Followups</h2>
    <ul id="hints"><li class="muted">loading...</li></ul>

    <script>
        function card(label, value) {
            return '<div class="card"><div class="num">' + value + '</div><div class="lbl">' + label + '</div></div>';
        }

        fetch('/api/summary').then(function(r) {
            if (!r.ok) { throw new Error('no summary yet'); }
            return r.json();
        }).then(function(s) {
            document.getElementById('cards').innerHTML =
                card('interviews', s.total_interviews) +
                card('accepted', s.accepted) +
                card('flagged', s.flagged_for_review) +
                card('success rate', s.success_rate.toFixed(1) + '%') +
                card('total cost', '$' + s.total_cost_usd.toFixed(4));
        }).catch(function(err) {
            document.getElementById('cards').innerHTML = '<div class="muted">' + err.message + ' (run the validate stage)</div>';
        });

        fetch('/api/interviews').then(function(r) { return r.json(); }).then(function(reports) {
            var rows = reports.map(function(rep) {
                var cls = rep.status === 'flagged_for_review' ? ' class="flagged"' : '';
                return '<tr' + cls + '><td><a href="/api/interviews/' + rep.interview_id + '">' + rep.interview_id + '</a></td>' +
                    '<td>' + rep.status + '</td>' +
                    '<td>' + rep.quality_score.toFixed(2) + '</td>' +
                    '<td>' + rep.coverage_percentage.toFixed(1) + '%</td>' +
                    '<td>' + rep.analyzed_turns + '/' + rep.total_turns + '</td>' +
                    '<td>$' + rep.cost_usd.toFixed(4) + '</td>' +
                    '<td>' + (rep.issues || []).join('; ') + '</td></tr>';
            });
            document.getElementById('rows').innerHTML = rows.join('') || '<tr><td colspan="7" class="muted">no artifacts</td></tr>';
        });

        fetch('/api/hints').then(function(r) {
            if (!r.ok) { throw new Error('no hints yet'); }
            return r.json();
        }).then(function(hints) {
            document.getElementById('hints').innerHTML = hints.map(function(h) {
                return '<li><b>' + h.finding + '</b><br>' + h.action + ' <span class="muted">(' + h.impact + ')</span></li>';
            }).join('');
        }).catch(function(err) {
            document.getElementById('hints').innerHTML = '<li class="muted">' + err.message + '</li>';
        });
    </script>
</body>
</html>
`
