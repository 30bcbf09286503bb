package web

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sumannaidur/extractor/internal/core/sink"
	"github.com/sumannaidur/extractor/internal/interfaces"
	"github.com/sumannaidur/extractor/internal/shared"
)

const shutdownTimeout = 10 * time.Second

// RunFunc executes one pipeline run.
type RunFunc func(ctx context.Context) (*shared.RunSummary, error)

// Server is the dashboard. At most one run is in flight; concurrent triggers
// share its result. Runs outlive the request that started them and stop only
// when the server does.
type Server struct {
	addr         string
	partitionDir string
	languages    []string
	run          RunFunc
	logger       interfaces.LoggerService

	group singleflight.Group

	mu      sync.Mutex
	ctx     context.Context
	lastRun *shared.RunSummary
	lastErr string
}

// NewServer creates a dashboard serving totals from partitionDir. Every
// language in languages is listed even before it has any songs.
func NewServer(addr, partitionDir string, languages []string, run RunFunc, logger interfaces.LoggerService) *Server {
	return &Server{
		addr:         addr,
		partitionDir: partitionDir,
		languages:    languages,
		run:          run,
		logger:       logger,
		ctx:          context.Background(),
	}
}

// LanguageTotal is one row of the totals table.
type LanguageTotal struct {
	Language string `json:"language"`
	Songs    int    `json:"songs"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Totals  []LanguageTotal    `json:"totals"`
	LastRun *shared.RunSummary `json:"lastRun,omitempty"`
	Error   string             `json:"error,omitempty"`
}

type statusRow struct {
	Language string
	Stats    shared.LanguageStats
}

type pageData struct {
	Totals  []LanguageTotal
	Status  []statusRow
	RunID   string
	Message string
}

var pageTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Soundtrack Features</title></head>
<body>
<h1>Soundtrack Features</h1>
{{if .Message}}<p class="message">{{.Message}}</p>{{end}}
<h2>Songs per language</h2>
<table>
<tr><th>Language</th><th>Songs</th></tr>
{{range .Totals}}<tr><td>{{.Language}}</td><td>{{.Songs}}</td></tr>
{{else}}<tr><td colspan="2">No songs yet</td></tr>
{{end}}</table>
{{if .Status}}<h2>Run {{.RunID}}</h2>
<table>
<tr><th>Language</th><th>Movies</th><th>Processed</th><th>Skipped</th><th>Abandoned</th><th>No tracks</th><th>Invalid rows</th><th>Errors</th></tr>
{{range .Status}}<tr><td>{{.Language}}</td><td>{{.Stats.Movies}}</td><td>{{.Stats.Processed}}</td><td>{{.Stats.Skipped}}</td><td>{{.Stats.Abandoned}}</td><td>{{.Stats.NoTracks}}</td><td>{{.Stats.InvalidRows}}</td><td>{{.Stats.Errors}}</td></tr>
{{end}}</table>{{end}}
<form method="post" action="/run"><button type="submit">Run pipeline</button></form>
</body>
</html>
`))

// Handler returns the dashboard routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.indexHandler)
	mux.HandleFunc("POST /run", s.runHandler)
	mux.HandleFunc("GET /api/stats", s.statsHandler)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("🚀 Starting dashboard on http://localhost%s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) totals() ([]LanguageTotal, error) {
	counts, err := sink.PartitionTotals(s.partitionDir)
	if err != nil {
		return nil, err
	}
	for _, lang := range s.languages {
		key := shared.SanitizeFileName(lang)
		if _, ok := counts[key]; !ok {
			counts[key] = 0
		}
	}
	totals := make([]LanguageTotal, 0, len(counts))
	for lang, n := range counts {
		totals = append(totals, LanguageTotal{Language: lang, Songs: n})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Language < totals[j].Language })
	return totals, nil
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	data := pageData{}
	totals, err := s.totals()
	if err != nil {
		data.Message = "Could not read totals: " + err.Error()
	}
	data.Totals = totals

	s.mu.Lock()
	if s.lastRun != nil {
		data.RunID = s.lastRun.RunID
		data.Status = statusRows(s.lastRun)
	}
	if s.lastErr != "" && data.Message == "" {
		data.Message = s.lastErr
	}
	s.mu.Unlock()

	s.render(w, http.StatusOK, data)
}

func (s *Server) runHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	runCtx := s.ctx
	s.mu.Unlock()

	v, err, joined := s.group.Do("run", func() (interface{}, error) {
		return s.run(runCtx)
	})
	if joined {
		s.logger.Debug("Joined in-flight run")
	}
	summary, _ := v.(*shared.RunSummary)
	s.record(summary, err)

	data := pageData{}
	data.Totals, _ = s.totals()
	if summary != nil {
		data.RunID = summary.RunID
		data.Status = statusRows(summary)
	}
	status := http.StatusOK
	if err != nil {
		data.Message = "Run failed: " + err.Error()
		if summary == nil {
			status = http.StatusInternalServerError
			if errors.Is(err, shared.ErrRunInProgress) {
				status = http.StatusConflict
			}
		}
	} else {
		data.Message = "Run finished"
	}
	s.render(w, status, data)
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{}
	totals, err := s.totals()
	if err != nil {
		resp.Error = err.Error()
	}
	resp.Totals = totals

	s.mu.Lock()
	resp.LastRun = s.lastRun
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (s *Server) record(summary *shared.RunSummary, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if summary != nil {
		s.lastRun = summary
	}
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
		s.logger.Error("Dashboard run failed: %v", err)
	}
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Error("Failed to render dashboard: %v", err)
	}
}

func statusRows(summary *shared.RunSummary) []statusRow {
	rows := make([]statusRow, 0, len(summary.Languages))
	for _, lang := range summary.Languages {
		rows = append(rows, statusRow{Language: lang, Stats: *summary.Stats[lang]})
	}
	return rows
}
