package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"scriptorium/internal/api"
	"scriptorium/internal/collection"
	"scriptorium/internal/config"
	"scriptorium/internal/export"
	"scriptorium/internal/logging"
	"scriptorium/internal/project"
	"scriptorium/internal/scheduler"
	"scriptorium/internal/track"
	"scriptorium/internal/workflow"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger,
		daemon: d,
	}

	token := cfg.Paths.APIToken
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/jobs", authMiddleware(token, srv.handleJobs))
	mux.HandleFunc("/api/jobs/", authMiddleware(token, srv.handleJob))
	mux.HandleFunc("/api/projects/", authMiddleware(token, srv.handleProjects))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

// handleJobs serves GET /api/jobs (list, optional status filters) and
// POST /api/jobs (schedule).
func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var statuses []scheduler.Status
		for _, value := range r.URL.Query()["status"] {
			status, ok := scheduler.ParseStatus(value)
			if !ok {
				s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown job status %q", value))
				return
			}
			statuses = append(statuses, status)
		}
		jobs, err := s.daemon.store.List(r.Context(), statuses...)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"jobs": api.FromJobs(jobs)})
	case http.MethodPost:
		s.handleSchedule(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type scheduleRequest struct {
	Project          string              `json:"project"`
	Sandbox          string              `json:"sandbox"`
	ParentTrack      string              `json:"parentTrack"`
	Definition       workflow.Definition `json:"definition"`
	ShortDescription string              `json:"shortDescription"`
	Rights           struct {
		Execute bool `json:"execute"`
		Special bool `json:"special"`
	} `json:"rights"`
}

func (s *apiServer) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	parent, err := track.Parse(req.ParentTrack)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	handle, err := s.daemon.Schedule(r.Context(), scheduler.Request{
		ProjectID:        req.Project,
		SandboxID:        req.Sandbox,
		ParentTrack:      parent,
		Definition:       req.Definition,
		ShortDescription: req.ShortDescription,
		Rights:           project.Rights{Execute: req.Rights.Execute, Special: req.Rights.Special},
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, handle)
}

// handleJob serves GET /api/jobs/{id} and POST /api/jobs/{id}/cancel.
func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		job, err := s.daemon.store.GetByID(r.Context(), id)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		if job == nil {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.FromJob(job))
	case action == "cancel" && r.Method == http.MethodPost:
		cancelled, err := s.daemon.CancelJob(r.Context(), id)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleProjects routes /api/projects/{project}/sandboxes/{sandbox}/{op}
// where op is tree, export, or collect.
func (s *apiServer) handleProjects(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/projects/"), "/")
	if len(parts) != 4 || parts[1] != "sandboxes" || parts[0] == "" || parts[2] == "" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	projectID, sandboxID, op := parts[0], parts[2], parts[3]

	switch op {
	case "tree":
		s.handleTree(w, r, projectID, sandboxID)
	case "export":
		s.handleExport(w, r, projectID, sandboxID)
	case "collect":
		s.handleCollect(w, r, projectID, sandboxID)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) handleTree(w http.ResponseWriter, r *http.Request, projectID, sandboxID string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	at, err := track.Parse(r.URL.Query().Get("track"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tree, err := s.daemon.trees.Tree(projectID, sandboxID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	view, err := api.FromTree(tree, at)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *apiServer) handleExport(w http.ResponseWriter, r *http.Request, projectID, sandboxID string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	at, err := track.Parse(query.Get("track"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := export.Request{
		ProjectID:           projectID,
		SandboxID:           sandboxID,
		Track:               at,
		NormalizeFilenames:  boolParam(query.Get("normalize")),
		IncludeSourceImages: boolParam(query.Get("source")),
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="snapshot.zip"`)
	if err := s.daemon.exporter.ZipSnapshot(r.Context(), w, req); err != nil {
		// Headers may already be out; log instead of rewriting the status.
		s.log().Error("export failed", logging.Error(err))
	}
}

type collectRequest struct {
	Track           string   `json:"track"`
	Collection      string   `json:"collection"`
	SetName         string   `json:"setName"`
	Kind            string   `json:"kind"`
	Folios          []string `json:"folios,omitempty"`
	IncludeKeywords bool     `json:"includeKeywords"`
	Overwrite       bool     `json:"overwrite"`
}

func (s *apiServer) handleCollect(w http.ResponseWriter, r *http.Request, projectID, sandboxID string) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req collectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	at, err := track.Parse(req.Track)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	set, err := s.daemon.bridge.AddSnapshot(r.Context(), collection.AddSnapshotRequest{
		ProjectID:       projectID,
		SandboxID:       sandboxID,
		Track:           at,
		Collection:      req.Collection,
		SetName:         req.SetName,
		Kind:            workflow.StepKind(req.Kind),
		Folios:          req.Folios,
		IncludeKeywords: req.IncludeKeywords,
		Overwrite:       req.Overwrite,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": set.ID, "name": set.Name})
}

func boolParam(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

// writeErr maps taxonomy errors onto status codes. Anything outside the
// taxonomy is logged and reported generically so internal error text never
// crosses the boundary.
func (s *apiServer) writeErr(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.log().Error("internal error", logging.Error(err))
		s.writeError(w, status, "service unavailable")
		return
	}
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
