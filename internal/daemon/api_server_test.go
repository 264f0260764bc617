package daemon

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scriptorium/internal/api"
	"scriptorium/internal/logging"
	"scriptorium/internal/services"
	"scriptorium/internal/snapshot"
	"scriptorium/internal/testsupport"
	"scriptorium/internal/track"
)

func newTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) *Daemon {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	testsupport.SeedProject(t, cfg, "codex", "box", "p0001")
	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func serve(d *Daemon, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	d.server.server.Handler.ServeHTTP(w, r)
	return w
}

func TestHandleStatus(t *testing.T) {
	d := newTestDaemon(t)

	w := serve(d, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.Running {
		t.Fatal("daemon is not started, status should say so")
	}
}

func TestHandleTree(t *testing.T) {
	d := newTestDaemon(t)
	tree, err := d.trees.Tree("codex", "box")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if _, err := tree.Append(track.Root(), snapshot.Meta{Label: "first"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	w := serve(d, httptest.NewRequest(http.MethodGet, "/api/projects/codex/sandboxes/box/tree", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d: %s", w.Code, w.Body.String())
	}
	var view api.SnapshotView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(view.Children) != 1 || view.Children[0].Label != "first" {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestHandleTreeUnknownTrack(t *testing.T) {
	d := newTestDaemon(t)

	w := serve(d, httptest.NewRequest(http.MethodGet, "/api/projects/codex/sandboxes/box/tree?track=7", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status code = %d, want 404", w.Code)
	}
}

func TestHandleScheduleRejectsUnavailableSandbox(t *testing.T) {
	d := newTestDaemon(t)

	body := `{"project":"codex","sandbox":"box","parentTrack":"",` +
		`"definition":{"id":"wf","steps":[{"provider":"copyimages","kind":"segmentation"}]},` +
		`"rights":{"execute":false}}`
	w := serve(d, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body)))
	if w.Code != http.StatusConflict {
		t.Fatalf("status code = %d, want 409: %s", w.Code, w.Body.String())
	}
}

func TestHandleScheduleAccepted(t *testing.T) {
	d := newTestDaemon(t)

	body := `{"project":"codex","sandbox":"box","parentTrack":"",` +
		`"definition":{"id":"wf","steps":[{"provider":"copyimages","kind":"segmentation"}]},` +
		`"rights":{"execute":true}}`
	w := serve(d, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body)))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status code = %d: %s", w.Code, w.Body.String())
	}

	list := serve(d, httptest.NewRequest(http.MethodGet, "/api/jobs?status=queued", nil))
	if list.Code != http.StatusOK {
		t.Fatalf("list status code = %d", list.Code)
	}
	var payload struct {
		Jobs []api.JobView `json:"jobs"`
	}
	if err := json.Unmarshal(list.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(payload.Jobs))
	}
}

func TestWriteErrHidesInternalErrors(t *testing.T) {
	srv := &apiServer{}

	w := httptest.NewRecorder()
	srv.writeErr(w, errors.New("open /var/lib/scriptorium/jobs.db: permission denied"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status code = %d, want 500", w.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["error"] != "service unavailable" {
		t.Fatalf("error = %q, internal text must not cross the boundary", payload["error"])
	}

	w = httptest.NewRecorder()
	srv.writeErr(w, services.Wrap(services.ErrConflict, "snapshot", "lock", "snapshot is locked", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("status code = %d, want 409", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(payload["error"], "snapshot is locked") {
		t.Fatalf("taxonomy errors keep their message, got %q", payload["error"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	d := newTestDaemon(t, testsupport.WithAPIToken("secret"))

	w := serve(d, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status code = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if w := serve(d, req); w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", w.Code)
	}
}
