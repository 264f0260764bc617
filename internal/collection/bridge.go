package collection

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"scriptorium/internal/config"
	"scriptorium/internal/logging"
	"scriptorium/internal/mets"
	"scriptorium/internal/project"
	"scriptorium/internal/services"
	"scriptorium/internal/snapshot"
	"scriptorium/internal/track"
	"scriptorium/internal/workflow"
)

// AddSnapshotRequest describes one snapshot import into a collection.
type AddSnapshotRequest struct {
	ProjectID  string
	SandboxID  string
	Track      track.Track
	Collection string
	// SetName is the display name recorded for the imported set; defaults
	// to "<project>/<sandbox>@<track>".
	SetName string
	// Kind is the workflow kind that produced the snapshot. Only
	// import-capable kinds expose page-addressable output.
	Kind workflow.StepKind
	// Folios selects the folio subset to import; empty imports every
	// in-project folio the document maps.
	Folios []string
	// IncludeKeywords records project, sandbox, and snapshot label as
	// searchable keywords on the imported set.
	IncludeKeywords bool
	Overwrite       bool
}

// Bridge copies a snapshot's page files into a collection, resolving files
// through the sandbox METS document so imported names follow folio ids.
type Bridge struct {
	cfg      *config.Config
	projects *project.Store
	trees    *snapshot.Manager
	store    *Store
	logger   *slog.Logger
}

// NewBridge constructs a bridge over the given stores.
func NewBridge(cfg *config.Config, projects *project.Store, trees *snapshot.Manager, store *Store, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bridge{
		cfg:      cfg,
		projects: projects,
		trees:    trees,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "collection"),
	}
}

// AddSnapshot stages the snapshot's files under folio-derived names and
// hands them to the store. Staging is removed regardless of outcome. Files
// missing on disk, unmapped to a folio, mapped to a folio the project does
// not know, or outside the selected folio scope are skipped; an absent file
// group means the document does not describe this snapshot yet.
func (b *Bridge) AddSnapshot(ctx context.Context, req AddSnapshotRequest) (Set, error) {
	if !req.Kind.Importable() {
		return Set{}, services.Wrap(services.ErrValidation, "collection", "add-snapshot",
			fmt.Sprintf("workflow kind %q does not produce importable output", req.Kind), nil)
	}

	p, err := b.projects.Load(req.ProjectID)
	if err != nil {
		return Set{}, err
	}
	sandbox, ok := p.Sandbox(req.SandboxID)
	if !ok {
		return Set{}, services.Wrap(services.ErrValidation, "collection", "add-snapshot",
			fmt.Sprintf("sandbox %q does not exist in project %q", req.SandboxID, req.ProjectID), nil)
	}
	tree, err := b.trees.Tree(req.ProjectID, req.SandboxID)
	if err != nil {
		return Set{}, err
	}
	view, err := tree.Resolve(req.Track)
	if err != nil {
		return Set{}, err
	}

	doc, err := b.openDocument(tree)
	if err != nil {
		return Set{}, err
	}
	template := sandbox.EffectiveGroupTemplate(b.cfg.Mets.GroupTemplate)
	files, err := mets.FilesForTrack(doc, template, req.Track)
	if err != nil {
		return Set{}, err
	}
	pages := mets.ResolvePages(doc, mets.DefaultPageResolver, b.logger)

	selected := make(map[string]struct{}, len(req.Folios))
	for _, folioID := range req.Folios {
		selected[folioID] = struct{}{}
	}

	setID := uuid.NewString()
	stagingDir := filepath.Join(b.cfg.Paths.StagingDir, "collection", setID)
	defer func() {
		if err := os.RemoveAll(stagingDir); err != nil {
			b.logger.Warn("clean collection staging", logging.Error(err))
		}
	}()
	setDir := filepath.Join(stagingDir, setID)
	if err := os.MkdirAll(setDir, 0o755); err != nil {
		return Set{}, fmt.Errorf("create collection staging: %w", err)
	}

	staged := 0
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return Set{}, err
		}
		folioID, ok := mets.FolioForFile(file.ID, pages)
		if !ok {
			continue
		}
		if _, known := p.Folio(folioID); !known {
			continue
		}
		if len(selected) > 0 {
			if _, inScope := selected[folioID]; !inScope {
				continue
			}
		}
		src := filepath.Join(tree.Dir(), filepath.FromSlash(file.LocationPath))
		if _, err := os.Stat(src); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Set{}, fmt.Errorf("stat %s: %w", src, err)
		}
		dst := filepath.Join(setDir, folioID+filepath.Ext(file.LocationPath))
		if err := copyFile(src, dst); err != nil {
			return Set{}, fmt.Errorf("stage %s: %w", src, err)
		}
		staged++
	}
	b.logger.Info("snapshot staged for collection",
		logging.String(logging.FieldProject, req.ProjectID),
		logging.String(logging.FieldSandbox, req.SandboxID),
		logging.String(logging.FieldTrack, req.Track.String()),
		logging.Int("files", staged))

	name := req.SetName
	if name == "" {
		at := req.Track.String()
		if req.Track.IsRoot() {
			at = "root"
		}
		name = fmt.Sprintf("%s/%s@%s", req.ProjectID, req.SandboxID, at)
	}
	var keywords []string
	if req.IncludeKeywords {
		keywords = append(keywords, req.ProjectID, req.SandboxID)
		if view.Label != "" {
			keywords = append(keywords, view.Label)
		}
	}
	sets, err := b.store.Add(ctx, req.Collection, []Set{{ID: setID, Name: name, Keywords: keywords}}, stagingDir, req.Overwrite)
	if err != nil {
		return Set{}, err
	}
	return sets[0], nil
}

func (b *Bridge) openDocument(tree *snapshot.Tree) (*mets.Document, error) {
	path := filepath.Join(tree.Dir(), b.cfg.Mets.DocumentName)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrPreconditionFailed, "collection", "add-snapshot",
				"sandbox has no document describing its snapshots", nil)
		}
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	return mets.Parse(f)
}
