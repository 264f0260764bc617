package export

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"scriptorium/internal/config"
	"scriptorium/internal/logging"
	"scriptorium/internal/mets"
	"scriptorium/internal/project"
	"scriptorium/internal/services"
	"scriptorium/internal/snapshot"
	"scriptorium/internal/track"
)

const mappingFileName = "filenames.tsv"

// Request describes one snapshot export.
type Request struct {
	ProjectID string
	SandboxID string
	Track     track.Track
	// NormalizeFilenames applies NFC normalization and case-insensitive
	// collision detection to archive entry names.
	NormalizeFilenames bool
	// IncludeSourceImages adds the project's folio images under source/,
	// deduped independently of the snapshot entries.
	IncludeSourceImages bool
}

// Exporter renders snapshots addressed through the sandbox document.
type Exporter struct {
	cfg      *config.Config
	projects *project.Store
	trees    *snapshot.Manager
	logger   *slog.Logger
}

// NewExporter constructs an exporter over the given stores.
func NewExporter(cfg *config.Config, projects *project.Store, trees *snapshot.Manager, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Exporter{
		cfg:      cfg,
		projects: projects,
		trees:    trees,
		logger:   logging.NewComponentLogger(logger, "export"),
	}
}

// ZipSnapshot streams the snapshot's files into w as a zip archive. Entry
// names derive from folio names where the document maps a file to a page;
// unmapped files keep their base name. The name mapping is bundled as
// filenames.tsv.
func (e *Exporter) ZipSnapshot(ctx context.Context, w io.Writer, req Request) error {
	p, err := e.projects.Load(req.ProjectID)
	if err != nil {
		return err
	}
	sandbox, ok := p.Sandbox(req.SandboxID)
	if !ok {
		return services.Wrap(services.ErrValidation, "export", "zip",
			fmt.Sprintf("sandbox %q does not exist in project %q", req.SandboxID, req.ProjectID), nil)
	}
	tree, err := e.trees.Tree(req.ProjectID, req.SandboxID)
	if err != nil {
		return err
	}
	if _, err := tree.Resolve(req.Track); err != nil {
		return err
	}

	doc, err := e.openDocument(tree)
	if err != nil {
		return err
	}
	template := sandbox.EffectiveGroupTemplate(e.cfg.Mets.GroupTemplate)
	files, err := mets.FilesForTrack(doc, template, req.Track)
	if err != nil {
		return err
	}
	pages := mets.ResolvePages(doc, mets.DefaultPageResolver, e.logger)

	archive := zip.NewWriter(w)
	names := newNamer(req.NormalizeFilenames)
	var mapping [][2]string

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := filepath.Join(tree.Dir(), filepath.FromSlash(file.LocationPath))
		if _, err := os.Stat(src); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				e.logger.Warn("export skips missing file", logging.String("location", file.LocationPath))
				continue
			}
			return fmt.Errorf("stat %s: %w", src, err)
		}
		display := path.Base(file.LocationPath)
		if folioID, ok := mets.FolioForFile(file.ID, pages); ok {
			if folio, ok := p.Folio(folioID); ok && folio.Name != "" {
				display = folio.Name + path.Ext(file.LocationPath)
			}
		}
		name := names.claim(display)
		if err := addZipEntry(archive, name, src); err != nil {
			return err
		}
		mapping = append(mapping, [2]string{name, file.LocationPath})
	}

	if req.IncludeSourceImages {
		if err := e.addSourceImages(ctx, archive, p, req.NormalizeFilenames, &mapping); err != nil {
			return err
		}
	}

	if err := writeMapping(archive, mapping); err != nil {
		return err
	}
	return archive.Close()
}

// addSourceImages bundles the folio originals under source/ with their own
// dedup namespace so a snapshot entry never forces a suffix on a source
// image or vice versa.
func (e *Exporter) addSourceImages(ctx context.Context, archive *zip.Writer, p *project.Project, normalize bool, mapping *[][2]string) error {
	foliosDir := e.projects.FoliosDir(p.ID)
	entries, err := os.ReadDir(foliosDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read folios: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	names := newNamer(normalize)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		display := entry.Name()
		base := strings.TrimSuffix(display, path.Ext(display))
		if folio, ok := p.Folio(base); ok && folio.Name != "" {
			display = folio.Name + path.Ext(entry.Name())
		}
		name := "source/" + names.claim(display)
		if err := addZipEntry(archive, name, filepath.Join(foliosDir, entry.Name())); err != nil {
			return err
		}
		*mapping = append(*mapping, [2]string{name, "folios/" + entry.Name()})
	}
	return nil
}

func addZipEntry(archive *zip.Writer, name, src string) error {
	entry, err := archive.Create(name)
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", name, err)
	}
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()
	if _, err := io.Copy(entry, f); err != nil {
		return fmt.Errorf("write archive entry %s: %w", name, err)
	}
	return nil
}

func writeMapping(archive *zip.Writer, mapping [][2]string) error {
	entry, err := archive.Create(mappingFileName)
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", mappingFileName, err)
	}
	var builder strings.Builder
	for _, pair := range mapping {
		builder.WriteString(pair[0])
		builder.WriteByte('\t')
		builder.WriteString(pair[1])
		builder.WriteByte('\n')
	}
	if _, err := io.WriteString(entry, builder.String()); err != nil {
		return fmt.Errorf("write archive entry %s: %w", mappingFileName, err)
	}
	return nil
}

func (e *Exporter) openDocument(tree *snapshot.Tree) (*mets.Document, error) {
	docPath := filepath.Join(tree.Dir(), e.cfg.Mets.DocumentName)
	f, err := os.Open(docPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrPreconditionFailed, "export", "zip",
				"sandbox has no document describing its snapshots", nil)
		}
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	return mets.Parse(f)
}
