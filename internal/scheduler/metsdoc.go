package scheduler

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"scriptorium/internal/mets"
	"scriptorium/internal/project"
	"scriptorium/internal/snapshot"
	"scriptorium/internal/track"
)

// refreshMetsDocument records a freshly appended snapshot in the sandbox
// METS document. The new file group replaces any stale group with the same
// id, and pages are linked for every result file named after a folio.
func (s *Scheduler) refreshMetsDocument(p *project.Project, sandbox project.Sandbox, tree *snapshot.Tree, at track.Track) error {
	template := sandbox.EffectiveGroupTemplate(s.cfg.Mets.GroupTemplate)
	docPath := filepath.Join(tree.Dir(), s.cfg.Mets.DocumentName)

	doc := &mets.Document{}
	if f, err := os.Open(docPath); err == nil {
		parsed, parseErr := mets.Parse(f)
		f.Close()
		if parseErr != nil {
			return parseErr
		}
		doc = parsed
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("open mets document: %w", err)
	}

	groupID := mets.FileGroupID(template, at)
	group := mets.FileGroup{ID: groupID}
	dataDir := tree.DataDir(at)
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return fmt.Errorf("read snapshot data: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		location, err := filepath.Rel(tree.Dir(), filepath.Join(dataDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("relativize file location: %w", err)
		}
		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		file := mets.File{
			ID:           fmt.Sprintf("FILE_%s_%s", base, groupID),
			MimeType:     mimeFor(entry.Name()),
			LocationPath: filepath.ToSlash(location),
		}
		group.Files = append(group.Files, file)
		if _, ok := p.Folio(base); ok {
			doc.UpsertPageFile("PHYS_"+base, file.ID)
		}
	}
	doc.UpsertGroup(group)

	return writeMetsDocument(doc, docPath)
}

// writeMetsDocument replaces the document atomically so readers never see a
// partially written file.
func writeMetsDocument(doc *mets.Document, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".mets-*")
	if err != nil {
		return fmt.Errorf("stage mets document: %w", err)
	}
	if err := mets.Write(doc, tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("flush mets document: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish mets document: %w", err)
	}
	return nil
}

func mimeFor(name string) string {
	if kind := mime.TypeByExtension(filepath.Ext(name)); kind != "" {
		return kind
	}
	return "application/octet-stream"
}
