package mets

import (
	"fmt"
	"log/slog"
	"strings"

	"scriptorium/internal/logging"
	"scriptorium/internal/services"
	"scriptorium/internal/track"
)

// rootGroupToken names the root snapshot inside a file-group id, since the
// root track renders as the empty string. Tracks render as digits and dots
// only, so the token cannot collide with a non-root track.
const rootGroupToken = "ROOT"

// FileGroupID derives the external file-group id for a track. The function
// is pure: identical (template, track) pairs always yield the identical id,
// and distinct tracks never collide because the dotted track form is
// injective.
func FileGroupID(groupTemplate string, at track.Track) string {
	token := at.String()
	if token == "" {
		token = rootGroupToken
	}
	return strings.ReplaceAll(groupTemplate, "{}", token)
}

// FilesForTrack computes the file group id for a track and looks it up in
// the parsed document. An absent group is a PreconditionFailed: the
// snapshot's provider never wrote output in the expected layout, or the
// document is stale.
func FilesForTrack(doc *Document, groupTemplate string, at track.Track) ([]File, error) {
	groupID := FileGroupID(groupTemplate, at)
	group, ok := doc.Group(groupID)
	if !ok {
		return nil, services.Wrap(services.ErrPreconditionFailed, "mets", "files-for-track",
			fmt.Sprintf("document has no file group %q for track [%s]", groupID, at), nil)
	}
	return group.Files, nil
}

// PageResolver maps a structural page id onto a folio id. Group-specific
// naming conventions implement this; the adapter only invokes it.
type PageResolver func(pageID string) (folioID string, ok bool)

// PrefixPageResolver resolves page ids of the form "<prefix><folioID>",
// the convention used by the default document writer.
func PrefixPageResolver(prefix string) PageResolver {
	return func(pageID string) (string, bool) {
		if !strings.HasPrefix(pageID, prefix) {
			return "", false
		}
		id := strings.TrimPrefix(pageID, prefix)
		return id, id != ""
	}
}

// DefaultPageResolver handles the "PHYS_<folioID>" convention.
var DefaultPageResolver = PrefixPageResolver("PHYS_")

// PhysicalPage binds resolved folio ids to the internal file ids of a page.
type PhysicalPage struct {
	FolioID string
	FileIDs []string
}

// ResolvePages maps the document's structural pages onto folios. Pages the
// resolver cannot map are skipped with a warning, not treated as fatal.
func ResolvePages(doc *Document, resolve PageResolver, logger *slog.Logger) []PhysicalPage {
	if logger == nil {
		logger = logging.NewNop()
	}
	pages := make([]PhysicalPage, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		folioID, ok := resolve(page.ID)
		if !ok {
			logger.Warn("skipping unresolvable page",
				logging.String("page_id", page.ID))
			continue
		}
		pages = append(pages, PhysicalPage{
			FolioID: folioID,
			FileIDs: append([]string(nil), page.FileIDs...),
		})
	}
	return pages
}

// FolioForFile returns the folio owning the given file id, or false when no
// physical page references it.
func FolioForFile(fileID string, pages []PhysicalPage) (string, bool) {
	for _, page := range pages {
		for _, id := range page.FileIDs {
			if id == fileID {
				return page.FolioID, true
			}
		}
	}
	return "", false
}
