package mets

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"scriptorium/internal/services"
)

// File is one output file inside a file group.
type File struct {
	ID           string
	MimeType     string
	LocationPath string
}

// FileGroup is a named, ordered collection of output files belonging to one
// snapshot.
type FileGroup struct {
	ID    string
	Files []File
}

// Page is one physical page entry of the structural map, binding file ids
// to a page id. The page id is resolved to a folio id by a PageResolver.
type Page struct {
	ID      string
	FileIDs []string
}

// Document is the parsed METS structure.
type Document struct {
	FileGroups []FileGroup
	Pages      []Page
}

// xmlMets mirrors the subset of METS the adapter consumes. Unqualified
// element names match any namespace prefix the producer chose.
type xmlMets struct {
	XMLName xml.Name       `xml:"mets"`
	FileSec xmlFileSec     `xml:"fileSec"`
	Structs []xmlStructMap `xml:"structMap"`
}

type xmlFileSec struct {
	Groups []xmlFileGrp `xml:"fileGrp"`
}

type xmlFileGrp struct {
	Use   string    `xml:"USE,attr"`
	Files []xmlFile `xml:"file"`
}

type xmlFile struct {
	ID       string    `xml:"ID,attr"`
	MimeType string    `xml:"MIMETYPE,attr"`
	FLocat   xmlFLocat `xml:"FLocat"`
}

type xmlFLocat struct {
	Href string `xml:"href,attr"`
}

type xmlStructMap struct {
	Type string   `xml:"TYPE,attr"`
	Divs []xmlDiv `xml:"div"`
}

type xmlDiv struct {
	Type string    `xml:"TYPE,attr"`
	ID   string    `xml:"ID,attr"`
	Fptr []xmlFptr `xml:"fptr"`
	Divs []xmlDiv  `xml:"div"`
}

type xmlFptr struct {
	FileID string `xml:"FILEID,attr"`
}

// Parse reads a METS document. Structural failures (unreadable XML, wrong
// root element) are reported as MalformedDocument.
func Parse(r io.Reader) (*Document, error) {
	var raw xmlMets
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&raw); err != nil {
		return nil, services.Wrap(services.ErrMalformedDocument, "mets", "parse", "", err)
	}

	doc := &Document{}
	for _, grp := range raw.FileSec.Groups {
		group := FileGroup{ID: strings.TrimSpace(grp.Use)}
		for _, file := range grp.Files {
			group.Files = append(group.Files, File{
				ID:           strings.TrimSpace(file.ID),
				MimeType:     strings.TrimSpace(file.MimeType),
				LocationPath: strings.TrimSpace(file.FLocat.Href),
			})
		}
		doc.FileGroups = append(doc.FileGroups, group)
	}

	for _, sm := range raw.Structs {
		if !strings.EqualFold(sm.Type, "PHYSICAL") {
			continue
		}
		collectPages(sm.Divs, doc)
	}
	return doc, nil
}

func collectPages(divs []xmlDiv, doc *Document) {
	for _, div := range divs {
		if strings.EqualFold(div.Type, "page") {
			page := Page{ID: strings.TrimSpace(div.ID)}
			for _, fptr := range div.Fptr {
				if id := strings.TrimSpace(fptr.FileID); id != "" {
					page.FileIDs = append(page.FileIDs, id)
				}
			}
			doc.Pages = append(doc.Pages, page)
			continue
		}
		collectPages(div.Divs, doc)
	}
}

// Group returns the file group with the given id.
func (d *Document) Group(id string) (FileGroup, bool) {
	for _, group := range d.FileGroups {
		if group.ID == id {
			return group, true
		}
	}
	return FileGroup{}, false
}

// UpsertGroup replaces the file group with the same id or appends a new one,
// keeping document order stable for existing groups.
func (d *Document) UpsertGroup(group FileGroup) {
	for i := range d.FileGroups {
		if d.FileGroups[i].ID == group.ID {
			d.FileGroups[i] = group
			return
		}
	}
	d.FileGroups = append(d.FileGroups, group)
}

// UpsertPageFile records fileID under the given page, creating the page
// entry when absent.
func (d *Document) UpsertPageFile(pageID, fileID string) {
	for i := range d.Pages {
		if d.Pages[i].ID == pageID {
			for _, existing := range d.Pages[i].FileIDs {
				if existing == fileID {
					return
				}
			}
			d.Pages[i].FileIDs = append(d.Pages[i].FileIDs, fileID)
			return
		}
	}
	d.Pages = append(d.Pages, Page{ID: pageID, FileIDs: []string{fileID}})
}

const metsNamespace = "http://www.loc.gov/METS/"
const xlinkNamespace = "http://www.w3.org/1999/xlink"

// Write serializes the document in the layout downstream tools expect.
func Write(doc *Document, w io.Writer) error {
	if doc == nil {
		return fmt.Errorf("write mets: document is nil")
	}
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<mets:mets xmlns:mets="` + metsNamespace + `" xmlns:xlink="` + xlinkNamespace + `">` + "\n")

	b.WriteString("  <mets:fileSec>\n")
	for _, group := range doc.FileGroups {
		fmt.Fprintf(&b, "    <mets:fileGrp USE=\"%s\">\n", attrValue(group.ID))
		for _, file := range group.Files {
			fmt.Fprintf(&b, "      <mets:file ID=\"%s\" MIMETYPE=\"%s\">\n", attrValue(file.ID), attrValue(file.MimeType))
			fmt.Fprintf(&b, "        <mets:FLocat LOCTYPE=\"OTHER\" xlink:href=\"%s\"/>\n", attrValue(file.LocationPath))
			b.WriteString("      </mets:file>\n")
		}
		b.WriteString("    </mets:fileGrp>\n")
	}
	b.WriteString("  </mets:fileSec>\n")

	b.WriteString("  <mets:structMap TYPE=\"PHYSICAL\">\n")
	b.WriteString("    <mets:div TYPE=\"physSequence\">\n")
	for _, page := range doc.Pages {
		fmt.Fprintf(&b, "      <mets:div TYPE=\"page\" ID=\"%s\">\n", attrValue(page.ID))
		for _, fileID := range page.FileIDs {
			fmt.Fprintf(&b, "        <mets:fptr FILEID=\"%s\"/>\n", attrValue(fileID))
		}
		b.WriteString("      </mets:div>\n")
	}
	b.WriteString("    </mets:div>\n")
	b.WriteString("  </mets:structMap>\n")
	b.WriteString("</mets:mets>\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write mets: %w", err)
	}
	return nil
}

// attrValue XML-escapes an attribute value. Provider output filenames flow
// into ids and hrefs, so every attribute goes through here.
func attrValue(value string) string {
	var buf bytes.Buffer
	// EscapeText covers quotes as well, so the result is attribute-safe.
	_ = xml.EscapeText(&buf, []byte(value))
	return buf.String()
}
