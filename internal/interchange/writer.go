// Package interchange reads and writes the export document exchanged between
// the exporter and the importer.
package interchange

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/layout-bridge/backend/internal/models"
)

const (
	// FileName is the interchange document name inside an output folder.
	FileName = "export.json"
	// ThumbnailDir is the folder holding per-object previews, relative to the document.
	ThumbnailDir = "thumbnails"
)

// ThumbnailRef returns the relative thumbnail path recorded for safeName.
func ThumbnailRef(safeName string) string {
	return ThumbnailDir + "/" + safeName + ".png"
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Escape escapes backslashes and double quotes. Nothing else is touched.
func Escape(s string) string {
	return escaper.Replace(s)
}

// FormatFloat renders v with two decimals. Negative zero prints as 0.00.
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}

// Format renders batch in the fixed document layout, one object per line.
func Format(batch models.ExportBatch) []byte {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	fmt.Fprintf(&buf, "  \"layer\": \"%s\",\n", Escape(batch.Layer))
	buf.WriteString("  \"objects\": [\n")

	for i, o := range batch.Objects {
		fmt.Fprintf(&buf,
			`    { "name": "%s", "x": %s, "y": %s, "width": %s, "height": %s, "rotation": %s, "zorder": %d, "thumbnail": "%s" }`,
			Escape(o.Name),
			FormatFloat(o.X), FormatFloat(o.Y),
			FormatFloat(o.Width), FormatFloat(o.Height),
			FormatFloat(o.Rotation),
			o.ZOrder,
			Escape(o.Thumbnail),
		)
		if i < len(batch.Objects)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}

	buf.WriteString("  ]\n")
	buf.WriteString("}\n")
	return buf.Bytes()
}

// PendingFile is an interchange document reserved before an export run starts.
// Nothing is visible at the final path until Commit succeeds.
type PendingFile struct {
	tmp  *os.File
	path string
}

// Create reserves the interchange document in dir. It fails up front when the
// folder is not writable, so a run can abort before touching the document.
func Create(dir string) (*PendingFile, error) {
	tmp, err := os.CreateTemp(dir, ".export-*.json.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating interchange file in %s: %w", dir, err)
	}
	return &PendingFile{tmp: tmp, path: filepath.Join(dir, FileName)}, nil
}

// Path returns the final document path.
func (p *PendingFile) Path() string {
	return p.path
}

// Commit writes batch and atomically moves it into place.
func (p *PendingFile) Commit(batch models.ExportBatch) error {
	if _, err := p.tmp.Write(Format(batch)); err != nil {
		p.Abort()
		return fmt.Errorf("writing interchange file: %w", err)
	}
	if err := p.tmp.Sync(); err != nil {
		p.Abort()
		return fmt.Errorf("syncing interchange file: %w", err)
	}
	if err := p.tmp.Close(); err != nil {
		os.Remove(p.tmp.Name())
		return fmt.Errorf("closing interchange file: %w", err)
	}
	if err := os.Rename(p.tmp.Name(), p.path); err != nil {
		os.Remove(p.tmp.Name())
		return fmt.Errorf("renaming interchange file: %w", err)
	}
	return nil
}

// Abort discards the reserved file.
func (p *PendingFile) Abort() {
	p.tmp.Close()
	os.Remove(p.tmp.Name())
}

// WriteFile writes batch to dir/export.json atomically.
func WriteFile(dir string, batch models.ExportBatch) (string, error) {
	p, err := Create(dir)
	if err != nil {
		return "", err
	}
	if err := p.Commit(batch); err != nil {
		return "", err
	}
	return p.Path(), nil
}
