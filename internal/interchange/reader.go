package interchange

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/layout-bridge/backend/internal/models"
)

var (
	ErrNotFound      = errors.New("interchange file not found")
	ErrInvalidFormat = errors.New("invalid interchange document")
)

// document mirrors the file layout. Objects is a pointer so a missing array
// can be told apart from an empty one.
type document struct {
	Layer   string                 `json:"layer"`
	Objects *[]models.LayoutObject `json:"objects"`
}

// Decode parses an interchange document. Absent numeric fields default to 0.
func Decode(r io.Reader) (*models.ExportBatch, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if doc.Objects == nil {
		return nil, fmt.Errorf("%w: missing objects array", ErrInvalidFormat)
	}
	return &models.ExportBatch{Layer: doc.Layer, Objects: *doc.Objects}, nil
}

// ReadFile loads the interchange document at path.
func ReadFile(path string) (*models.ExportBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return Decode(f)
}
