// handlers_document.go - Source document handlers
package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/layout-bridge/backend/internal/document"
	"github.com/layout-bridge/backend/internal/exporter"
	"github.com/layout-bridge/backend/internal/storage"
)

// LayerInfo describes one layer of a stored document.
type LayerInfo struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	Groups  int    `json:"groups"`
}

// DocumentHandlerImpl implements the DocumentHandler interface
type DocumentHandlerImpl struct {
	store storage.Store
}

// NewDocumentHandler creates a new document handler instance
func NewDocumentHandler(store storage.Store) DocumentHandler {
	return &DocumentHandlerImpl{store: store}
}

// HandleUploadDocument accepts an XML document as base64 JSON, checks that it
// parses and saves it to storage
func (h *DocumentHandlerImpl) HandleUploadDocument(c echo.Context) error {
	var req uploadDocumentRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	if _, err := document.ParseXML(bytes.NewReader(decoded)); err != nil {
		return NewUnprocessableError("invalid document", err)
	}

	info, err := h.store.Save(req.Name, bytes.NewReader(decoded))
	if err != nil {
		return NewInternalError("failed to save document", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleListDocuments returns recently stored documents
func (h *DocumentHandlerImpl) HandleListDocuments(c echo.Context) error {
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return NewValidationError("limit")
		}
		limit = n
	}

	files, err := h.store.List(limit)
	if err != nil {
		return NewInternalError("failed to list documents", err)
	}
	return c.JSON(http.StatusOK, files)
}

// HandleGetDocument returns document metadata
func (h *DocumentHandlerImpl) HandleGetDocument(c echo.Context) error {
	id := c.Param("id")
	info, err := h.store.Get(id)
	if err != nil {
		return storeError(err, id)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDeleteDocument removes a stored document
func (h *DocumentHandlerImpl) HandleDeleteDocument(c echo.Context) error {
	id := c.Param("id")
	if err := h.store.Delete(id); err != nil {
		return storeError(err, id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleGetLayers lists the layers of a stored document
func (h *DocumentHandlerImpl) HandleGetLayers(c echo.Context) error {
	id := c.Param("id")
	doc, err := openDocument(h.store, id)
	if err != nil {
		return err
	}

	layers := make([]LayerInfo, 0, doc.Layers())
	for i := 0; i < doc.Layers(); i++ {
		visible, _ := doc.LayerVisible(i)
		layers = append(layers, LayerInfo{
			Index:   i,
			Name:    exporter.DisplayLayerName(doc, i),
			Visible: visible,
			Groups:  len(doc.Groups(i)),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"documentId": id,
		"name":       doc.Name,
		"layers":     layers,
	})
}

// openDocument loads a stored document into a fresh in-memory state.
func openDocument(store storage.Store, id string) (*document.State, error) {
	path, err := store.GetFilePath(id)
	if err != nil {
		return nil, storeError(err, id)
	}
	doc, err := document.LoadFile(path)
	if err != nil {
		return nil, NewUnprocessableError("failed to load document", err)
	}
	return doc, nil
}

func storeError(err error, id string) *APIError {
	if errors.Is(err, storage.ErrNotFound) {
		return NewNotFoundError("document", id)
	}
	return NewInternalError("document store failure", err)
}

type uploadDocumentRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded XML
}

func (r *uploadDocumentRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}
