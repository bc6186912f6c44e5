package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/service"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
	"github.com/noah-isme/registrar-api/pkg/export"
	"github.com/noah-isme/registrar-api/pkg/response"
	"github.com/noah-isme/registrar-api/pkg/storage"
)

type exportService interface {
	Render(ctx context.Context, entity models.EntityType, format export.Format) (*service.ExportFile, error)
	Store(ctx context.Context, entity models.EntityType, format export.Format) (*service.ExportResult, error)
	OpenToken(token string) (*os.File, storage.Grant, error)
}

type importService interface {
	Import(ctx context.Context, entity models.EntityType, r io.Reader) (*models.ImportSummary, error)
}

// StoreExportRequest asks for an export kept behind a signed link.
type StoreExportRequest struct {
	Entity string `json:"entity" binding:"required"`
	Format string `json:"format"`
}

// TransferHandler serves CSV/PDF exports and CSV imports.
type TransferHandler struct {
	exports exportService
	imports importService
}

// NewTransferHandler constructs the handler.
func NewTransferHandler(exports exportService, imports importService) *TransferHandler {
	return &TransferHandler{exports: exports, imports: imports}
}

// Download godoc
// @Summary Download a collection
// @Tags Transfer
// @Produce text/csv
// @Produce application/pdf
// @Param entity path string true "students|courses|enrollments"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /{entity}/export [get]
func (h *TransferHandler) Download(entity models.EntityType) gin.HandlerFunc {
	return func(c *gin.Context) {
		format, ok := export.ParseFormat(c.Query("format"))
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
			return
		}
		file, err := h.exports.Render(c.Request.Context(), entity, format)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, file.ContentType, file.Data)
	}
}

// Store godoc
// @Summary Render an export to storage
// @Description Returns a signed, expiring download URL.
// @Tags Transfer
// @Accept json
// @Produce json
// @Param payload body StoreExportRequest true "Export request"
// @Success 201 {object} response.Envelope
// @Router /exports [post]
func (h *TransferHandler) Store(c *gin.Context) {
	var req StoreExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entity, ok := models.ParseEntityType(strings.ToLower(strings.TrimSpace(req.Entity)))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "entity must be students, courses or enrollments"))
		return
	}
	format, ok := export.ParseFormat(req.Format)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	result, err := h.exports.Store(c.Request.Context(), entity, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Fetch godoc
// @Summary Download a stored export
// @Tags Transfer
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 410 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *TransferHandler) Fetch(c *gin.Context) {
	file, grant, err := h.exports.OpenToken(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read export"))
		return
	}
	name := filepath.Base(grant.Path)
	contentType := export.FormatCSV.ContentType()
	if strings.HasSuffix(name, "."+string(export.FormatPDF)) {
		contentType = export.FormatPDF.ContentType()
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	})
}

// Import godoc
// @Summary Import a CSV batch
// @Description Accepts a multipart "file" field or a raw text/csv body. Bad rows are skipped and reported.
// @Tags Transfer
// @Accept text/csv
// @Accept multipart/form-data
// @Produce json
// @Param entity path string true "students|courses|enrollments"
// @Success 200 {object} response.Envelope
// @Router /{entity}/import [post]
func (h *TransferHandler) Import(entity models.EntityType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body io.Reader = c.Request.Body
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			header, err := c.FormFile("file")
			if err != nil {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "multipart field \"file\" is required"))
				return
			}
			f, err := header.Open()
			if err != nil {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
				return
			}
			defer f.Close()
			body = f
		}
		summary, err := h.imports.Import(c.Request.Context(), entity, body)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, summary)
	}
}
