package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
	"github.com/noah-isme/registrar-api/pkg/export"
	"github.com/noah-isme/registrar-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// Column labels, in export order. Import accepts these or their snake_case form.
var (
	studentLabels    = []string{"Email", "Name", "Status", "Course"}
	courseLabels     = []string{"Code", "Title", "Credits", "Status"}
	enrollmentLabels = []string{"ID", "Student Email", "Course Code", "Created At"}
)

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportFile is a rendered export held in memory.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportResult describes an export persisted to storage.
type ExportResult struct {
	ID           string        `json:"id"`
	Entity       string        `json:"entity"`
	Format       export.Format `json:"format"`
	Filename     string        `json:"filename"`
	RelativePath string        `json:"-"`
	Token        string        `json:"token"`
	URL          string        `json:"url"`
	ExpiresAt    time.Time     `json:"expires_at"`
}

// ExportService renders collections to CSV or PDF and keeps stored copies
// behind signed download tokens.
type ExportService struct {
	registry *Registry
	storage  fileStorage
	csv      datasetRenderer
	pdf      datasetRenderer
	signer   *storage.SignedURLSigner
	cfg      ExportConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService. storage and signer may be nil
// when only direct downloads are served.
func NewExportService(registry *Registry, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		registry: registry,
		storage:  store,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		signer:   signer,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Dataset builds the export table of one collection in store order.
func (s *ExportService) Dataset(ctx context.Context, entity models.EntityType) (export.Dataset, error) {
	switch entity {
	case models.EntityStudent:
		rows, err := s.registry.students(ctx)
		if err != nil {
			return export.Dataset{}, err
		}
		data := export.Dataset{Title: "Students", Headers: studentLabels, Rows: make([][]string, 0, len(rows))}
		for _, st := range rows {
			data.Rows = append(data.Rows, []string{st.Email, st.Name, string(st.Status), st.CourseCode()})
		}
		return data, nil
	case models.EntityCourse:
		rows, err := s.registry.courses(ctx)
		if err != nil {
			return export.Dataset{}, err
		}
		data := export.Dataset{Title: "Courses", Headers: courseLabels, Rows: make([][]string, 0, len(rows))}
		for _, c := range rows {
			data.Rows = append(data.Rows, []string{c.Code, c.Title, strconv.Itoa(c.Credits), string(c.Status)})
		}
		return data, nil
	case models.EntityEnrollment:
		rows, err := s.registry.enrollments(ctx)
		if err != nil {
			return export.Dataset{}, err
		}
		data := export.Dataset{Title: "Enrollments", Headers: enrollmentLabels, Rows: make([][]string, 0, len(rows))}
		for _, e := range rows {
			data.Rows = append(data.Rows, []string{
				strconv.FormatInt(e.ID, 10),
				e.StudentEmail,
				e.CourseCode,
				e.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		return data, nil
	}
	return export.Dataset{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown entity %q", entity))
}

// Render produces the export file for a collection.
func (s *ExportService) Render(ctx context.Context, entity models.EntityType, format export.Format) (*ExportFile, error) {
	data, err := s.Dataset(ctx, entity)
	if err != nil {
		return nil, err
	}
	var payload []byte
	switch format {
	case export.FormatCSV:
		payload, err = s.csv.Render(data)
	case export.FormatPDF:
		payload, err = s.pdf.Render(data)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    export.Filename(string(entity)+"s", format, s.now()),
		ContentType: format.ContentType(),
		Data:        payload,
	}, nil
}

// Store renders a collection, saves it and returns a signed download link.
func (s *ExportService) Store(ctx context.Context, entity models.EntityType, format export.Format) (*ExportResult, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrStorage, "export storage not configured")
	}
	file, err := s.Render(ctx, entity, format)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	relPath, err := s.storage.Save(id[:8]+"-"+file.Filename, file.Data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("export stored", zap.String("id", id), zap.String("entity", string(entity)), zap.String("path", relPath))
	return &ExportResult{
		ID:           id,
		Entity:       string(entity),
		Format:       format,
		Filename:     file.Filename,
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		ExpiresAt:    expiresAt,
	}, nil
}

// OpenToken verifies a download token and opens the referenced file.
func (s *ExportService) OpenToken(token string) (*os.File, storage.Grant, error) {
	if s.storage == nil || s.signer == nil {
		return nil, storage.Grant{}, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	grant, err := s.signer.Parse(token)
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return nil, storage.Grant{}, appErrors.Wrap(err, "TOKEN_EXPIRED", http.StatusGone, "download link expired")
	case err != nil:
		return nil, storage.Grant{}, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	f, err := s.storage.Open(grant.Path)
	if err != nil {
		return nil, storage.Grant{}, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	return f, grant, nil
}

// Cleanup removes stored exports older than ttl, or the configured TTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if s.storage == nil {
		return nil, nil
	}
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	removed, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		return removed, err
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
	return removed, nil
}
