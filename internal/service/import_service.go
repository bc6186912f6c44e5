package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
	"github.com/noah-isme/registrar-api/pkg/export"
)

const defaultImportMaxBytes = 5 << 20

// columns each entity needs in an import header.
var requiredColumns = map[models.EntityType][]string{
	models.EntityStudent:    {"email", "name"},
	models.EntityCourse:     {"code", "title", "credits"},
	models.EntityEnrollment: {"student_email", "course_code"},
}

// ImportService loads CSV batches through the entity services, so every row
// passes the same validation and integrity checks as an API write.
type ImportService struct {
	students    *StudentService
	courses     *CourseService
	enrollments *EnrollmentService
	metrics     *MetricsService
	maxBytes    int64
	logger      *zap.Logger
}

// NewImportService constructs an ImportService. maxBytes <= 0 uses 5 MiB.
func NewImportService(students *StudentService, courses *CourseService, enrollments *EnrollmentService, metrics *MetricsService, maxBytes int64, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBytes <= 0 {
		maxBytes = defaultImportMaxBytes
	}
	return &ImportService{
		students:    students,
		courses:     courses,
		enrollments: enrollments,
		metrics:     metrics,
		maxBytes:    maxBytes,
		logger:      logger,
	}
}

// Import reads a CSV document whose first record is the header. Rows that
// fail validation or are rejected by the integrity rules are skipped and
// reported; a storage failure stops the batch and returns what was done.
func (s *ImportService) Import(ctx context.Context, entity models.EntityType, r io.Reader) (*models.ImportSummary, error) {
	if _, ok := requiredColumns[entity]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown entity %q", entity))
	}
	raw, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload")
	}
	if int64(len(raw)) > s.maxBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("upload exceeds %d bytes", s.maxBytes))
	}
	records, err := export.ReadCSV(bytes.NewReader(raw))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed csv")
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "csv header row is missing")
	}

	columns := headerIndex(records[0])
	var missing []string
	for _, name := range requiredColumns[entity] {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "csv header lacks column(s): "+strings.Join(missing, ", "))
	}

	summary := &models.ImportSummary{Entity: entity}
	for i, record := range records[1:] {
		line := i + 2
		row := csvRow{columns: columns, values: record}
		err := s.importRow(ctx, entity, row)
		if err == nil {
			summary.Imported++
			continue
		}
		if errors.Is(err, appErrors.ErrStorage) {
			s.metrics.RecordImportRows(string(entity), summary.Imported, summary.Skipped)
			return summary, err
		}
		summary.Skipped++
		summary.Errors = append(summary.Errors, models.ImportRowError{Line: line, Reason: rowReason(err)})
	}

	s.metrics.RecordImportRows(string(entity), summary.Imported, summary.Skipped)
	s.logger.Info("csv import finished",
		zap.String("entity", string(entity)),
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

func (s *ImportService) importRow(ctx context.Context, entity models.EntityType, row csvRow) error {
	switch entity {
	case models.EntityStudent:
		req := StudentRequest{
			Email:  row.get("email"),
			Name:   row.get("name"),
			Status: parseStatus(row.get("status")),
		}
		if course := row.get("course"); course != "" {
			req.Course = &course
		}
		_, err := s.students.Create(ctx, req)
		return err
	case models.EntityCourse:
		credits, err := strconv.Atoi(row.get("credits"))
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "credits must be a whole number")
		}
		_, err = s.courses.Create(ctx, CourseRequest{
			Code:    row.get("code"),
			Title:   row.get("title"),
			Credits: credits,
			Status:  parseStatus(row.get("status")),
		})
		return err
	default:
		_, err := s.enrollments.Enroll(ctx, EnrollmentRequest{
			StudentEmail: row.get("student_email"),
			CourseCode:   row.get("course_code"),
		})
		return err
	}
}

type csvRow struct {
	columns map[string]int
	values  []string
}

func (r csvRow) get(name string) string {
	idx, ok := r.columns[name]
	if !ok || idx >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[idx])
}

// headerIndex maps normalised column names to their position. "Student Email",
// "student_email" and "STUDENT EMAIL" all resolve to student_email; the first
// occurrence wins.
func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		name = strings.Join(strings.Fields(strings.ReplaceAll(name, "_", " ")), "_")
		if _, seen := index[name]; !seen && name != "" {
			index[name] = i
		}
	}
	return index
}

// parseStatus accepts any casing; a blank cell means Active.
func parseStatus(raw string) models.Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "active":
		return models.StatusActive
	case "inactive":
		return models.StatusInactive
	}
	return models.Status(raw)
}

func rowReason(err error) string {
	appErr := appErrors.FromError(err)
	if appErr.Code == appErrors.ErrValidation.Code || appErr.Code == appErrors.ErrNotFound.Code {
		return appErr.Message
	}
	return appErr.Code
}
