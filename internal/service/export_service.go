package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/mygrades-api/internal/dto"
	"github.com/noah-isme/mygrades-api/internal/models"
	"github.com/noah-isme/mygrades-api/pkg/config"
	appErrors "github.com/noah-isme/mygrades-api/pkg/errors"
	"github.com/noah-isme/mygrades-api/pkg/export"
	"github.com/noah-isme/mygrades-api/pkg/storage"
)

type exportGradebookRepo interface {
	LoadCourseTree(ctx context.Context, courseID string) (*models.CourseTree, error)
}

type exportAggregator interface {
	AggregateUser(ctx context.Context, courseID, userID string) ([]*models.AggregationResult, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// ExportService renders course grade sheets to CSV or PDF, persists the
// files and hands out signed download links.
type ExportService struct {
	gradebook   exportGradebookRepo
	aggregation exportAggregator
	enrolments  enrolmentRepo
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	validator   *validator.Validate
	cfg         config.ExportsConfig
	logger      *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(gradebook exportGradebookRepo, aggregation exportAggregator, enrolments enrolmentRepo, store fileStorage, signer *storage.SignedURLSigner, cfg config.ExportsConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		gradebook:   gradebook,
		aggregation: aggregation,
		enrolments:  enrolments,
		storage:     store,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		validator:   validator.New(),
		cfg:         cfg,
		logger:      logger,
	}
}

// Export renders the course grade sheet in the requested format and
// returns a signed download link.
func (s *ExportService) Export(ctx context.Context, claims *models.JWTClaims, courseID string, req dto.ExportRequest) (*dto.ExportResponse, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "exports are disabled")
	}
	if claims == nil || !claims.CanEditGrades {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "grade editing capability required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}

	dataset, err := s.buildDataset(ctx, courseID)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch req.Format {
	case "csv":
		payload, err = s.csv.Render(dataset)
	case "pdf":
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("Grade Sheet %s", courseID))
	default:
		err = fmt.Errorf("unsupported format %s", req.Format)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := s.buildFilename(courseID, req.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, _, err := s.signer.Generate(uuid.NewString(), relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	s.logger.Info("grade sheet exported",
		zap.String("course_id", courseID),
		zap.String("format", req.Format),
		zap.String("file", relPath),
		zap.String("requested_by", claims.UserID))

	return &dto.ExportResponse{
		FileName:    filename,
		DownloadURL: fmt.Sprintf("/exports/download/%s", token),
	}, nil
}

// ResolveDownload validates the token and opens the stored export file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	_, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
	}
	return &ExportDownload{
		File:      file,
		Filename:  strings.TrimPrefix(relPath, "/"),
		ExpiresAt: expiresAt,
	}, nil
}

// StartCleanup boots a goroutine that purges expired export files
// periodically.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if !s.cfg.Enabled || s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.storage.CleanupOlderThan(s.cfg.SignedURLTTL)
				if err != nil {
					s.logger.Warn("export cleanup failed", zap.Error(err))
					continue
				}
				if len(removed) > 0 {
					s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
				}
			}
		}
	}()
}

func (s *ExportService) buildDataset(ctx context.Context, courseID string) (export.Dataset, error) {
	tree, err := s.gradebook.LoadCourseTree(ctx, courseID)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course structure")
	}

	var topLevel []*models.GradeCategory
	for _, category := range tree.Categories {
		if category.Depth == 2 {
			topLevel = append(topLevel, category)
		}
	}
	sort.Slice(topLevel, func(i, j int) bool { return topLevel[i].Path < topLevel[j].Path })

	headers := []string{"User"}
	for _, category := range topLevel {
		headers = append(headers, category.Name)
		headers = append(headers, fmt.Sprintf("%s (completion %%)", category.Name))
	}

	users, err := s.enrolments.ListActiveUsers(ctx, courseID)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrolled users")
	}

	rows := make([]map[string]string, 0, len(users))
	for _, userID := range users {
		results, err := s.aggregation.AggregateUser(ctx, courseID, userID)
		if err != nil {
			return export.Dataset{}, err
		}
		byCategory := make(map[string]*models.AggregationResult, len(results))
		for _, result := range results {
			byCategory[result.CategoryID] = result
		}
		row := map[string]string{"User": userID}
		for _, category := range topLevel {
			result := byCategory[category.ID]
			if result == nil {
				row[category.Name] = DisplayNoGrade
				continue
			}
			row[category.Name] = result.DisplayGrade
			row[fmt.Sprintf("%s (completion %%)", category.Name)] = fmt.Sprintf("%.1f", result.CompletionPercent)
		}
		rows = append(rows, row)
	}

	return export.Dataset{Headers: headers, Rows: rows}, nil
}

func (s *ExportService) buildFilename(courseID, format string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("grades_%s_%s.%s", sanitizeFilename(courseID), timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
