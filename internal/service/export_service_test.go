package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mygrades-api/internal/dto"
	"github.com/noah-isme/mygrades-api/internal/models"
	"github.com/noah-isme/mygrades-api/pkg/config"
	appErrors "github.com/noah-isme/mygrades-api/pkg/errors"
	"github.com/noah-isme/mygrades-api/pkg/export"
	"github.com/noah-isme/mygrades-api/pkg/storage"
)

type sheetAggregatorStub struct{}

func (sheetAggregatorStub) AggregateUser(_ context.Context, _, userID string) ([]*models.AggregationResult, error) {
	value := 15.0
	return []*models.AggregationResult{
		{
			CategoryID:        "cat-top",
			ItemID:            "item-top",
			UserID:            userID,
			Value:             &value,
			DisplayGrade:      "B3",
			CompletionPercent: 100,
		},
	}, nil
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := config.ExportsConfig{Enabled: true, SignedURLTTL: time.Hour, CleanupInterval: time.Hour}
	svc := NewExportService(
		&fakeGradebookRepo{tree: simpleTree()},
		sheetAggregatorStub{},
		&fakeEnrolmentRepo{users: []string{"user-1", "user-2"}},
		store,
		signer,
		cfg,
		nil,
		export.NewCSVExporter(),
		export.NewPDFExporter(),
	)
	return svc, store
}

func TestExportGradeSheetCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t)

	resp, err := svc.Export(context.Background(), editorClaims(), "course-1", dto.ExportRequest{Format: "csv"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.FileName)
	require.Contains(t, resp.DownloadURL, "/exports/download/")

	raw, err := os.ReadFile(store.Path(resp.FileName))
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "user-1")
	assert.Contains(t, content, "user-2")
	assert.Contains(t, content, "B3")
}

func TestExportGradeSheetPDF(t *testing.T) {
	svc, store := newExportServiceForTest(t)

	resp, err := svc.Export(context.Background(), editorClaims(), "course-1", dto.ExportRequest{Format: "pdf"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(resp.FileName, ".pdf"))

	info, err := os.Stat(store.Path(resp.FileName))
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportRequiresCapability(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	viewer := &models.JWTClaims{UserID: "viewer-1", Role: models.RoleViewer}
	_, err := svc.Export(context.Background(), viewer, "course-1", dto.ExportRequest{Format: "csv"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportResolveDownload(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	resp, err := svc.Export(context.Background(), editorClaims(), "course-1", dto.ExportRequest{Format: "csv"})
	require.NoError(t, err)

	token := resp.DownloadURL[strings.LastIndex(resp.DownloadURL, "/")+1:]
	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, resp.FileName, download.Filename)

	_, err = svc.ResolveDownload(context.Background(), "not-a-token")
	require.Error(t, err)
}
