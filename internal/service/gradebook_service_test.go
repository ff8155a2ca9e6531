package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mygrades-api/internal/dto"
	"github.com/noah-isme/mygrades-api/internal/models"
	appErrors "github.com/noah-isme/mygrades-api/pkg/errors"
)

type fakeConversionWriter struct {
	tree  *models.CourseTree
	saved []models.ConversionBreakpoint
}

func (f *fakeConversionWriter) LoadCourseTree(_ context.Context, _ string) (*models.CourseTree, error) {
	return f.tree, nil
}

func (f *fakeConversionWriter) SaveConversionMap(_ context.Context, _, _ string, _ models.Schedule, breakpoints []models.ConversionBreakpoint) error {
	f.saved = breakpoints
	return nil
}

type fakeResitRepo struct {
	pairs map[string]string
}

func (f *fakeResitRepo) Set(_ context.Context, pair *models.ResitPair) error {
	if f.pairs == nil {
		f.pairs = map[string]string{}
	}
	f.pairs[pair.CategoryID] = pair.ItemID
	return nil
}

func (f *fakeResitRepo) Delete(_ context.Context, categoryID string) error {
	delete(f.pairs, categoryID)
	return nil
}

func newGradebookFixture(tree *models.CourseTree) (*GradebookService, *fakeConversionWriter, *fakeResitRepo) {
	writer := &fakeConversionWriter{tree: tree}
	resits := &fakeResitRepo{}
	svc := NewGradebookService(writer, resits, &fakeReaggregator{}, nil, nil)
	return svc, writer, resits
}

func TestImportConversionMapStoresValidatedRows(t *testing.T) {
	svc, writer, _ := newGradebookFixture(simpleTree())

	err := svc.ImportConversionMap(context.Background(), editorClaims(), "course-1", dto.ImportConversionMapRequest{
		ItemID:   "item-essay",
		Schedule: "A",
		Breakpoints: []dto.ConversionBreakpointRequest{
			{Threshold: 0, Value: 0, Label: "H"},
			{Threshold: 50, Value: 9, Label: "D3"},
			{Threshold: 70, Value: 15, Label: "B3"},
		},
	})
	require.NoError(t, err)
	require.Len(t, writer.saved, 3)
}

func TestImportConversionMapRejectsMissingFloor(t *testing.T) {
	svc, writer, _ := newGradebookFixture(simpleTree())

	err := svc.ImportConversionMap(context.Background(), editorClaims(), "course-1", dto.ImportConversionMapRequest{
		ItemID:   "item-essay",
		Schedule: "A",
		Breakpoints: []dto.ConversionBreakpointRequest{
			{Threshold: 50, Value: 9, Label: "D3"},
		},
	})
	require.Error(t, err)
	assert.Nil(t, writer.saved)
}

func TestImportConversionMapUnknownItem(t *testing.T) {
	svc, _, _ := newGradebookFixture(simpleTree())

	err := svc.ImportConversionMap(context.Background(), editorClaims(), "course-1", dto.ImportConversionMapRequest{
		ItemID:   "item-missing",
		Schedule: "A",
		Breakpoints: []dto.ConversionBreakpointRequest{
			{Threshold: 0, Value: 0, Label: "H"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSetResitRequiresTwoActivityItems(t *testing.T) {
	tree := simpleTree()
	tree.Items["item-third"] = testActivity("item-third", "cat-top", 10)
	svc, _, resits := newGradebookFixture(tree)

	err := svc.SetResit(context.Background(), editorClaims(), "course-1", dto.SetResitRequest{
		CategoryID: "cat-top", ItemID: "item-essay",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, resits.pairs)
}

func TestSetResitMarksPair(t *testing.T) {
	svc, _, resits := newGradebookFixture(simpleTree())

	err := svc.SetResit(context.Background(), editorClaims(), "course-1", dto.SetResitRequest{
		CategoryID: "cat-top", ItemID: "item-exam",
	})
	require.NoError(t, err)
	assert.Equal(t, "item-exam", resits.pairs["cat-top"])

	// The proxy item of the category does not qualify as the resit.
	err = svc.SetResit(context.Background(), editorClaims(), "course-1", dto.SetResitRequest{
		CategoryID: "cat-top", ItemID: "item-top",
	})
	require.Error(t, err)

	require.NoError(t, svc.RemoveResit(context.Background(), editorClaims(), "course-1", "cat-top"))
	assert.Empty(t, resits.pairs)
}
