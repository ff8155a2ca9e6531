package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mygrades-api/internal/models"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestScheduleAMappingImport(t *testing.T) {
	m := ScheduleAMapping()

	value, display, err := m.Import(floatPtr(18))
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, 18.0, *value)
	assert.Equal(t, "A5", display)

	_, display, err = m.Import(floatPtr(0))
	require.NoError(t, err)
	assert.Equal(t, "H", display)

	_, _, err = m.Import(floatPtr(14.5))
	assert.Error(t, err)

	_, _, err = m.Import(floatPtr(23))
	assert.Error(t, err)
}

func TestScheduleAMappingDisplayRoundsAggregates(t *testing.T) {
	m := ScheduleAMapping()

	assert.Equal(t, "B3", m.Display(floatPtr(15.42)))
	assert.Equal(t, "B2", m.Display(floatPtr(15.5)))
	assert.Equal(t, "A1", m.Display(floatPtr(22)))
	assert.Equal(t, "H", m.Display(floatPtr(0.2)))
}

func TestScheduleBMappingAcceptsOnlyStops(t *testing.T) {
	m := ScheduleBMapping()

	value, display, err := m.Import(floatPtr(14))
	require.NoError(t, err)
	assert.Equal(t, 14.0, *value)
	assert.Equal(t, "C0", display)

	_, _, err = m.Import(floatPtr(13))
	assert.Error(t, err)
}

func TestScheduleBMappingDisplayFloorsToStop(t *testing.T) {
	m := ScheduleBMapping()

	assert.Equal(t, "D0", m.Display(floatPtr(13.9)))
	assert.Equal(t, "A0", m.Display(floatPtr(22)))
	assert.Equal(t, "H", m.Display(floatPtr(1.5)))
}

func TestPointsMappingImport(t *testing.T) {
	m := PointsMapping(0, 100)

	value, display, err := m.Import(floatPtr(67.5))
	require.NoError(t, err)
	assert.Equal(t, 67.5, *value)
	assert.Equal(t, "67.5", display)

	_, _, err = m.Import(floatPtr(101))
	assert.Error(t, err)
}

func TestImportNilRawIsNotZero(t *testing.T) {
	for _, m := range []*Mapping{PointsMapping(0, 100), ScheduleAMapping(), ScheduleBMapping()} {
		value, display, err := m.Import(nil)
		require.NoError(t, err)
		assert.Nil(t, value)
		assert.Equal(t, DisplayNoGrade, display)
	}
}

func TestCustomMappingRequiresFloor(t *testing.T) {
	_, err := CustomMapping(models.ScheduleA, []models.ConversionBreakpoint{
		{Threshold: 50, Value: 12, Label: "C3"},
	})
	assert.Error(t, err)

	_, err = CustomMapping(models.ScheduleA, nil)
	assert.Error(t, err)

	_, err = CustomMapping(models.ScheduleA, []models.ConversionBreakpoint{
		{Threshold: 50, Value: 12, Label: "C3"},
		{Threshold: 50, Value: 9, Label: "D3"},
		{Threshold: 0, Value: 0, Label: "H"},
	})
	assert.Error(t, err)
}

func TestCustomMappingImportMatchesHighestThreshold(t *testing.T) {
	m, err := CustomMapping(models.ScheduleA, []models.ConversionBreakpoint{
		{Threshold: 0, Value: 0, Label: "H"},
		{Threshold: 40, Value: 9, Label: "D3"},
		{Threshold: 70, Value: 18, Label: "A5"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleA, m.Schedule())

	value, display, err := m.Import(floatPtr(85))
	require.NoError(t, err)
	assert.Equal(t, 18.0, *value)
	assert.Equal(t, "A5", display)

	value, display, err = m.Import(floatPtr(42))
	require.NoError(t, err)
	assert.Equal(t, 9.0, *value)
	assert.Equal(t, "D3", display)

	value, display, err = m.Import(floatPtr(10))
	require.NoError(t, err)
	assert.Equal(t, 0.0, *value)
	assert.Equal(t, "H", display)
}

func TestMappingForItem(t *testing.T) {
	scaleItem := &models.GradeItem{ID: "i1", GradeType: models.GradeTypeScale, GradeMin: 0, GradeMax: 22}
	m, err := MappingForItem(scaleItem, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleA, m.Schedule())

	pointsItem := &models.GradeItem{ID: "i2", GradeType: models.GradeTypeValue, GradeMin: 0, GradeMax: 100}
	m, err = MappingForItem(pointsItem, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleNone, m.Schedule())

	noneItem := &models.GradeItem{ID: "i3", GradeType: models.GradeTypeNone}
	_, err = MappingForItem(noneItem, nil)
	assert.Error(t, err)

	converted := &models.GradeItem{ID: "i4", GradeType: models.GradeTypeValue, GradeMax: 100, Converted: true}
	_, err = MappingForItem(converted, nil)
	assert.Error(t, err)

	custom, err := CustomMapping(models.ScheduleB, []models.ConversionBreakpoint{
		{Threshold: 0, Value: 0, Label: "H"},
		{Threshold: 50, Value: 14, Label: "C0"},
	})
	require.NoError(t, err)
	m, err = MappingForItem(converted, custom)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleB, m.Schedule())
}
