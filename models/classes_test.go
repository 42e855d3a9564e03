package models

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassSet(t *testing.T) {
	set, err := ParseClassSet(strings.NewReader("person\r\nbicycle\ncar\n\n"))
	require.NoError(t, err)

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, ModelFamilyCustom, set.Style)

	name, err := set.Name(2)
	require.NoError(t, err)
	assert.Equal(t, "car", name)

	idx, err := set.Index("bicycle")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = set.Name(3)
	assert.Error(t, err)
	_, err = set.Name(-1)
	assert.Error(t, err)
}

func TestParseClassSet_Empty(t *testing.T) {
	_, err := ParseClassSet(strings.NewReader("\n\n"))
	assert.ErrorIs(t, err, ErrEmptyClassSet)
}

func TestLoadClassSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coco.names")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(yoloClassNames, "\n")+"\n"), 0o644))

	set, err := LoadClassSet(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultClassSet().Len(), set.Len())

	for _, id := range []int{COCOCar, COCOMotorcycle, COCOBus, COCOTruck} {
		fromFile, err := set.Name(id)
		require.NoError(t, err)
		fromDefault, err := DefaultClassSet().Name(id)
		require.NoError(t, err)
		assert.Equal(t, fromDefault, fromFile)
	}

	_, err = LoadClassSet(filepath.Join(t.TempDir(), "missing.names"))
	assert.Error(t, err)
}

func TestDefaultClassSet(t *testing.T) {
	set := DefaultClassSet()
	assert.Equal(t, 80, set.Len())

	tests := []struct {
		id   int
		name string
	}{
		{0, "person"},
		{COCOCar, "car"},
		{COCOMotorcycle, "motorcycle"},
		{COCOBus, "bus"},
		{COCOTruck, "truck"},
		{79, "toothbrush"},
	}
	for _, tt := range tests {
		name, err := set.Name(tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.name, name)
	}
}

func TestVehicleCategoryOf(t *testing.T) {
	expected := map[int]VehicleCategory{
		2: VehicleCar,
		3: VehicleMotorcycle,
		5: VehicleBus,
		7: VehicleTruck,
	}

	for id := -1; id < 80; id++ {
		want, ok := expected[id]
		if !ok {
			want = VehicleNone
		}
		assert.Equal(t, want, VehicleCategoryOf(id), "class id %d", id)
	}
}

func TestVehicleCategoryString(t *testing.T) {
	assert.Equal(t, "car", VehicleCar.String())
	assert.Equal(t, "motorcycle", VehicleMotorcycle.String())
	assert.Equal(t, "bus", VehicleBus.String())
	assert.Equal(t, "truck", VehicleTruck.String())
	assert.Equal(t, "none", VehicleNone.String())
	assert.Len(t, VehicleCategories(), NumVehicleCategories)
}
