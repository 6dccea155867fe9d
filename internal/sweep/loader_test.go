package sweep

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/simsweep/internal/faults"
)

const sampleTable = `ID,Attributes,Start Value,End Value,Steplength,Number of Simulations
1,tau,0.8,1.2,0.2,1
1, lcSigma ,0,0.5,0.25,2
2,tau,1.5,1.0,0.5,1
2,minGapLat,,0.5,0.1,1
1,tau,0.5,0.7,0.1,3
`

func TestLoadRangeSpec(t *testing.T) {
	res, err := LoadRangeSpec(strings.NewReader(sampleTable))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Skipped)
	require.Equal(t, 2, res.Params.Len())

	entities := res.Params.Entities()
	assert.Equal(t, "1", entities[0].ID)
	assert.Equal(t, "2", entities[1].ID)

	// The duplicate tau row overwrites the first but keeps its position.
	assert.Equal(t, []string{"tau", "lcSigma"}, entities[0].Attributes())
	assert.Equal(t, RangeDescriptor{EntityID: "1", Attribute: "tau", Start: 0.5, End: 0.7, Step: 0.1, Replications: 3},
		entities[0].Ranges[0])
	assert.Equal(t, 3, entities[0].Replications())

	assert.Equal(t, []string{"tau"}, entities[1].Attributes())

	assert.Equal(t, []string{"tau", "lcSigma"}, res.Params.Attributes())
}

func TestLoadRangeSpec_ColumnOrderAndExtras(t *testing.T) {
	table := "Notes,Steplength,End Value,Start Value,Attributes,ID,Number of Simulations\n" +
		"x,0.2,1.2,0.8,tau,3.0,1\n"
	res, err := LoadRangeSpec(strings.NewReader(table))
	require.NoError(t, err)

	require.Equal(t, 1, res.Params.Len())
	e := res.Params.Entities()[0]
	assert.Equal(t, "3", e.ID, "float-formatted id should normalise to 3")
	assert.Equal(t, 0.8, e.Ranges[0].Start)
	assert.Equal(t, 1.2, e.Ranges[0].End)
}

func TestLoadRangeSpec_SkipsIncompleteRows(t *testing.T) {
	table := "ID,Attributes,Start Value,End Value,Steplength,Number of Simulations\n" +
		",tau,0.8,1.2,0.2,1\n" +
		"1,,0.8,1.2,0.2,1\n" +
		"1,tau,abc,1.2,0.2,1\n" +
		"1,tau,0.8,1.2,NaN,1\n" +
		"1,tau,0.8,1.2\n"
	res, err := LoadRangeSpec(strings.NewReader(table))
	require.NoError(t, err)
	assert.Equal(t, 5, res.Skipped)
	assert.Equal(t, 0, res.Params.Len())
}

func TestLoadRangeSpec_MissingColumns(t *testing.T) {
	_, err := LoadRangeSpec(strings.NewReader("ID,Attributes,Start Value\n1,tau,0.8\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, faults.ErrConfiguration)
	assert.Contains(t, err.Error(), "End Value")
	assert.Contains(t, err.Error(), "Number of Simulations")
}

func TestLoadRangeSpec_Empty(t *testing.T) {
	_, err := LoadRangeSpec(strings.NewReader(""))
	assert.ErrorIs(t, err, faults.ErrConfiguration)
}

func TestLoadRangeSpecFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ranges.csv")
	require.NoError(t, os.WriteFile(path, []byte("\ufeff"+sampleTable), 0644))

	res, err := LoadRangeSpecFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Params.Len())

	_, err = LoadRangeSpecFile(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, faults.ErrConfiguration)
	assert.Equal(t, faults.KindConfiguration, faults.KindOf(err))
}
