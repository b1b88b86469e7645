package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadLinearDataset(t *testing.T) {
	assert := assert.New(t)

	ds, err := NewDatasetFromFile(DatReader{}, "../res/linear.dat")
	assert.NoError(err)
	assert.Equal(LINEAR, ds.Type)
	assert.Equal("../res/linear", ds.Name)
	assert.Equal(50, ds.Rows())
	assert.Equal(2, ds.Coefficients())
	assert.Nil(ds.Group)

	assert.InDelta(-1.438446, ds.Y[0], 1e-9)
	assert.Equal(1.0, ds.X.At(0, 0))
	assert.InDelta(-0.878031, ds.X.At(0, 1), 1e-9)
}

func TestReadGroupedDataset(t *testing.T) {
	assert := assert.New(t)

	ds, err := NewDatasetFromFile(DatReader{}, "../res/grouped.dat")
	assert.NoError(err)
	assert.Equal(GROUPED, ds.Type)
	assert.Equal(60, ds.Rows())
	assert.Equal(6, ds.Groups)
	assert.Equal([]int{10, 10, 10, 10, 10, 10}, ds.GroupSizes())
	assert.Equal(0, ds.Group[0])
	assert.Equal(5, ds.Group[59])
	assert.InDelta(4.074283, ds.Y[0], 1e-9)
}

func TestReadDatasetErrors(t *testing.T) {
	assert := assert.New(t)

	bad := []string{
		"",
		"# only a comment\n",
		"NOPE 3 0\n1\n2\n3\n",
		"LINEAR -1 0\n",
		"LINEAR 3 -1\n",
		"LINEAR 3 0\n1\n2\n",
		"LINEAR 3 1\n1 2\n3 4\n5 x\n",
		"LINEAR 2 1\n1 2\n3 4\n",
		"GROUPED 3 0\n0 1\n2 2\n0 3\n",
		"GROUPED 3 0\n0 1\n-1 2\n0 3\n",
		"GROUPED 4 0\n0 1\n0 2\n1 3\n1.5 4\n",
	}
	for i, b := range bad {
		_, err := NewDatasetFromBuffer(DatReader{}, []byte(b))
		assert.Error(err, "case %d", i)
	}

	ds, err := NewDatasetFromBuffer(DatReader{}, []byte("# ok\nGROUPED 4 0\n\n0 1\n0 2\n1 3\n1 4\n"))
	assert.NoError(err)
	assert.Equal(2, ds.Groups)
	assert.Equal(1, ds.Coefficients())

	_, err = NewDatasetFromFile(DatReader{}, "../res/does-not-exist.dat")
	assert.Error(err)
}

func TestReadDatasetLines(t *testing.T) {
	assert := assert.New(t)

	// Every row is on its own line
	bad := []string{
		"LINEAR\n3 1\n1 2\n3 4\n5 6\n",
		"LINEAR 3 1\n1 2\n3\n4 5 6\n",
		"LINEAR 3 1\n1 2 3 4 5 6\n",
		"LINEAR 2 1\n1 2\n3 4\n5 6\n",
		"LINEAR 3 1 extra\n1 2\n3 4\n5 6\n",
	}
	for i, b := range bad {
		_, err := NewDatasetFromBuffer(DatReader{}, []byte(b))
		assert.Error(err, "case %d", i)
	}

	_, err := NewDatasetFromBuffer(DatReader{}, []byte("LINEAR 3 1\n1 2\n# skip\n3 4\n5 x\n"))
	assert.Error(err)
	assert.Contains(err.Error(), "Line 5")

	ds, err := NewDatasetFromBuffer(DatReader{}, []byte("  LINEAR 3 1  \n1 2\n\n3   4\n\t5 6.5\n"))
	assert.NoError(err)
	assert.Equal([]float64{1, 3, 5}, ds.Y)
	assert.Equal(6.5, ds.X.At(2, 1))
	assert.Equal(1.0, ds.X.At(2, 0))
}
