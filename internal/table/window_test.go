package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Push(v)
	}
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, []float64{3, 4, 5}, w.Values())

	m := w.Mean()
	require.NotNil(t, m)
	assert.Equal(t, 4.0, *m)
}

func TestWindowPartialMean(t *testing.T) {
	w := NewWindow(20)
	w.Push(10)
	w.Push(20)

	m := w.Mean()
	require.NotNil(t, m)
	assert.Equal(t, 15.0, *m)
}

func TestWindowSkipsMissing(t *testing.T) {
	w := NewWindow(3)
	w.PushMissing()
	assert.Nil(t, w.Mean())

	w.Push(2)
	w.Push(4)
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, []float64{2, 4}, w.Values())

	// The missing value falls out first.
	w.Push(6)
	assert.Equal(t, []float64{2, 4, 6}, w.Values())
}

func TestWindowStdDevNeedsTwoValues(t *testing.T) {
	w := NewWindow(5)
	w.Push(1)
	assert.Nil(t, w.StdDev())

	w.Push(3)
	s := w.StdDev()
	require.NotNil(t, s)
	// sample stddev of {1,3}
	assert.InDelta(t, 1.4142135623730951, *s, 1e-12)
}
