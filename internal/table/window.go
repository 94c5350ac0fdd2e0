package table

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Window is a bounded trailing window over a single partition. It keeps at
// most size observations; pushing into a full window evicts the oldest one.
// Missing observations are tracked as NaN and ignored by the aggregates, the
// same way SQL window averages skip nulls.
type Window struct {
	buf   []float64
	size  int
	start int
	n     int
}

// NewWindow returns an empty window holding up to size observations.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{buf: make([]float64, size), size: size}
}

// Push appends v, evicting the oldest observation once the window is full.
func (w *Window) Push(v float64) {
	if w.n < w.size {
		w.buf[(w.start+w.n)%w.size] = v
		w.n++
		return
	}
	w.buf[w.start] = v
	w.start = (w.start + 1) % w.size
}

// PushMissing appends an undefined observation.
func (w *Window) PushMissing() {
	w.Push(math.NaN())
}

// Len reports how many observations (defined or not) the window holds.
func (w *Window) Len() int {
	return w.n
}

// Values returns the defined observations, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, 0, w.n)
	for i := 0; i < w.n; i++ {
		v := w.buf[(w.start+i)%w.size]
		if math.IsNaN(v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Mean is the average of the defined observations, nil when there are none.
func (w *Window) Mean() *float64 {
	vals := w.Values()
	if len(vals) == 0 {
		return nil
	}
	m := stat.Mean(vals, nil)
	return &m
}

// StdDev is the sample standard deviation of the defined observations, nil
// when fewer than two are available.
func (w *Window) StdDev() *float64 {
	vals := w.Values()
	if len(vals) < 2 {
		return nil
	}
	s := stat.StdDev(vals, nil)
	return &s
}
