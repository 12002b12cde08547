// Package resample interpolates values defined on a regular 2-D grid at an
// arbitrary set of target coordinates using barycentric weights over a
// triangulation of the grid.
//
// The expensive part (triangulation and point location) runs once in Prepare.
// The resulting Weights can then be applied to any number of data arrays that
// share the same grid geometry.
package resample

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrDegenerateGrid is returned when the grid has fewer than three
	// distinct, non-collinear points.
	ErrDegenerateGrid = errors.New("resample: grid needs at least 3 non-collinear points")
	// ErrInvalidTarget is returned for NaN or infinite target coordinates.
	ErrInvalidTarget = errors.New("resample: target coordinate is not finite")
	// ErrDataLength is returned when the data does not match the grid size.
	ErrDataLength = errors.New("resample: data length does not match grid")
)

// Triangle holds the flattened grid indices of a simplex's three vertices.
type Triangle [3]int

// Weights is the precomputed interpolation structure for one
// (grid shape, target set) pair. It is immutable once built.
type Weights struct {
	width, height int
	vertices      []Triangle
	weights       [][3]float64
}

// Triangulate splits every cell of a width×height grid into two triangles.
// Grid point (x, y) has flattened index y*width + x. The lower triangle of a
// cell is (x,y),(x+1,y),(x,y+1); the upper one is (x+1,y+1),(x,y+1),(x+1,y).
func Triangulate(width, height int) ([]Triangle, error) {
	if err := checkGrid(width, height); err != nil {
		return nil, err
	}
	tris := make([]Triangle, 0, 2*(width-1)*(height-1))
	for y := 0; y < height-1; y++ {
		for x := 0; x < width-1; x++ {
			p00 := y*width + x
			p10 := p00 + 1
			p01 := p00 + width
			p11 := p01 + 1
			tris = append(tris, Triangle{p00, p10, p01}, Triangle{p11, p01, p10})
		}
	}
	return tris, nil
}

func checkGrid(width, height int) error {
	if width < 2 || height < 2 {
		return fmt.Errorf("%w: grid is %dx%d", ErrDegenerateGrid, width, height)
	}
	return nil
}

// Prepare locates every target in the triangulated grid and computes its
// barycentric weights. Targets are given in grid units: x in [0, width-1]
// along a row, y in [0, height-1] across rows. Targets outside the grid use
// the nearest boundary triangle, which extrapolates linearly.
func Prepare(width, height int, targets []r2.Vec) (*Weights, error) {
	tris, err := Triangulate(width, height)
	if err != nil {
		return nil, err
	}

	w := &Weights{
		width:    width,
		height:   height,
		vertices: make([]Triangle, len(targets)),
		weights:  make([][3]float64, len(targets)),
	}
	for i, p := range targets {
		if !finite(p.X) || !finite(p.Y) {
			return nil, fmt.Errorf("%w: target %d at (%v, %v)", ErrInvalidTarget, i, p.X, p.Y)
		}
		tri := tris[locate(width, height, p)]
		w.vertices[i] = tri
		w.weights[i] = barycentric(p, vertexPos(width, tri[0]), vertexPos(width, tri[1]), vertexPos(width, tri[2]))
	}
	return w, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// locate returns the index (into the Triangulate order) of the triangle that
// contains p, or of the closest boundary triangle when p is outside the grid.
func locate(width, height int, p r2.Vec) int {
	cx := clamp(int(math.Floor(p.X)), 0, width-2)
	cy := clamp(int(math.Floor(p.Y)), 0, height-2)
	fx := p.X - float64(cx)
	fy := p.Y - float64(cy)
	cell := cy*(width-1) + cx
	if fx+fy <= 1 {
		return 2 * cell
	}
	return 2*cell + 1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func vertexPos(width, idx int) r2.Vec {
	return r2.Vec{X: float64(idx % width), Y: float64(idx / width)}
}

// barycentric returns the weights of a, b and c for point p. The weight of a
// is derived from the other two so the three always sum to one.
func barycentric(p, a, b, c r2.Vec) [3]float64 {
	ab := r2.Sub(b, a)
	ac := r2.Sub(c, a)
	ap := r2.Sub(p, a)
	det := r2.Cross(ab, ac)
	wb := r2.Cross(ap, ac) / det
	wc := r2.Cross(ab, ap) / det
	return [3]float64{1 - wb - wc, wb, wc}
}

// Len returns the number of target points.
func (w *Weights) Len() int { return len(w.vertices) }

// Shape returns the grid shape the weights were prepared for.
func (w *Weights) Shape() (width, height int) { return w.width, w.height }

// At returns the vertex indices and weights used for target i.
func (w *Weights) At(i int) (Triangle, [3]float64) {
	return w.vertices[i], w.weights[i]
}

// Apply interpolates data (row-major, width*height values) at every target.
func (w *Weights) Apply(data []float64) ([]float64, error) {
	out := make([]float64, len(w.vertices))
	if err := w.ApplyInto(out, data); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyInto is Apply writing into dst, which must have Len() elements.
func (w *Weights) ApplyInto(dst, data []float64) error {
	if len(data) != w.width*w.height {
		return fmt.Errorf("%w: got %d values for a %dx%d grid", ErrDataLength, len(data), w.width, w.height)
	}
	if len(dst) != len(w.vertices) {
		return fmt.Errorf("%w: destination has %d slots for %d targets", ErrDataLength, len(dst), len(w.vertices))
	}
	for i, tri := range w.vertices {
		wt := w.weights[i]
		dst[i] = data[tri[0]]*wt[0] + data[tri[1]]*wt[1] + data[tri[2]]*wt[2]
	}
	return nil
}
