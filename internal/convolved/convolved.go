// Package convolved caches, per model source, the flux each analysis bin
// receives on the flat-sky grid.
//
// Maps are in expected counts per transit per flat-sky pixel. Point-source
// maps already include the PSF; extended-source maps do not, since the
// expectation builder convolves the sum of all extended sources at once.
package convolved

import (
	"github.com/hawc-hal/hal/internal/flatsky"
	"github.com/hawc-hal/hal/internal/model"
	"github.com/hawc-hal/hal/internal/psf"
	"github.com/hawc-hal/hal/internal/response"
	"gonum.org/v1/gonum/mat"
)

// Builder holds what is needed to turn a source into per-bin flux maps.
type Builder struct {
	proj    *flatsky.Projection
	resp    *response.Response
	central []*response.Bin
	// sky position of every flat pixel centre, row-major
	ras, decs []float64
}

// NewBuilder returns a builder for proj. Point sources use the response
// bins nearest their own declination; extended sources use central, the
// bins of the declination band of the ROI centre.
func NewBuilder(proj *flatsky.Projection, resp *response.Response, central []*response.Bin) *Builder {
	b := &Builder{
		proj:    proj,
		resp:    resp,
		central: central,
		ras:     make([]float64, proj.NPix()),
		decs:    make([]float64, proj.NPix()),
	}
	for y := 0; y < proj.Height; y++ {
		for x := 0; x < proj.Width; x++ {
			b.ras[y*proj.Width+x], b.decs[y*proj.Width+x] = proj.SkyCoords(float64(x), float64(y))
		}
	}
	return b
}

// NBins returns the number of analysis bins maps are built for.
func (b *Builder) NBins() int { return len(b.central) }

// Projection returns the flat-sky projection of the maps.
func (b *Builder) Projection() *flatsky.Projection { return b.proj }

// NewEntry returns an empty entry for src. Maps are built on first use.
func (b *Builder) NewEntry(src model.Source) *Entry {
	return &Entry{
		builder: b,
		source:  src,
		maps:    make([]*mat.Dense, b.NBins()),
		images:  make([]*mat.Dense, b.NBins()),
	}
}

// Entry is the cached per-bin flux of one source. Parameters may change in
// place between calls: maps are rebuilt when the source's fingerprint
// changes, and the PSF or morphology images only when the parameters they
// depend on change.
type Entry struct {
	builder *Builder
	source  model.Source

	fingerprint uint64
	maps        []*mat.Dense

	// unit-flux morphology per bin (PSF image for point sources, pixel
	// integrated shape for 2-D extended sources)
	imageKey uint64
	images   []*mat.Dense
}

// Source returns the source the entry was built for.
func (e *Entry) Source() model.Source { return e.source }

// Kind returns the source variant.
func (e *Entry) Kind() model.Kind { return e.source.Kind() }

// SourceMap returns the flux map of analysis bin i. The matrix is owned by
// the entry and must not be modified.
func (e *Entry) SourceMap(i int) *mat.Dense {
	if fp := model.SourceFingerprint(e.source); fp != e.fingerprint {
		clear(e.maps)
		e.fingerprint = fp
	}
	if m := e.maps[i]; m != nil {
		return m
	}

	var m *mat.Dense
	switch s := e.source.(type) {
	case *model.PointSource:
		m = e.pointMap(s, i)
	case *model.ExtendedSource2D:
		m = e.extended2DMap(s, i)
	case *model.ExtendedSource3D:
		m = e.extended3DMap(s, i)
	}
	e.maps[i] = m
	return m
}

func (e *Entry) image(key uint64, i int, build func() *mat.Dense) *mat.Dense {
	if key != e.imageKey {
		clear(e.images)
		e.imageKey = key
	}
	if e.images[i] == nil {
		e.images[i] = build()
	}
	return e.images[i]
}

func (e *Entry) pointMap(s *model.PointSource, i int) *mat.Dense {
	b := e.builder
	bins, _ := b.resp.BinsNear(s.Dec)
	bin := bins[i]

	img := e.image(model.HashParameters([]float64{s.RA, s.Dec}), i, func() *mat.Dense {
		return psf.PointSourceImage(bin.PSF, b.proj, s.RA, s.Dec)
	})

	var m mat.Dense
	m.Scale(bin.ExpectedCounts(s.Spectrum.Evaluate), img)
	return &m
}

func (e *Entry) extended2DMap(s *model.ExtendedSource2D, i int) *mat.Dense {
	b := e.builder
	img := e.image(model.HashParameters(s.Shape.Parameters()), i, func() *mat.Dense {
		// the morphology is the same in every bin
		for _, have := range e.images {
			if have != nil {
				return have
			}
		}
		area := b.proj.PixelArea()
		grid := b.proj.NewGrid()
		raw := grid.RawMatrix().Data
		for k := range raw {
			raw[k] = s.Shape.Brightness(b.ras[k], b.decs[k]) * area
		}
		return grid
	})

	var m mat.Dense
	m.Scale(b.central[i].ExpectedCounts(s.Spectrum.Evaluate), img)
	return &m
}

func (e *Entry) extended3DMap(s *model.ExtendedSource3D, i int) *mat.Dense {
	b := e.builder
	bin := b.central[i]
	weights := bin.EnergyWeights()
	area := b.proj.PixelArea()

	grid := b.proj.NewGrid()
	raw := grid.RawMatrix().Data
	for k := range raw {
		total := 0.0
		for j, energy := range bin.SimEnergyCenters {
			total += weights[j] * s.Template.Brightness(b.ras[k], b.decs[k], energy)
		}
		raw[k] = total * area
	}
	return grid
}

// Size returns the approximate memory held by the entry's grids in bytes.
func (e *Entry) Size() int {
	seen := make(map[*mat.Dense]bool)
	n := 0
	for _, set := range [][]*mat.Dense{e.maps, e.images} {
		for _, m := range set {
			// 2-D morphologies share one grid across bins
			if m == nil || seen[m] {
				continue
			}
			seen[m] = true
			r, c := m.Dims()
			n += 8 * r * c
		}
	}
	return n
}

// Container is an ordered list of entries of one kind.
type Container struct {
	entries []*Entry
}

// Reset drops all entries.
func (c *Container) Reset() { c.entries = nil }

// Append adds an entry at the end.
func (c *Container) Append(e *Entry) { c.entries = append(c.entries, e) }

// At returns entry i.
func (c *Container) At(i int) *Entry { return c.entries[i] }

// Len returns the number of entries.
func (c *Container) Len() int { return len(c.entries) }

// Size returns the memory held by all entries in bytes.
func (c *Container) Size() int {
	n := 0
	for _, e := range c.entries {
		n += e.Size()
	}
	return n
}
