package model

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zeebo/xxh3"
)

// Model is an ordered set of uniquely named sources. Source parameters may
// be changed in place between likelihood evaluations; adding or removing
// sources requires the model to be set again on the analysis.
type Model struct {
	sources []Source
}

// NewModel returns a model holding sources in order.
func NewModel(sources ...Source) (*Model, error) {
	m := &Model{}
	for _, s := range sources {
		if err := m.Add(s); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add validates s and appends it.
func (m *Model) Add(s Source) error {
	if err := s.Validate(); err != nil {
		return err
	}
	for _, have := range m.sources {
		if have.Name() == s.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateSource, s.Name())
		}
	}
	m.sources = append(m.sources, s)
	return nil
}

// Remove drops the source called name and reports whether it was present.
func (m *Model) Remove(name string) bool {
	for i, s := range m.sources {
		if s.Name() == name {
			m.sources = append(m.sources[:i:i], m.sources[i+1:]...)
			return true
		}
	}
	return false
}

// Sources returns all sources in order.
func (m *Model) Sources() []Source { return m.sources }

// PointSources returns the point sources in model order.
func (m *Model) PointSources() []*PointSource {
	var out []*PointSource
	for _, s := range m.sources {
		if p, ok := s.(*PointSource); ok {
			out = append(out, p)
		}
	}
	return out
}

// ExtendedSources returns the 2-D and 3-D extended sources in model order.
func (m *Model) ExtendedSources() []Source {
	var out []Source
	for _, s := range m.sources {
		if s.Kind().Extended() {
			out = append(out, s)
		}
	}
	return out
}

// NumPointSources returns the number of point sources.
func (m *Model) NumPointSources() int {
	n := 0
	for _, s := range m.sources {
		if s.Kind() == Point {
			n++
		}
	}
	return n
}

// NumExtendedSources returns the number of extended sources.
func (m *Model) NumExtendedSources() int {
	return len(m.sources) - m.NumPointSources()
}

// Fingerprint hashes the names, kinds and parameter values of all sources.
// Two calls return the same value exactly when nothing observable about
// the model changed (up to hash collisions).
func (m *Model) Fingerprint() uint64 {
	buf := make([]byte, 0, 64*len(m.sources))
	for _, s := range m.sources {
		buf = appendSource(buf, s)
	}
	return xxh3.Hash(buf)
}

// SourceFingerprint hashes the name, kind and parameter values of s.
func SourceFingerprint(s Source) uint64 {
	return xxh3.Hash(appendSource(nil, s))
}

// HashParameters hashes a parameter vector. Entries that only depend on a
// subset of a source's parameters use it to detect changes to that subset.
func HashParameters(params []float64) uint64 {
	return xxh3.Hash(appendParams(nil, params))
}

func appendSource(buf []byte, s Source) []byte {
	buf = append(buf, s.Name()...)
	buf = append(buf, 0)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(s.Kind()))
	return appendParams(buf, s.Parameters())
}

func appendParams(buf []byte, params []float64) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(params)))
	for _, p := range params {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p))
	}
	return buf
}
