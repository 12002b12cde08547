package hal

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat/distuv"
)

// SimulateOptions controls Simulate.
type SimulateOptions struct {
	// Isolated reuses the receiver as the simulation host: its observation
	// is overwritten by every draw. Otherwise the first call clones the
	// analysis and later calls overwrite the clone.
	Isolated bool
	// Source seeds the Poisson draws. Nil uses a randomly seeded source.
	Source rand.Source
}

type simStamp struct {
	fingerprint        uint64
	activeLo, activeHi int
	isolated           bool
}

// simCache holds the expected counts of the model a simulation draws from,
// and the analysis the draws are written into.
type simCache struct {
	stamp        simStamp
	host         *Analysis
	expectations [][]float64 // nil for inactive bins
}

// Simulate draws a Poisson realisation of the current model plus
// background in every active bin and returns an analysis of it, named
// name. Inactive bins keep their data.
//
// Expected counts and the host analysis are cached and reused while the
// model parameters and the active bins stay the same. Every call returns
// the same host, so the result of one call is overwritten by the next.
func (a *Analysis) Simulate(name string, opts SimulateOptions) (*Analysis, error) {
	if err := a.checkCache(); err != nil {
		return nil, err
	}

	stamp := simStamp{
		fingerprint: a.model.Fingerprint(),
		activeLo:    a.activeLo,
		activeHi:    a.activeHi,
		isolated:    opts.Isolated,
	}
	if a.sim == nil || a.sim.stamp != stamp {
		expectations := make([][]float64, a.tree.Len())
		for i := a.activeLo; i <= a.activeHi; i++ {
			m, err := a.expectation(i)
			if err != nil {
				return nil, err
			}
			exp := append([]float64(nil), a.tree.Bin(i).Background().AsPartial()...)
			for k := range m {
				exp[k] += m[k]
			}
			expectations[i] = exp
		}

		host := a
		if !opts.Isolated {
			c, err := a.Clone()
			if err != nil {
				return nil, err
			}
			host = c
		}
		a.sim = &simCache{stamp: stamp, host: host, expectations: expectations}
	}

	src := opts.Source
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	host := a.sim.host
	for i, exp := range a.sim.expectations {
		if exp == nil {
			continue
		}
		draws := make([]float64, len(exp))
		for k, mu := range exp {
			if mu <= 0 {
				continue
			}
			draws[k] = distuv.Poisson{Lambda: mu, Src: src}.Rand()
		}
		bin := host.tree.Bin(i)
		if err := bin.ReplaceObservation(draws); err != nil {
			return nil, fmt.Errorf("simulated bin %s: %w", bin.Name, err)
		}
	}

	host.name = name
	host.id = uuid.New().String()
	host.computeBiases()
	return host, nil
}
