package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hawc-hal/hal/internal/response"
)

// ResponseStore reads and writes detector responses. It implements
// response.Loader.
type ResponseStore struct {
	db *sql.DB
}

// NewResponseStore creates a ResponseStore over db.
func NewResponseStore(db *sql.DB) *ResponseStore {
	return &ResponseStore{db: db}
}

// SaveResponse stores r under its name, replacing any previous version.
func (s *ResponseStore) SaveResponse(r *response.Response) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM responses WHERE name = ?`, r.Name()); err != nil {
		return fmt.Errorf("delete response %s: %w", r.Name(), err)
	}
	if _, err := tx.Exec(`INSERT INTO responses (name) VALUES (?)`, r.Name()); err != nil {
		return fmt.Errorf("insert response %s: %w", r.Name(), err)
	}

	for i, d := range r.DecBins() {
		if _, err := tx.Exec(`
			INSERT INTO response_dec_bins (response_name, dec_index, dec_min, dec_center, dec_max)
			VALUES (?, ?, ?, ?, ?)`,
			r.Name(), i, d.Min, d.Center, d.Max,
		); err != nil {
			return fmt.Errorf("insert dec bin %d: %w", i, err)
		}

		for j, b := range r.Bins(i) {
			radii, values := b.PSF.Table()
			cols, err := marshalArrays(radii, values, b.SimEnergyCenters, b.SimDifferentialFluxes, b.SimSignalEventsPerBin)
			if err != nil {
				return fmt.Errorf("encode bin %s of dec bin %d: %w", b.Name, i, err)
			}
			if _, err := tx.Exec(`
				INSERT INTO response_bins (
					response_name, dec_index, bin_index, name,
					psf_radii, psf_values, sim_energy_centers, sim_diff_fluxes, sim_signal_per_bin,
					sim_signal_events, sim_background_events
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.Name(), i, j, b.Name,
				cols[0], cols[1], cols[2], cols[3], cols[4],
				b.SimSignalEvents, b.SimBackgroundEvents,
			); err != nil {
				return fmt.Errorf("insert bin %s of dec bin %d: %w", b.Name, i, err)
			}
		}
	}
	return tx.Commit()
}

// LoadResponse reads the response called name. It returns
// response.ErrNotFound when no such response was saved.
func (s *ResponseStore) LoadResponse(name string) (*response.Response, error) {
	var exists string
	err := s.db.QueryRow(`SELECT name FROM responses WHERE name = ?`, name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", response.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("query response %s: %w", name, err)
	}

	decBins, err := s.loadDecBins(name)
	if err != nil {
		return nil, err
	}

	bins := make([][]*response.Bin, len(decBins))
	rows, err := s.db.Query(`
		SELECT dec_index, name, psf_radii, psf_values, sim_energy_centers, sim_diff_fluxes,
		       sim_signal_per_bin, sim_signal_events, sim_background_events
		FROM response_bins
		WHERE response_name = ?
		ORDER BY dec_index, bin_index`, name)
	if err != nil {
		return nil, fmt.Errorf("query response bins: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			decIndex int
			b        response.Bin
			cols     [5]string
		)
		if err := rows.Scan(&decIndex, &b.Name, &cols[0], &cols[1], &cols[2], &cols[3], &cols[4],
			&b.SimSignalEvents, &b.SimBackgroundEvents); err != nil {
			return nil, fmt.Errorf("scan response bin: %w", err)
		}
		if decIndex < 0 || decIndex >= len(decBins) {
			return nil, fmt.Errorf("%w: bin %s references dec bin %d", response.ErrMalformed, b.Name, decIndex)
		}
		arrays, err := unmarshalArrays(cols[:])
		if err != nil {
			return nil, fmt.Errorf("%w: bin %s: %v", response.ErrMalformed, b.Name, err)
		}
		b.PSF, err = response.NewTabulatedPSF(arrays[0], arrays[1])
		if err != nil {
			return nil, fmt.Errorf("bin %s of dec bin %d: %w", b.Name, decIndex, err)
		}
		b.SimEnergyCenters, b.SimDifferentialFluxes, b.SimSignalEventsPerBin = arrays[2], arrays[3], arrays[4]
		d := decBins[decIndex]
		b.DecMin, b.DecCenter, b.DecMax = d.Min, d.Center, d.Max
		bins[decIndex] = append(bins[decIndex], &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate response bins: %w", err)
	}

	return response.New(name, decBins, bins)
}

func (s *ResponseStore) loadDecBins(name string) ([]response.DecBin, error) {
	rows, err := s.db.Query(`
		SELECT dec_min, dec_center, dec_max
		FROM response_dec_bins
		WHERE response_name = ?
		ORDER BY dec_index`, name)
	if err != nil {
		return nil, fmt.Errorf("query dec bins: %w", err)
	}
	defer rows.Close()

	var out []response.DecBin
	for rows.Next() {
		var d response.DecBin
		if err := rows.Scan(&d.Min, &d.Center, &d.Max); err != nil {
			return nil, fmt.Errorf("scan dec bin: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func marshalArrays(arrays ...[]float64) ([]string, error) {
	out := make([]string, len(arrays))
	for i, a := range arrays {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		out[i] = string(b)
	}
	return out, nil
}

func unmarshalArrays(cols []string) ([][]float64, error) {
	out := make([][]float64, len(cols))
	for i, c := range cols {
		if err := json.Unmarshal([]byte(c), &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
