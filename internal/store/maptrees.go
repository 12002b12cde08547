package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hawc-hal/hal/internal/maptree"
	"github.com/hawc-hal/hal/internal/timeutil"
)

// ErrMapTreeNotFound is returned when no map tree has the requested name.
var ErrMapTreeNotFound = errors.New("store: map tree not found")

// MapTreeInfo summarises a stored map tree.
type MapTreeInfo struct {
	ID        string `json:"maptree_id"`
	Name      string `json:"name"`
	NBins     int    `json:"n_bins"`
	CreatedAt int64  `json:"created_at"`
}

// MapTreeStore reads and writes map trees.
type MapTreeStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewMapTreeStore creates a MapTreeStore over db.
func NewMapTreeStore(db *sql.DB) *MapTreeStore {
	return &MapTreeStore{db: db, clock: timeutil.RealClock{}}
}

// SetClock replaces the clock creation times are taken from.
func (s *MapTreeStore) SetClock(c timeutil.Clock) { s.clock = c }

// SaveMapTree stores tree under name, replacing any tree with the same name,
// and returns the new tree's id.
func (s *MapTreeStore) SaveMapTree(name string, tree *maptree.MapTree) (string, error) {
	id := uuid.New().String()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM maptrees WHERE name = ?`, name); err != nil {
		return "", fmt.Errorf("delete map tree %s: %w", name, err)
	}
	if _, err := tx.Exec(`INSERT INTO maptrees (maptree_id, name, created_at) VALUES (?, ?, ?)`,
		id, name, s.clock.Now().UnixNano()); err != nil {
		return "", fmt.Errorf("insert map tree %s: %w", name, err)
	}

	pixStmt, err := tx.Prepare(`
		INSERT INTO maptree_pixels (maptree_id, bin_index, pixel, observation, background)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare pixel insert: %w", err)
	}
	defer pixStmt.Close()

	for i, b := range tree.Bins() {
		if _, err := tx.Exec(`
			INSERT INTO maptree_bins (maptree_id, bin_index, name, nside, n_transits)
			VALUES (?, ?, ?, ?, ?)`,
			id, i, b.Name, b.NSide(), b.NTransits,
		); err != nil {
			return "", fmt.Errorf("insert bin %s: %w", b.Name, err)
		}
		obs, bkg := b.Observation().AsPartial(), b.Background().AsPartial()
		for k, pix := range b.Observation().Pixels() {
			if _, err := pixStmt.Exec(id, i, pix, obs[k], bkg[k]); err != nil {
				return "", fmt.Errorf("insert pixel %d of bin %s: %w", pix, b.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit map tree %s: %w", name, err)
	}
	return id, nil
}

// LoadMapTree reads the map tree called name. When activePixels is not nil
// only the pixels it returns for each bin's nside are loaded, and every one
// of them must be present in the stored bin.
func (s *MapTreeStore) LoadMapTree(name string, activePixels func(nside int) ([]int, error)) (*maptree.MapTree, error) {
	var id string
	err := s.db.QueryRow(`SELECT maptree_id FROM maptrees WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMapTreeNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("query map tree %s: %w", name, err)
	}

	type binRow struct {
		index     int
		name      string
		nside     int
		nTransits float64
	}
	rows, err := s.db.Query(`
		SELECT bin_index, name, nside, n_transits
		FROM maptree_bins
		WHERE maptree_id = ?
		ORDER BY bin_index`, id)
	if err != nil {
		return nil, fmt.Errorf("query bins: %w", err)
	}
	var binRows []binRow
	for rows.Next() {
		var r binRow
		if err := rows.Scan(&r.index, &r.name, &r.nside, &r.nTransits); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan bin: %w", err)
		}
		binRows = append(binRows, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bins: %w", err)
	}

	bins := make([]*maptree.AnalysisBin, 0, len(binRows))
	for _, r := range binRows {
		var want []int
		if activePixels != nil {
			if want, err = activePixels(r.nside); err != nil {
				return nil, fmt.Errorf("active pixels for bin %s: %w", r.name, err)
			}
		}
		pixels, obs, bkg, err := s.loadPixels(id, r.index, want)
		if err != nil {
			return nil, fmt.Errorf("bin %s: %w", r.name, err)
		}
		obsMap, err := maptree.NewSparseMap(r.nside, pixels, obs)
		if err != nil {
			return nil, fmt.Errorf("bin %s observation: %w", r.name, err)
		}
		bkgMap, err := maptree.NewSparseMap(r.nside, pixels, bkg)
		if err != nil {
			return nil, fmt.Errorf("bin %s background: %w", r.name, err)
		}
		b, err := maptree.NewAnalysisBin(r.name, r.nTransits, obsMap, bkgMap)
		if err != nil {
			return nil, err
		}
		bins = append(bins, b)
	}
	return maptree.New(bins)
}

// loadPixels returns the stored pixels of one bin in ascending order,
// restricted to want (ascending) when it is not nil.
func (s *MapTreeStore) loadPixels(id string, binIndex int, want []int) (pixels []int, obs, bkg []float64, err error) {
	rows, err := s.db.Query(`
		SELECT pixel, observation, background
		FROM maptree_pixels
		WHERE maptree_id = ? AND bin_index = ?
		ORDER BY pixel`, id, binIndex)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("query pixels: %w", err)
	}
	defer rows.Close()

	k := 0
	for rows.Next() {
		var (
			pix  int
			o, b float64
		)
		if err := rows.Scan(&pix, &o, &b); err != nil {
			return nil, nil, nil, fmt.Errorf("scan pixel: %w", err)
		}
		if want != nil {
			if k < len(want) && want[k] < pix {
				return nil, nil, nil, fmt.Errorf("%w: pixel %d is not stored", maptree.ErrPixelMismatch, want[k])
			}
			if k == len(want) || want[k] != pix {
				continue
			}
			k++
		}
		pixels = append(pixels, pix)
		obs = append(obs, o)
		bkg = append(bkg, b)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate pixels: %w", err)
	}
	if want != nil && k < len(want) {
		return nil, nil, nil, fmt.Errorf("%w: pixel %d is not stored", maptree.ErrPixelMismatch, want[k])
	}
	return pixels, obs, bkg, nil
}

// ListMapTrees returns all stored map trees, newest first.
func (s *MapTreeStore) ListMapTrees() ([]MapTreeInfo, error) {
	rows, err := s.db.Query(`
		SELECT m.maptree_id, m.name, m.created_at, COUNT(b.bin_index)
		FROM maptrees m
		LEFT JOIN maptree_bins b ON b.maptree_id = m.maptree_id
		GROUP BY m.maptree_id
		ORDER BY m.created_at DESC, m.name`)
	if err != nil {
		return nil, fmt.Errorf("query map trees: %w", err)
	}
	defer rows.Close()

	var out []MapTreeInfo
	for rows.Next() {
		var info MapTreeInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.CreatedAt, &info.NBins); err != nil {
			return nil, fmt.Errorf("scan map tree: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}
