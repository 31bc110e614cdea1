package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"veriado/internal/logging"
	"veriado/internal/model"
	"veriado/internal/planner"
)

// SaveFavourite stores plan under name for later recall. Duplicate
// names raise Conflict rather than overwriting — spec.md §7 names
// "duplicate favourite name" as a Conflict case.
func (s *Service) SaveFavourite(ctx context.Context, name string, plan *planner.SearchQueryPlan, now time.Time) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return model.Validation("search.SaveFavourite", err)
	}

	var exists int
	s.st.RLock()
	err = s.st.DB().QueryRowContext(ctx, `SELECT 1 FROM search_favourites WHERE name = ?`, name).Scan(&exists)
	s.st.RUnlock()
	if err == nil {
		return model.Conflict("search.SaveFavourite", errFavouriteExists(name))
	}
	if err != sql.ErrNoRows {
		return model.Transient("search.SaveFavourite", err)
	}

	s.st.RLock()
	_, err = s.st.DB().ExecContext(ctx,
		`INSERT INTO search_favourites(name, plan_json, created_utc) VALUES (?, ?, ?)`,
		name, string(data), now.UTC().Format(time.RFC3339Nano),
	)
	s.st.RUnlock()
	if err != nil {
		return model.Transient("search.SaveFavourite", err)
	}
	logging.SearchDebug("saved favourite %q", name)
	return nil
}

// LoadFavourite returns the plan saved under name, or NotFound.
func (s *Service) LoadFavourite(ctx context.Context, name string) (*planner.SearchQueryPlan, error) {
	var data string
	s.st.RLock()
	err := s.st.DB().QueryRowContext(ctx, `SELECT plan_json FROM search_favourites WHERE name = ?`, name).Scan(&data)
	s.st.RUnlock()
	if err == sql.ErrNoRows {
		return nil, model.NotFound("search.LoadFavourite", errNoSuchFavourite(name))
	}
	if err != nil {
		return nil, model.Transient("search.LoadFavourite", err)
	}
	var plan planner.SearchQueryPlan
	if err := json.Unmarshal([]byte(data), &plan); err != nil {
		return nil, model.Validation("search.LoadFavourite", err)
	}
	return &plan, nil
}

// FavouriteName is one saved favourite's identity and save time.
type FavouriteName struct {
	Name       string
	CreatedUTC time.Time
}

// ListFavourites returns all saved favourite names, oldest first.
func (s *Service) ListFavourites(ctx context.Context) ([]FavouriteName, error) {
	s.st.RLock()
	rows, err := s.st.DB().QueryContext(ctx, `SELECT name, created_utc FROM search_favourites ORDER BY created_utc ASC`)
	s.st.RUnlock()
	if err != nil {
		return nil, model.Transient("search.ListFavourites", err)
	}
	defer rows.Close()

	var out []FavouriteName
	for rows.Next() {
		var name, created string
		if err := rows.Scan(&name, &created); err != nil {
			return nil, model.Transient("search.ListFavourites", err)
		}
		t, _ := time.Parse(time.RFC3339Nano, created)
		out = append(out, FavouriteName{Name: name, CreatedUTC: t})
	}
	return out, rows.Err()
}

// DeleteFavourite removes a saved favourite. Idempotent.
func (s *Service) DeleteFavourite(ctx context.Context, name string) error {
	s.st.RLock()
	_, err := s.st.DB().ExecContext(ctx, `DELETE FROM search_favourites WHERE name = ?`, name)
	s.st.RUnlock()
	if err != nil {
		return model.Transient("search.DeleteFavourite", err)
	}
	return nil
}

type favouriteNameError string

func (e favouriteNameError) Error() string { return string(e) }

func errFavouriteExists(name string) error {
	return favouriteNameError("favourite " + name + " already exists")
}

func errNoSuchFavourite(name string) error {
	return favouriteNameError("favourite " + name + " not found")
}
