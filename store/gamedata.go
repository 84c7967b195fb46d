package store

import (
	"context"
	"fmt"

	"github.com/paissahouse/paissadb/gamedata"
	"github.com/paissahouse/paissadb/paissa"
)

// GetWorlds returns every known world ordered by id.
func GetWorlds(ctx context.Context, q Querier) ([]paissa.World, error) {
	rows, err := q.Query(ctx, `
		SELECT id, name, datacenter_id, datacenter_name
		FROM worlds
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	worlds := []paissa.World{}
	for rows.Next() {
		var w paissa.World
		if err := rows.Scan(&w.ID, &w.Name, &w.DatacenterID, &w.DatacenterName); err != nil {
			return nil, err
		}
		worlds = append(worlds, w)
	}
	return worlds, rows.Err()
}

// GetWorld returns one world. pgx.ErrNoRows when the id is unknown.
func GetWorld(ctx context.Context, q Querier, worldID int) (paissa.World, error) {
	var w paissa.World
	err := q.QueryRow(ctx, `
		SELECT id, name, datacenter_id, datacenter_name
		FROM worlds
		WHERE id = $1
	`, worldID).Scan(&w.ID, &w.Name, &w.DatacenterID, &w.DatacenterName)
	return w, err
}

// GetDistricts returns the housing districts ordered by id.
func GetDistricts(ctx context.Context, q Querier) ([]paissa.District, error) {
	rows, err := q.Query(ctx, `
		SELECT id, name, land_set_id
		FROM districts
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	districts := []paissa.District{}
	for rows.Next() {
		var d paissa.District
		if err := rows.Scan(&d.ID, &d.Name, &d.LandSetID); err != nil {
			return nil, err
		}
		districts = append(districts, d)
	}
	return districts, rows.Err()
}

// GetDistrict returns one district. pgx.ErrNoRows when the id is unknown.
func GetDistrict(ctx context.Context, q Querier, districtID int) (paissa.District, error) {
	var d paissa.District
	err := q.QueryRow(ctx, `
		SELECT id, name, land_set_id
		FROM districts
		WHERE id = $1
	`, districtID).Scan(&d.ID, &d.Name, &d.LandSetID)
	return d, err
}

// GetPlotInfo returns the static metadata for one plot.
func GetPlotInfo(ctx context.Context, q Querier, districtID, plotNumber int) (paissa.PlotInfo, error) {
	var p paissa.PlotInfo
	err := q.QueryRow(ctx, `
		SELECT district_id, plot_number, house_size, house_base_price
		FROM plotinfo
		WHERE district_id = $1 AND plot_number = $2
	`, districtID, plotNumber).Scan(&p.DistrictID, &p.PlotNumber, &p.HouseSize, &p.HouseBasePrice)
	return p, err
}

// UpsertGamedata writes the loaded game data tables, updating rows in
// place on conflict so reimports after a game patch are safe.
func UpsertGamedata(ctx context.Context, q Querier, data *gamedata.Data) error {
	for _, w := range data.Worlds {
		_, err := q.Exec(ctx, `
			INSERT INTO worlds (id, name, datacenter_id, datacenter_name)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
				datacenter_id = EXCLUDED.datacenter_id,
				datacenter_name = EXCLUDED.datacenter_name
		`, w.ID, w.Name, w.DatacenterID, w.DatacenterName)
		if err != nil {
			return fmt.Errorf("failed to upsert world %d: %w", w.ID, err)
		}
	}
	for _, d := range data.Districts {
		_, err := q.Exec(ctx, `
			INSERT INTO districts (id, name, land_set_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
				land_set_id = EXCLUDED.land_set_id
		`, d.ID, d.Name, d.LandSetID)
		if err != nil {
			return fmt.Errorf("failed to upsert district %d: %w", d.ID, err)
		}
	}
	for _, p := range data.PlotInfo {
		_, err := q.Exec(ctx, `
			INSERT INTO plotinfo (district_id, plot_number, house_size, house_base_price)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (district_id, plot_number) DO UPDATE
			SET house_size = EXCLUDED.house_size,
				house_base_price = EXCLUDED.house_base_price
		`, p.DistrictID, p.PlotNumber, p.HouseSize, p.HouseBasePrice)
		if err != nil {
			return fmt.Errorf("failed to upsert plotinfo %d/%d: %w", p.DistrictID, p.PlotNumber, err)
		}
	}
	return nil
}
