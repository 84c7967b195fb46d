// Package gamedata loads the static game tables the pipeline depends on
// (worlds, housing districts, per-plot sizes and prices) from EXD CSV
// exports of the game client's data files.
package gamedata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/paissahouse/paissadb/paissa"
)

// territoryToLandSet maps housing TerritoryType ids to their land set
// row. Stable since patch 5.35; Empyreum joined in 6.1.
var territoryToLandSet = map[int]int{
	339: 0, // Mist
	340: 1, // Lavender Beds
	341: 2, // The Goblet
	641: 3, // Shirogane
	979: 4, // Empyreum
}

// housingTerritoryIntendedUse marks a TerritoryType row as a housing
// district.
const housingTerritoryIntendedUse = 13

// Data bundles everything loaded from one gamedata directory.
type Data struct {
	Worlds    []paissa.World
	Districts []paissa.District
	PlotInfo  []paissa.PlotInfo
}

// Load reads all static tables from dir.
func Load(log *slog.Logger, dir string) (*Data, error) {
	worlds, err := LoadWorlds(dir)
	if err != nil {
		return nil, fmt.Errorf("load worlds: %w", err)
	}
	districts, err := LoadDistricts(log, dir)
	if err != nil {
		return nil, fmt.Errorf("load districts: %w", err)
	}
	plotInfo, err := LoadPlotInfo(dir, districts)
	if err != nil {
		return nil, fmt.Errorf("load plotinfo: %w", err)
	}
	return &Data{Worlds: worlds, Districts: districts, PlotInfo: plotInfo}, nil
}

// LoadWorlds returns every public world joined with its datacenter name.
func LoadWorlds(dir string) ([]paissa.World, error) {
	dcRows, err := readCSV(filepath.Join(dir, "WorldDCGroupType.csv"))
	if err != nil {
		return nil, err
	}
	datacenters := make(map[string]string, len(dcRows))
	for _, row := range dcRows {
		datacenters[row["#"]] = row["Name"]
	}

	rows, err := readCSV(filepath.Join(dir, "World.csv"))
	if err != nil {
		return nil, err
	}

	var worlds []paissa.World
	for _, row := range rows {
		// Non-public rows are dev/test worlds; datacenter 0 is the
		// placeholder region.
		if row["IsPublic"] != "True" || row["DataCenter"] == "0" {
			continue
		}
		id, err := strconv.Atoi(row["#"])
		if err != nil {
			return nil, fmt.Errorf("world id %q: %w", row["#"], err)
		}
		dcID, err := strconv.Atoi(row["DataCenter"])
		if err != nil {
			return nil, fmt.Errorf("world %d datacenter %q: %w", id, row["DataCenter"], err)
		}
		worlds = append(worlds, paissa.World{
			ID:             id,
			Name:           row["Name"],
			DatacenterID:   dcID,
			DatacenterName: datacenters[row["DataCenter"]],
		})
	}
	return worlds, nil
}

// LoadDistricts returns the five housing districts with their display
// names resolved through PlaceName.
func LoadDistricts(log *slog.Logger, dir string) ([]paissa.District, error) {
	placeRows, err := readCSV(filepath.Join(dir, "PlaceName.csv"))
	if err != nil {
		return nil, err
	}
	placeNames := make(map[string]string, len(placeRows))
	for _, row := range placeRows {
		placeNames[row["#"]] = row["Name"]
	}

	rows, err := readCSV(filepath.Join(dir, "TerritoryType.csv"))
	if err != nil {
		return nil, err
	}

	var districts []paissa.District
	for _, row := range rows {
		if row["TerritoryIntendedUse"] != strconv.Itoa(housingTerritoryIntendedUse) {
			continue
		}
		id, err := strconv.Atoi(row["#"])
		if err != nil {
			return nil, fmt.Errorf("territory id %q: %w", row["#"], err)
		}
		landSetID, ok := territoryToLandSet[id]
		if !ok {
			log.Warn("gamedata: housing territory not in land set map, skipping", "territory_type_id", id)
			continue
		}
		districts = append(districts, paissa.District{
			ID:        id,
			Name:      placeNames[row["PlaceName"]],
			LandSetID: landSetID,
		})
	}
	return districts, nil
}

// LoadPlotInfo expands each district's HousingLandSet row into 60
// per-plot size and base price records.
func LoadPlotInfo(dir string, districts []paissa.District) ([]paissa.PlotInfo, error) {
	rows, err := readCSV(filepath.Join(dir, "HousingLandSet.csv"))
	if err != nil {
		return nil, err
	}
	landSets := make(map[string]map[string]string, len(rows))
	for _, row := range rows {
		landSets[row["#"]] = row
	}

	var plotInfo []paissa.PlotInfo
	for _, district := range districts {
		landSet, ok := landSets[strconv.Itoa(district.LandSetID)]
		if !ok {
			return nil, fmt.Errorf("district %d: land set %d missing", district.ID, district.LandSetID)
		}
		for plotNumber := 0; plotNumber < paissa.PlotsPerWard; plotNumber++ {
			size, err := strconv.Atoi(landSet[fmt.Sprintf("PlotSize[%d]", plotNumber)])
			if err != nil {
				return nil, fmt.Errorf("land set %d plot %d size: %w", district.LandSetID, plotNumber, err)
			}
			price, err := strconv.Atoi(landSet[fmt.Sprintf("InitialPrice[%d]", plotNumber)])
			if err != nil {
				return nil, fmt.Errorf("land set %d plot %d price: %w", district.LandSetID, plotNumber, err)
			}
			plotInfo = append(plotInfo, paissa.PlotInfo{
				DistrictID:     district.ID,
				PlotNumber:     plotNumber,
				HouseSize:      size,
				HouseBasePrice: price,
			})
		}
	}
	return plotInfo, nil
}

// readCSV reads an EXD export. These carry three header rows (column
// indices, column names, column types); only the names row matters.
func readCSV(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("%s: read index row: %w", filepath.Base(path), err)
	}
	headers, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: read header row: %w", filepath.Base(path), err)
	}
	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("%s: read type row: %w", filepath.Base(path), err)
	}

	var rows []map[string]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		row := make(map[string]string, len(headers))
		for i, name := range headers {
			if i < len(record) {
				row[name] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
