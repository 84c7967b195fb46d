package store

import (
	"context"

	"github.com/paissahouse/paissadb/paissa"
)

// GetWorldDetail assembles the per-district rollups for one world. Rollups
// count open plots and report the oldest last_seen among them; districts
// with no open plots report zero.
func GetWorldDetail(ctx context.Context, q Querier, world paissa.World) (paissa.WorldDetail, error) {
	detail := paissa.WorldDetail{ID: world.ID, Name: world.Name}

	latest, err := LatestStatesInWorld(ctx, q, world.ID)
	if err != nil {
		return detail, err
	}
	districts, err := GetDistricts(ctx, q)
	if err != nil {
		return detail, err
	}

	type rollup struct {
		open   int
		oldest float64
	}
	byDistrict := map[int]*rollup{}
	for i := range latest {
		state := &latest[i]
		if state.IsOwned {
			continue
		}
		r := byDistrict[state.DistrictID]
		if r == nil {
			r = &rollup{}
			byDistrict[state.DistrictID] = r
		}
		r.open++
		if r.oldest == 0 || state.LastSeen < r.oldest {
			r.oldest = state.LastSeen
		}
	}

	detail.Districts = make([]paissa.DistrictSummary, 0, len(districts))
	for _, d := range districts {
		summary := paissa.DistrictSummary{ID: d.ID, Name: d.Name}
		if r := byDistrict[d.ID]; r != nil {
			summary.NumOpenPlots = r.open
			summary.OldestPlotTime = r.oldest
		}
		detail.Districts = append(detail.Districts, summary)
		detail.NumOpenPlots += summary.NumOpenPlots
		if summary.OldestPlotTime != 0 &&
			(detail.OldestPlotTime == 0 || summary.OldestPlotTime < detail.OldestPlotTime) {
			detail.OldestPlotTime = summary.OldestPlotTime
		}
	}
	return detail, nil
}

// GetDistrictDetail assembles the full open-plot listing for one district,
// walking each open plot's history once to bound when it opened.
func GetDistrictDetail(ctx context.Context, q Querier, world paissa.World, district paissa.District) (paissa.DistrictDetail, error) {
	detail := paissa.DistrictDetail{
		ID:        district.ID,
		Name:      district.Name,
		OpenPlots: []paissa.OpenPlotDetail{},
	}

	latest, err := LatestStatesInDistrict(ctx, q, world.ID, district.ID)
	if err != nil {
		return detail, err
	}

	for i := range latest {
		state := &latest[i].PlotState
		if state.IsOwned {
			continue
		}
		detail.NumOpenPlots++
		if detail.OldestPlotTime == 0 || state.LastSeen < detail.OldestPlotTime {
			detail.OldestPlotTime = state.LastSeen
		}
		firstOpen, lastSold, err := StateTransition(ctx, q, state)
		if err != nil {
			return detail, err
		}
		detail.OpenPlots = append(detail.OpenPlots, paissa.NewOpenPlotDetail(state, firstOpen, lastSold, latest[i].Info))
	}
	return detail, nil
}
