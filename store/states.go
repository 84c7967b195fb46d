package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/paissahouse/paissadb/paissa"
)

const plotStateColumns = `id, world_id, district_id, ward_number, plot_number,
	last_seen, first_seen, is_owned, last_seen_price, owner_name,
	purchase_system, lotto_entries, lotto_phase, lotto_phase_until`

func scanPlotState(row pgx.Row, s *paissa.PlotState) error {
	return row.Scan(&s.ID, &s.WorldID, &s.DistrictID, &s.WardNumber, &s.PlotNumber,
		&s.LastSeen, &s.FirstSeen, &s.IsOwned, &s.LastSeenPrice, &s.OwnerName,
		&s.PurchaseSystem, &s.LottoEntries, &s.LottoPhase, &s.LottoPhaseUntil)
}

func queryPlotStates(ctx context.Context, q Querier, sql string, args ...any) ([]paissa.PlotState, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := []paissa.PlotState{}
	for rows.Next() {
		var s paissa.PlotState
		if err := scanPlotState(rows, &s); err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, rows.Err()
}

// PlotHistory returns every stored state for one plot, newest first. A
// plot's history is short (one row per distinguishable epoch), so the
// reconciler walks it in memory.
func PlotHistory(ctx context.Context, q Querier, worldID, districtID, wardNumber, plotNumber int) ([]paissa.PlotState, error) {
	return queryPlotStates(ctx, q, `
		SELECT `+plotStateColumns+`
		FROM plot_states
		WHERE world_id = $1 AND district_id = $2 AND ward_number = $3 AND plot_number = $4
		ORDER BY last_seen DESC
	`, worldID, districtID, wardNumber, plotNumber)
}

// PlotHistoryBefore is PlotHistory restricted to states with
// last_seen <= before.
func PlotHistoryBefore(ctx context.Context, q Querier, worldID, districtID, wardNumber, plotNumber int, before float64) ([]paissa.PlotState, error) {
	return queryPlotStates(ctx, q, `
		SELECT `+plotStateColumns+`
		FROM plot_states
		WHERE world_id = $1 AND district_id = $2 AND ward_number = $3 AND plot_number = $4
			AND last_seen <= $5
		ORDER BY last_seen DESC
	`, worldID, districtID, wardNumber, plotNumber, before)
}

// InsertPlotState appends a new state row and fills in its id.
func InsertPlotState(ctx context.Context, q Querier, s *paissa.PlotState) error {
	return q.QueryRow(ctx, `
		INSERT INTO plot_states (world_id, district_id, ward_number, plot_number,
			last_seen, first_seen, is_owned, last_seen_price, owner_name,
			purchase_system, lotto_entries, lotto_phase, lotto_phase_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, s.WorldID, s.DistrictID, s.WardNumber, s.PlotNumber,
		s.LastSeen, s.FirstSeen, s.IsOwned, s.LastSeenPrice, s.OwnerName,
		s.PurchaseSystem, s.LottoEntries, s.LottoPhase, s.LottoPhaseUntil).Scan(&s.ID)
}

// UpdatePlotState persists the mutable fields of an existing state row.
// Identity, first_seen and is_owned never change once a row exists; an
// ownership change is always a new row.
func UpdatePlotState(ctx context.Context, q Querier, s *paissa.PlotState) error {
	tag, err := q.Exec(ctx, `
		UPDATE plot_states
		SET last_seen = $2,
			last_seen_price = $3,
			owner_name = $4,
			purchase_system = $5,
			lotto_entries = $6,
			lotto_phase = $7,
			lotto_phase_until = $8
		WHERE id = $1
	`, s.ID, s.LastSeen, s.LastSeenPrice, s.OwnerName, s.PurchaseSystem,
		s.LottoEntries, s.LottoPhase, s.LottoPhaseUntil)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// LatestState is one row of the latest-per-plot projection, carrying the
// plot metadata the detail builders need.
type LatestState struct {
	paissa.PlotState
	Info paissa.PlotInfo
}

func queryLatestStates(ctx context.Context, q Querier, sql string, args ...any) ([]LatestState, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := []LatestState{}
	for rows.Next() {
		var s LatestState
		err := rows.Scan(&s.ID, &s.WorldID, &s.DistrictID, &s.WardNumber, &s.PlotNumber,
			&s.LastSeen, &s.FirstSeen, &s.IsOwned, &s.LastSeenPrice, &s.OwnerName,
			&s.PurchaseSystem, &s.LottoEntries, &s.LottoPhase, &s.LottoPhaseUntil,
			&s.Info.HouseSize, &s.Info.HouseBasePrice)
		if err != nil {
			return nil, err
		}
		s.Info.DistrictID = s.DistrictID
		s.Info.PlotNumber = s.PlotNumber
		states = append(states, s)
	}
	return states, rows.Err()
}

// LatestStatesInDistrict returns the newest state of every observed plot in
// one district.
func LatestStatesInDistrict(ctx context.Context, q Querier, worldID, districtID int) ([]LatestState, error) {
	return queryLatestStates(ctx, q, `
		SELECT DISTINCT ON (s.ward_number, s.plot_number)
			s.id, s.world_id, s.district_id, s.ward_number, s.plot_number,
			s.last_seen, s.first_seen, s.is_owned, s.last_seen_price, s.owner_name,
			s.purchase_system, s.lotto_entries, s.lotto_phase, s.lotto_phase_until,
			p.house_size, p.house_base_price
		FROM plot_states s
			JOIN plotinfo p ON s.district_id = p.district_id AND s.plot_number = p.plot_number
		WHERE s.world_id = $1 AND s.district_id = $2
		ORDER BY s.ward_number, s.plot_number, s.last_seen DESC
	`, worldID, districtID)
}

// LatestStatesInWorld returns the newest state of every observed plot
// across all districts of one world.
func LatestStatesInWorld(ctx context.Context, q Querier, worldID int) ([]LatestState, error) {
	return queryLatestStates(ctx, q, `
		SELECT DISTINCT ON (s.district_id, s.ward_number, s.plot_number)
			s.id, s.world_id, s.district_id, s.ward_number, s.plot_number,
			s.last_seen, s.first_seen, s.is_owned, s.last_seen_price, s.owner_name,
			s.purchase_system, s.lotto_entries, s.lotto_phase, s.lotto_phase_until,
			p.house_size, p.house_base_price
		FROM plot_states s
			JOIN plotinfo p ON s.district_id = p.district_id AND s.plot_number = p.plot_number
		WHERE s.world_id = $1
		ORDER BY s.district_id, s.ward_number, s.plot_number, s.last_seen DESC
	`, worldID)
}

// StateTransition finds the pair of states around the most recent ownership
// flip for a plot: the earliest state of the current ownership run, and the
// newest state on the far side of the flip. The second state is nil when
// recorded history starts inside the current run.
func StateTransition(ctx context.Context, q Querier, current *paissa.PlotState) (*paissa.PlotState, *paissa.PlotState, error) {
	history, err := PlotHistoryBefore(ctx, q,
		current.WorldID, current.DistrictID, current.WardNumber, current.PlotNumber,
		current.FirstSeen)
	if err != nil {
		return nil, nil, err
	}
	first := current
	for i := range history {
		state := &history[i]
		if state.IsOwned != current.IsOwned {
			return first, state, nil
		}
		first = state
	}
	return first, nil, nil
}
