package store

import (
	"context"

	"github.com/paissahouse/paissadb/paissa"
)

// DumpRow is one line of the public CSV export. Owner names leave the
// system only as an MD5 hash plus a has-space flag.
type DumpRow struct {
	ID                int64
	World             *string
	District          *string
	WardNumber        int
	PlotNumber        int
	HouseSize         *string
	LottoEntries      *int
	Price             *int
	FirstSeen         float64
	LastSeen          float64
	IsOwned           bool
	OwnerNameHash     *string
	OwnerNameHasSpace *bool
	LottoPhase        *paissa.LotteryPhase
	LottoPhaseUntil   *int64
}

// EachDumpRow streams the full plot-state dump, newest row first, calling
// fn once per row. The table grows without bound so rows are never
// materialized here.
func EachDumpRow(ctx context.Context, q Querier, fn func(DumpRow) error) error {
	rows, err := q.Query(ctx, `
		SELECT s.id                        AS id,
			w.name                         AS world,
			d.name                         AS district,
			s.ward_number + 1              AS ward_number,
			s.plot_number + 1              AS plot_number,
			CASE p.house_size
				WHEN 0 THEN 'SMALL'
				WHEN 1 THEN 'MEDIUM'
				WHEN 2 THEN 'LARGE' END    AS house_size,
			s.lotto_entries                AS lotto_entries,
			s.last_seen_price              AS price,
			s.first_seen                   AS first_seen,
			s.last_seen                    AS last_seen,
			s.is_owned                     AS is_owned,
			MD5(s.owner_name)              AS owner_name_hash,
			s.owner_name LIKE '% %'        AS owner_name_has_space,
			s.lotto_phase                  AS lotto_phase,
			s.lotto_phase_until            AS lotto_phase_until
		FROM plot_states s
			LEFT JOIN plotinfo p ON s.district_id = p.district_id AND s.plot_number = p.plot_number
			LEFT JOIN districts d ON d.id = s.district_id
			LEFT JOIN worlds w ON w.id = s.world_id
		ORDER BY id DESC
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var r DumpRow
		err := rows.Scan(&r.ID, &r.World, &r.District, &r.WardNumber, &r.PlotNumber,
			&r.HouseSize, &r.LottoEntries, &r.Price, &r.FirstSeen, &r.LastSeen,
			&r.IsOwned, &r.OwnerNameHash, &r.OwnerNameHasSpace, &r.LottoPhase,
			&r.LottoPhaseUntil)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}
