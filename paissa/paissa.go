// Package paissa holds the domain model of the housing observation
// pipeline: the plot-state history rows, the queue entry exchanged
// between ingest and the reconciler, and the pure functions that decide
// how an observation folds into stored history.
package paissa

// UnknownOwnerName is the sentinel recorded when a plot is known to be
// owned but the sweeper could not resolve the owner's name.
const UnknownOwnerName = "Unknown"

// PlotsPerWard is fixed by the game client: every ward snapshot carries
// exactly this many house entries.
const PlotsPerWard = 60

// EventType discriminates the observation variants a sweeper can submit.
type EventType string

const (
	EventTypeHousingWardInfo EventType = "HOUSING_WARD_INFO"
	EventTypeLotteryInfo     EventType = "LOTTERY_INFO"
)

// PurchaseSystem is a bitflag set describing how a plot can be bought.
// A value without the LOTTERY bit means first-come-first-served.
type PurchaseSystem int

const (
	PurchaseSystemLottery     PurchaseSystem = 1 << 0
	PurchaseSystemFreeCompany PurchaseSystem = 1 << 1
	PurchaseSystemIndividual  PurchaseSystem = 1 << 2
)

// IsLottery reports whether the plot sells by lottery rather than FCFS.
func (p PurchaseSystem) IsLottery() bool {
	return p&PurchaseSystemLottery != 0
}

// LotteryPhase is the lifecycle state of one lottery cycle.
type LotteryPhase int

const (
	LotteryPhaseAvailable   LotteryPhase = 1
	LotteryPhaseResults     LotteryPhase = 2
	LotteryPhaseUnavailable LotteryPhase = 3
)

// World is static game data, loaded once at startup.
type World struct {
	ID             int
	Name           string
	DatacenterID   int
	DatacenterName string
}

// District is static game data; there are five housing districts.
type District struct {
	ID        int
	Name      string
	LandSetID int
}

// PlotInfo is static per-plot metadata keyed by (district, plot number).
type PlotInfo struct {
	DistrictID     int
	PlotNumber     int
	HouseSize      int
	HouseBasePrice int
}

// Sweeper is a client identity established by POST /hello.
type Sweeper struct {
	ID      int64
	Name    string
	WorldID int
}

// PlotState is one row of plot history: a distinguishable epoch during
// which the plot's ownership and market attributes were stable. For a
// given plot the epochs [first_seen, last_seen] never overlap.
type PlotState struct {
	ID              int64
	WorldID         int
	DistrictID      int
	WardNumber      int
	PlotNumber      int
	LastSeen        float64
	FirstSeen       float64
	IsOwned         bool
	LastSeenPrice   *int
	OwnerName       *string
	PurchaseSystem  PurchaseSystem
	LottoEntries    *int
	LottoPhase      *LotteryPhase
	LottoPhaseUntil *int64
}

// Event is an append-only audit row recording each validated observation
// as received. It is never read by the pipeline itself.
type Event struct {
	ID        int64
	SweeperID *int64
	Timestamp float64
	EventType EventType
	Data      string
}

// KeyedEntry pairs a normalized observation with its dedup key and the
// score it is queued under.
type KeyedEntry struct {
	Key   string
	Score float64
	Entry PlotStateEntry
}

// PlotStateEntry is the normalized observation stored under the dedup
// key in redis and consumed by the reconciler. Field names are part of
// the queue payload format.
type PlotStateEntry struct {
	WorldID         int            `json:"world_id"`
	DistrictID      int            `json:"district_id"`
	WardNumber      int            `json:"ward_num"`
	PlotNumber      int            `json:"plot_num"`
	Timestamp       float64        `json:"timestamp"`
	Price           *int           `json:"price"`
	IsOwned         bool           `json:"is_owned"`
	OwnerName       *string        `json:"owner_name"`
	PurchaseSystem  PurchaseSystem `json:"purchase_system"`
	LottoEntries    *int           `json:"lotto_entries"`
	LottoPhase      *LotteryPhase  `json:"lotto_phase"`
	LottoPhaseUntil *int64         `json:"lotto_phase_until"`
}
