package paissa

// Broadcast message types published on the ws_messages channel.
const (
	WSTypePlotOpen   = "plot_open"
	WSTypePlotSold   = "plot_sold"
	WSTypePlotUpdate = "plot_update"
)

// WSMessage is the envelope for every pub/sub broadcast.
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// WorldSummary is the /worlds list element.
type WorldSummary struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	DatacenterID   int    `json:"datacenter_id"`
	DatacenterName string `json:"datacenter_name"`
}

// DistrictSummary is the per-district rollup inside a WorldDetail.
type DistrictSummary struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	NumOpenPlots   int     `json:"num_open_plots"`
	OldestPlotTime float64 `json:"oldest_plot_time"`
}

// WorldDetail is the /worlds/{id} response.
type WorldDetail struct {
	ID             int               `json:"id"`
	Name           string            `json:"name"`
	Districts      []DistrictSummary `json:"districts"`
	NumOpenPlots   int               `json:"num_open_plots"`
	OldestPlotTime float64           `json:"oldest_plot_time"`
}

// DistrictDetail is the /worlds/{wid}/{did} response.
type DistrictDetail struct {
	ID             int              `json:"id"`
	Name           string           `json:"name"`
	NumOpenPlots   int              `json:"num_open_plots"`
	OldestPlotTime float64          `json:"oldest_plot_time"`
	OpenPlots      []OpenPlotDetail `json:"open_plots"`
}

// OpenPlotDetail describes one open plot with the conservative interval
// in which it must have opened.
type OpenPlotDetail struct {
	WorldID         int            `json:"world_id"`
	DistrictID      int            `json:"district_id"`
	WardNumber      int            `json:"ward_number"`
	PlotNumber      int            `json:"plot_number"`
	Size            int            `json:"size"`
	Price           int            `json:"price"`
	LastUpdatedTime float64        `json:"last_updated_time"`
	EstTimeOpenMin  float64        `json:"est_time_open_min"`
	EstTimeOpenMax  float64        `json:"est_time_open_max"`
	PurchaseSystem  PurchaseSystem `json:"purchase_system"`
	LottoEntries    *int           `json:"lotto_entries"`
	LottoPhase      *LotteryPhase  `json:"lotto_phase"`
	LottoPhaseUntil *int64         `json:"lotto_phase_until"`
}

// SoldPlotDetail describes a plot sale with the interval in which it
// must have happened.
type SoldPlotDetail struct {
	WorldID         int     `json:"world_id"`
	DistrictID      int     `json:"district_id"`
	WardNumber      int     `json:"ward_number"`
	PlotNumber      int     `json:"plot_number"`
	Size            int     `json:"size"`
	LastUpdatedTime float64 `json:"last_updated_time"`
	EstTimeSoldMin  float64 `json:"est_time_sold_min"`
	EstTimeSoldMax  float64 `json:"est_time_sold_max"`
}

// PlotUpdate carries refreshed lottery counters for a plot that stayed
// open, including the phase it moved away from.
type PlotUpdate struct {
	WorldID            int            `json:"world_id"`
	DistrictID         int            `json:"district_id"`
	WardNumber         int            `json:"ward_number"`
	PlotNumber         int            `json:"plot_number"`
	Size               int            `json:"size"`
	Price              int            `json:"price"`
	LastUpdatedTime    float64        `json:"last_updated_time"`
	PurchaseSystem     PurchaseSystem `json:"purchase_system"`
	LottoEntries       *int           `json:"lotto_entries"`
	LottoPhase         *LotteryPhase  `json:"lotto_phase"`
	PreviousLottoPhase *LotteryPhase  `json:"previous_lotto_phase"`
	LottoPhaseUntil    *int64         `json:"lotto_phase_until"`
}

// NewOpenPlotDetail bounds when a plot opened given the transition pair:
// the latest possible open time is when the first open state was first
// seen, and the earliest is the last time it was seen sold. With no
// prior sold state the plot has been open as long as we have known it,
// so the lower bound is unknown (zero).
func NewOpenPlotDetail(latest, firstOpen, lastSold *PlotState, info PlotInfo) OpenPlotDetail {
	var estOpenMax float64
	if firstOpen != nil {
		estOpenMax = firstOpen.FirstSeen
	}
	var estOpenMin float64
	if lastSold != nil {
		estOpenMin = lastSold.LastSeen
	}

	price := info.HouseBasePrice
	if latest.LastSeenPrice != nil && *latest.LastSeenPrice != 0 {
		price = *latest.LastSeenPrice
	}

	return OpenPlotDetail{
		WorldID:         latest.WorldID,
		DistrictID:      latest.DistrictID,
		WardNumber:      latest.WardNumber,
		PlotNumber:      latest.PlotNumber,
		Size:            info.HouseSize,
		Price:           price,
		LastUpdatedTime: latest.LastSeen,
		EstTimeOpenMin:  estOpenMin,
		EstTimeOpenMax:  estOpenMax,
		PurchaseSystem:  latest.PurchaseSystem,
		LottoEntries:    visibleLottoEntries(latest.LottoPhase, latest.LottoEntries),
		LottoPhase:      clone(latest.LottoPhase),
		LottoPhaseUntil: clone(latest.LottoPhaseUntil),
	}
}

// NewSoldPlotDetail is the symmetric bound for a sale.
func NewSoldPlotDetail(firstSold, lastOpen *PlotState, info PlotInfo) SoldPlotDetail {
	estSoldMax := firstSold.FirstSeen
	var estSoldMin float64
	if lastOpen != nil {
		estSoldMin = lastOpen.LastSeen
	}

	return SoldPlotDetail{
		WorldID:         firstSold.WorldID,
		DistrictID:      firstSold.DistrictID,
		WardNumber:      firstSold.WardNumber,
		PlotNumber:      firstSold.PlotNumber,
		Size:            info.HouseSize,
		LastUpdatedTime: firstSold.LastSeen,
		EstTimeSoldMin:  estSoldMin,
		EstTimeSoldMax:  estSoldMax,
	}
}

// NewPlotUpdate builds the update detail from the observation that
// caused it and the state as it stood before the observation was folded
// in, so previous_lotto_phase reflects the phase being left behind.
func NewPlotUpdate(entry *PlotStateEntry, prev *PlotState, info PlotInfo) PlotUpdate {
	return PlotUpdate{
		WorldID:            entry.WorldID,
		DistrictID:         entry.DistrictID,
		WardNumber:         entry.WardNumber,
		PlotNumber:         entry.PlotNumber,
		Size:               info.HouseSize,
		Price:              info.HouseBasePrice,
		LastUpdatedTime:    entry.Timestamp,
		PurchaseSystem:     entry.PurchaseSystem,
		LottoEntries:       visibleLottoEntries(entry.LottoPhase, entry.LottoEntries),
		LottoPhase:         clone(entry.LottoPhase),
		PreviousLottoPhase: clone(prev.LottoPhase),
		LottoPhaseUntil:    clone(entry.LottoPhaseUntil),
	}
}

// visibleLottoEntries zeroes the entry count whenever the phase is
// Unavailable; the game sometimes reports stray entries on closed plots.
func visibleLottoEntries(phase *LotteryPhase, entries *int) *int {
	if phase != nil && *phase == LotteryPhaseUnavailable {
		zero := 0
		return &zero
	}
	return clone(entries)
}
