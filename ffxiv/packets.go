// Package ffxiv decodes the observation packets captured by the game
// client plugin. Shapes and field names mirror the game's wire structs,
// so JSON keys are PascalCase where the client defines them.
package ffxiv

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paissahouse/paissadb/paissa"
)

// ErrUnknownEventType rejects a batch containing an unrecognized
// observation variant.
var ErrUnknownEventType = errors.New("unknown event type")

// HousingFlags is the game's per-plot info bitfield.
type HousingFlags int

const (
	HousingFlagPlotOwned        HousingFlags = 1 << 0
	HousingFlagVisitorsAllowed  HousingFlags = 1 << 1
	HousingFlagHasSearchComment HousingFlags = 1 << 2
	HousingFlagHouseBuilt       HousingFlags = 1 << 3
	HousingFlagOwnedByFC        HousingFlags = 1 << 4
)

// PurchaseType is the game's sale mechanism enum.
type PurchaseType int

const (
	PurchaseTypeUnknown PurchaseType = 0
	PurchaseTypeFCFS    PurchaseType = 1
	PurchaseTypeLottery PurchaseType = 2
)

// TenantType restricts who may buy a plot.
type TenantType int

const (
	TenantTypeFreeCompany  TenantType = 1
	TenantTypePersonal     TenantType = 2
	TenantTypeUnrestricted TenantType = 3
)

// AvailabilityType is the game's lottery phase enum; values coincide
// with paissa.LotteryPhase.
type AvailabilityType int

const (
	AvailabilityAvailable   AvailabilityType = 1
	AvailabilityResults     AvailabilityType = 2
	AvailabilityUnavailable AvailabilityType = 3
)

// LandIdent addresses one ward in the game world.
type LandIdent struct {
	LandID          int `json:"LandId"`
	WardNumber      int `json:"WardNumber"`
	TerritoryTypeID int `json:"TerritoryTypeId"`
	WorldID         int `json:"WorldId"`
}

// HouseInfoEntry is one plot's slice of a ward snapshot.
type HouseInfoEntry struct {
	HousePrice      int          `json:"HousePrice"`
	InfoFlags       HousingFlags `json:"InfoFlags"`
	HouseAppeals    []int        `json:"HouseAppeals"`
	EstateOwnerName string       `json:"EstateOwnerName"`
}

// Packet is one decoded observation. StateEntries normalizes it into
// dedup-keyed queue entries; Timestamp is the authoritative capture
// time (the game server's for ward snapshots, the sweeper's clock for
// lottery readings) used for the future-skew check and the audit row.
type Packet interface {
	EventType() paissa.EventType
	Timestamp() float64
	StateEntries() []paissa.KeyedEntry
	Validate() error
}

// HousingWardInfo is a full sweep of one ward: 60 plots at the server's
// own timestamp.
type HousingWardInfo struct {
	Type             paissa.EventType `json:"event_type"`
	ClientTS         float64          `json:"client_timestamp"`
	ServerTimestamp  float64          `json:"server_timestamp"`
	LandIdent        LandIdent        `json:"LandIdent"`
	HouseInfoEntries []HouseInfoEntry `json:"HouseInfoEntries"`
	PurchaseType     PurchaseType     `json:"PurchaseType"`
	TenantType       TenantType       `json:"TenantType"`
}

func (w *HousingWardInfo) EventType() paissa.EventType { return paissa.EventTypeHousingWardInfo }
func (w *HousingWardInfo) Timestamp() float64          { return w.ServerTimestamp }

func (w *HousingWardInfo) Validate() error {
	if len(w.HouseInfoEntries) != paissa.PlotsPerWard {
		return fmt.Errorf("ward snapshot has %d house entries, want %d", len(w.HouseInfoEntries), paissa.PlotsPerWard)
	}
	return nil
}

// StateEntries expands the snapshot into one entry per plot. The ward
// packet carries the server's timestamp, which is authoritative for
// both the queue score and the entry.
func (w *HousingWardInfo) StateEntries() []paissa.KeyedEntry {
	worldID := w.LandIdent.WorldID
	districtID := w.LandIdent.TerritoryTypeID
	wardNumber := w.LandIdent.WardNumber
	system := ToPurchaseSystem(w.PurchaseType, w.TenantType)

	items := make([]paissa.KeyedEntry, 0, len(w.HouseInfoEntries))
	for plotNumber, house := range w.HouseInfoEntries {
		isOwned := house.InfoFlags&HousingFlagPlotOwned != 0
		owner := ""
		if isOwned {
			owner = house.EstateOwnerName
		}
		var ownerName *string
		if owner != "" {
			name := owner
			ownerName = &name
		}
		price := house.HousePrice

		items = append(items, paissa.KeyedEntry{
			Key:   paissa.WardInfoDedupKey(worldID, districtID, wardNumber, plotNumber, owner),
			Score: w.ServerTimestamp,
			Entry: paissa.PlotStateEntry{
				WorldID:        worldID,
				DistrictID:     districtID,
				WardNumber:     wardNumber,
				PlotNumber:     plotNumber,
				Timestamp:      w.ServerTimestamp,
				Price:          &price,
				IsOwned:        isOwned,
				OwnerName:      ownerName,
				PurchaseSystem: system,
			},
		})
	}
	return items
}

// LotteryInfo is a placard or aetheryte reading of a single plot's
// lottery counters. The game provides no server timestamp for these.
type LotteryInfo struct {
	Type             paissa.EventType `json:"event_type"`
	ClientTS         float64          `json:"client_timestamp"`
	WorldID          int              `json:"WorldId"`
	DistrictID       int              `json:"DistrictId"`
	WardID           int              `json:"WardId"`
	PlotID           int              `json:"PlotId"`
	PurchaseType     PurchaseType     `json:"PurchaseType"`
	TenantType       TenantType       `json:"TenantType"`
	AvailabilityType AvailabilityType `json:"AvailabilityType"`
	PhaseEndsAt      int64            `json:"PhaseEndsAt"`
	EntryCount       int              `json:"EntryCount"`
}

func (l *LotteryInfo) EventType() paissa.EventType { return paissa.EventTypeLotteryInfo }
func (l *LotteryInfo) Timestamp() float64          { return l.ClientTS }

func (l *LotteryInfo) Validate() error {
	switch l.AvailabilityType {
	case AvailabilityAvailable, AvailabilityResults, AvailabilityUnavailable:
		return nil
	default:
		return fmt.Errorf("invalid AvailabilityType %d", l.AvailabilityType)
	}
}

func (l *LotteryInfo) StateEntries() []paissa.KeyedEntry {
	entries := l.EntryCount
	phase := paissa.LotteryPhase(l.AvailabilityType)
	until := l.PhaseEndsAt

	return []paissa.KeyedEntry{{
		Key:   paissa.LotteryInfoDedupKey(l.WorldID, l.DistrictID, l.WardID, l.PlotID),
		Score: l.ClientTS,
		Entry: paissa.PlotStateEntry{
			WorldID:         l.WorldID,
			DistrictID:      l.DistrictID,
			WardNumber:      l.WardID,
			PlotNumber:      l.PlotID,
			Timestamp:       l.ClientTS,
			IsOwned:         false,
			PurchaseSystem:  ToPurchaseSystem(l.PurchaseType, l.TenantType),
			LottoEntries:    &entries,
			LottoPhase:      &phase,
			LottoPhaseUntil: &until,
		},
	}}
}

// ParsePacket decodes one observation by its event_type discriminator.
func ParsePacket(raw json.RawMessage) (Packet, error) {
	var head struct {
		EventType paissa.EventType `json:"event_type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode event_type: %w", err)
	}

	switch head.EventType {
	case paissa.EventTypeHousingWardInfo:
		var p HousingWardInfo
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.EventType, err)
		}
		return &p, nil
	case paissa.EventTypeLotteryInfo:
		var p LotteryInfo
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.EventType, err)
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, string(head.EventType))
	}
}

// ToPurchaseSystem folds the game's purchase and tenant enums into the
// output bitflag set.
func ToPurchaseSystem(pt PurchaseType, tt TenantType) paissa.PurchaseSystem {
	var system paissa.PurchaseSystem
	if pt == PurchaseTypeLottery {
		system |= paissa.PurchaseSystemLottery
	}
	switch tt {
	case TenantTypePersonal:
		system |= paissa.PurchaseSystemIndividual
	case TenantTypeFreeCompany:
		system |= paissa.PurchaseSystemFreeCompany
	case TenantTypeUnrestricted:
		system |= paissa.PurchaseSystemFreeCompany | paissa.PurchaseSystemIndividual
	}
	return system
}
