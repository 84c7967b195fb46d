package paissa

// EntryMatchesState reports whether the observation agrees with the
// stored state on every distinguishing attribute. A false result means
// the observation starts a new epoch rather than extending this one.
//
// Owner names and lottery phases only distinguish when both sides are
// known; a side that never saw the attribute cannot contradict it.
func EntryMatchesState(entry *PlotStateEntry, state *PlotState) bool {
	if entry.IsOwned != state.IsOwned {
		return false
	}
	if entry.PurchaseSystem != state.PurchaseSystem {
		return false
	}
	if entry.OwnerName != nil && state.OwnerName != nil && *entry.OwnerName != *state.OwnerName {
		return false
	}
	if entry.LottoPhase != nil && state.LottoPhase != nil {
		if *entry.LottoPhase != *state.LottoPhase {
			return false
		}
		// A results period ending at a different time is a different
		// lottery cycle even though the phase value matches.
		if *entry.LottoPhase == LotteryPhaseResults &&
			entry.LottoPhaseUntil != nil && state.LottoPhaseUntil != nil &&
			*entry.LottoPhaseUntil != *state.LottoPhaseUntil {
			return false
		}
	}
	return true
}

// UpdateStateFromEntry merges a matching observation into the state in
// place. Market fields are refreshed only when the observation is newer
// than everything already folded in; the owner name is filled whenever
// it was previously unknown.
//
// last_seen advances only on a placard-grade signal (any lottery field
// present), a newly resolved owner name, or once the stored lottery
// window has elapsed. A shallow observation during an active window must
// not mask how stale the last full sweep is. Returns whether last_seen
// advanced.
func UpdateStateFromEntry(state *PlotState, entry *PlotStateEntry) bool {
	advanced := false
	if entry.Timestamp > state.LastSeen {
		if entry.Price != nil {
			state.LastSeenPrice = clone(entry.Price)
		}
		if entry.LottoEntries != nil {
			n := *entry.LottoEntries
			if state.LottoEntries != nil && *state.LottoEntries > n {
				n = *state.LottoEntries
			}
			state.LottoEntries = &n
		}
		if entry.LottoPhase != nil {
			state.LottoPhase = clone(entry.LottoPhase)
		}
		if entry.LottoPhaseUntil != nil {
			state.LottoPhaseUntil = clone(entry.LottoPhaseUntil)
		}
		if entry.PurchaseSystem != 0 {
			state.PurchaseSystem = entry.PurchaseSystem
		}

		var phaseUntil int64
		if state.LottoPhaseUntil != nil {
			phaseUntil = *state.LottoPhaseUntil
		}
		if entry.LottoEntries != nil || entry.LottoPhase != nil || entry.LottoPhaseUntil != nil ||
			(state.OwnerName == nil && entry.OwnerName != nil) ||
			float64(phaseUntil) < entry.Timestamp {
			state.LastSeen = entry.Timestamp
			advanced = true
		}
	}
	if state.OwnerName == nil && entry.OwnerName != nil {
		state.OwnerName = clone(entry.OwnerName)
	}
	return advanced
}

// NewStateFromEntry opens a fresh epoch at the observation's timestamp.
func NewStateFromEntry(entry *PlotStateEntry) *PlotState {
	return &PlotState{
		WorldID:         entry.WorldID,
		DistrictID:      entry.DistrictID,
		WardNumber:      entry.WardNumber,
		PlotNumber:      entry.PlotNumber,
		LastSeen:        entry.Timestamp,
		FirstSeen:       entry.Timestamp,
		IsOwned:         entry.IsOwned,
		LastSeenPrice:   clone(entry.Price),
		OwnerName:       clone(entry.OwnerName),
		PurchaseSystem:  entry.PurchaseSystem,
		LottoEntries:    clone(entry.LottoEntries),
		LottoPhase:      clone(entry.LottoPhase),
		LottoPhaseUntil: clone(entry.LottoPhaseUntil),
	}
}

func clone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
