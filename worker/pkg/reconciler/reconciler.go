// Package reconciler drains the scored observation queue and folds each
// observation into the stored plot-state history, one SQL transaction per
// observation. State transitions are published to the websocket fanout
// channel as they are discovered.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/paissahouse/paissadb/paissa"
	"github.com/paissahouse/paissadb/store"
	"github.com/paissahouse/paissadb/worker/pkg/metrics"
)

// queueLengthInterval is how often the queue length gauge refreshes.
const queueLengthInterval = 15 * time.Second

// Reconcile outcomes, used as the metric label.
const (
	outcomeFirst    = "first"
	outcomeExtended = "extended"
	outcomeAppended = "appended"
	outcomeMerged   = "merged"
	outcomeMismatch = "mismatch"
)

type Reconciler struct {
	log   *slog.Logger
	cfg   Config
	ready atomic.Bool
}

func New(cfg Config) (*Reconciler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Reconciler{log: cfg.Logger, cfg: cfg}, nil
}

// Ready reports whether the drain loop is running.
func (r *Reconciler) Ready() bool {
	return r.ready.Load()
}

// Run drains the queue until ctx is done. A failed reconcile is logged
// and the loop moves on: the popped observation is not re-enqueued, the
// audit event row already exists, and later observations of the same
// plot re-establish its state.
func (r *Reconciler) Run(ctx context.Context) {
	r.ready.Store(true)
	defer r.ready.Store(false)

	go r.pollQueueLength(ctx)

	for {
		key, score, err := r.cfg.Queue.PopMin(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error("failed to pop event queue", "error", err)
			r.cfg.Clock.Sleep(time.Second)
			continue
		}
		r.log.Debug("popped event", "key", key, "score", score)

		if err := r.processKey(ctx, key); err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.ReconcilesTotal.WithLabelValues("error").Inc()
			r.log.Error("failed to process event", "key", key, "error", err)
		}
	}
}

// processKey claims the payload behind a popped key and reconciles it. A
// missing payload means the dedup TTL elapsed while the key sat in the
// queue; the observation is stale enough to drop.
func (r *Reconciler) processKey(ctx context.Context, key string) error {
	payload, err := r.cfg.Queue.TakePayload(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to take payload: %w", err)
	}
	if payload == nil {
		metrics.PayloadsExpiredTotal.Inc()
		r.log.Warn("payload expired before processing", "key", key)
		return nil
	}

	var entry paissa.PlotStateEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	start := r.cfg.Clock.Now()
	err = r.Reconcile(ctx, &entry)
	metrics.ReconcileDuration.Observe(r.cfg.Clock.Since(start).Seconds())
	return err
}

// Reconcile folds one observation into its plot's stored history inside a
// single transaction. The advisory lock serializes concurrent workers per
// plot, so the history walk sees a stable snapshot.
func (r *Reconciler) Reconcile(ctx context.Context, entry *paissa.PlotStateEntry) error {
	tx, err := r.cfg.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := store.LockPlot(ctx, tx, entry.WorldID, entry.DistrictID, entry.WardNumber, entry.PlotNumber); err != nil {
		return fmt.Errorf("failed to lock plot: %w", err)
	}

	history, err := store.PlotHistory(ctx, tx, entry.WorldID, entry.DistrictID, entry.WardNumber, entry.PlotNumber)
	if err != nil {
		return fmt.Errorf("failed to load plot history: %w", err)
	}

	outcome, err := r.apply(ctx, tx, entry, history)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	metrics.ReconcilesTotal.WithLabelValues(outcome).Inc()
	return nil
}

// apply walks the plot's history newest first and decides how the
// observation lands: extending or succeeding the newest epoch, merging
// into the epoch it falls inside, or opening the plot's very first epoch.
func (r *Reconciler) apply(ctx context.Context, tx pgx.Tx, entry *paissa.PlotStateEntry, history []paissa.PlotState) (string, error) {
	for i := range history {
		state := &history[i]
		newest := i == 0

		switch {
		case entry.Timestamp > state.LastSeen:
			// Newer than this epoch: extend it, or start its successor.
			if paissa.EntryMatchesState(entry, state) {
				prev := *state
				if !paissa.UpdateStateFromEntry(state, entry) {
					metrics.LastSeenGateTotal.Inc()
				}
				if err := store.UpdatePlotState(ctx, tx, state); err != nil {
					return "", fmt.Errorf("failed to update state %d: %w", state.ID, err)
				}
				// A placard reading refreshing the current open epoch is
				// worth announcing: viewers track live entry counts.
				if newest && !state.IsOwned && entry.LottoPhase != nil {
					if err := r.publishUpdate(ctx, tx, entry, &prev); err != nil {
						return "", err
					}
				}
				return outcomeExtended, nil
			}

			newState := paissa.NewStateFromEntry(entry)
			if err := store.InsertPlotState(ctx, tx, newState); err != nil {
				return "", fmt.Errorf("failed to insert state: %w", err)
			}
			if newest {
				if err := r.publishTransition(ctx, tx, entry, newState, state); err != nil {
					return "", err
				}
			}
			return outcomeAppended, nil

		case entry.Timestamp >= state.FirstSeen:
			// Falls inside this epoch.
			if !paissa.EntryMatchesState(entry, state) {
				r.log.Warn("observation falls inside an epoch it does not match",
					"state_id", state.ID,
					"world_id", entry.WorldID,
					"district_id", entry.DistrictID,
					"ward_number", entry.WardNumber,
					"plot_number", entry.PlotNumber,
					"timestamp", entry.Timestamp)
				return outcomeMismatch, nil
			}
			hadOwner := state.OwnerName != nil
			paissa.UpdateStateFromEntry(state, entry)
			if !hadOwner && state.OwnerName != nil {
				if err := store.UpdatePlotState(ctx, tx, state); err != nil {
					return "", fmt.Errorf("failed to update state %d: %w", state.ID, err)
				}
			}
			return outcomeMerged, nil
		}
		// Older than this epoch: keep walking into the past.
	}

	// Exhausted history: the very first observation of this plot.
	newState := paissa.NewStateFromEntry(entry)
	if err := store.InsertPlotState(ctx, tx, newState); err != nil {
		return "", fmt.Errorf("failed to insert state: %w", err)
	}
	r.log.Info("first state for plot",
		"world_id", entry.WorldID,
		"district_id", entry.DistrictID,
		"ward_number", entry.WardNumber,
		"plot_number", entry.PlotNumber)
	return outcomeFirst, nil
}

// publishTransition announces a new state succeeding prev as the newest:
// an ownership flip broadcasts plot_open or plot_sold with the interval
// the flip must have happened in; a plot staying open under changed
// attributes broadcasts plot_update. Two adjacent owned epochs have
// nothing to announce.
func (r *Reconciler) publishTransition(ctx context.Context, tx pgx.Tx, entry *paissa.PlotStateEntry, newState, prev *paissa.PlotState) error {
	info, err := store.GetPlotInfo(ctx, tx, entry.DistrictID, entry.PlotNumber)
	if err != nil {
		return fmt.Errorf("failed to load plotinfo: %w", err)
	}

	var msg paissa.WSMessage
	switch {
	case newState.IsOwned != prev.IsOwned && !newState.IsOwned:
		msg = paissa.WSMessage{Type: paissa.WSTypePlotOpen, Data: paissa.NewOpenPlotDetail(newState, newState, prev, info)}
	case newState.IsOwned != prev.IsOwned:
		msg = paissa.WSMessage{Type: paissa.WSTypePlotSold, Data: paissa.NewSoldPlotDetail(newState, prev, info)}
	case !newState.IsOwned:
		msg = paissa.WSMessage{Type: paissa.WSTypePlotUpdate, Data: paissa.NewPlotUpdate(entry, prev, info)}
	default:
		return nil
	}
	return r.publish(ctx, msg)
}

func (r *Reconciler) publishUpdate(ctx context.Context, tx pgx.Tx, entry *paissa.PlotStateEntry, prev *paissa.PlotState) error {
	info, err := store.GetPlotInfo(ctx, tx, entry.DistrictID, entry.PlotNumber)
	if err != nil {
		return fmt.Errorf("failed to load plotinfo: %w", err)
	}
	return r.publish(ctx, paissa.WSMessage{Type: paissa.WSTypePlotUpdate, Data: paissa.NewPlotUpdate(entry, prev, info)})
}

func (r *Reconciler) publish(ctx context.Context, msg paissa.WSMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast: %w", err)
	}
	if err := r.cfg.Queue.Publish(ctx, payload); err != nil {
		return fmt.Errorf("failed to publish broadcast: %w", err)
	}
	metrics.BroadcastsTotal.WithLabelValues(msg.Type).Inc()
	return nil
}

func (r *Reconciler) pollQueueLength(ctx context.Context) {
	ticker := r.cfg.Clock.NewTicker(queueLengthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			n, err := r.cfg.Queue.Len(ctx)
			if err != nil {
				r.log.Warn("failed to read queue length", "error", err)
				continue
			}
			metrics.QueueLength.Set(float64(n))
		}
	}
}
