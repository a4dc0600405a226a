package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/storage"
)

// Drift is an envelope whose balance disagrees with the synthetic ledger
// rows linked to it. Envelope is empty for flows whose envelope no longer
// exists.
type Drift struct {
	EnvelopeID int64      `json:"envelope_id"`
	Envelope   string     `json:"envelope,omitempty"`
	Balance    core.Money `json:"balance"`
	Expected   core.Money `json:"expected"`
}

// Report summarizes one tenant's allocation state.
type Report struct {
	UserID        int64      `json:"user_id"`
	Envelopes     int        `json:"envelopes"`
	Allocated     core.Money `json:"allocated"`
	GlobalBalance core.Money `json:"global_balance"`
	Drift         []Drift    `json:"drift,omitempty"`
}

// Healthy reports whether every envelope matches its ledger flow.
func (r Report) Healthy() bool {
	return len(r.Drift) == 0
}

// Overdrawn reports whether the tenant spent money that is allocated to
// envelopes. Transfers never cause this; later user expenses can.
func (r Report) Overdrawn() bool {
	return r.GlobalBalance.Cents < 0
}

// Reconciler audits that envelope balances equal the net of their
// synthetic deposits and withdrawals.
type Reconciler struct {
	repo        *storage.Repository
	concurrency int
}

func NewReconciler(repo *storage.Repository, concurrency int) *Reconciler {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Reconciler{repo: repo, concurrency: concurrency}
}

// CheckTenant reads envelopes, flows and balance under the tenant lock, so
// a transfer is seen either entirely or not at all.
func (r *Reconciler) CheckTenant(ctx context.Context, userID int64) (Report, error) {
	var (
		envelopes []core.Envelope
		flows     map[int64]core.EnvelopeFlow
		balance   core.Money
	)
	err := r.repo.WithinTenantTx(ctx, userID, func(tx *storage.TenantTx) error {
		var err error
		if envelopes, err = tx.ListEnvelopes(ctx); err != nil {
			return err
		}
		if flows, err = tx.EnvelopeFlows(ctx); err != nil {
			return err
		}
		balance, err = tx.GlobalBalance(ctx)
		return err
	})
	if err != nil {
		return Report{}, fmt.Errorf("read tenant %d: %w", userID, err)
	}

	rep := Report{UserID: userID, Envelopes: len(envelopes), GlobalBalance: balance}
	for _, e := range envelopes {
		rep.Allocated = rep.Allocated.Add(e.Balance)
		expected := flows[e.ID].Net()
		delete(flows, e.ID)
		if expected != e.Balance {
			rep.Drift = append(rep.Drift, Drift{EnvelopeID: e.ID, Envelope: e.Name, Balance: e.Balance, Expected: expected})
		}
	}
	for id, f := range flows {
		if !f.Net().IsZero() {
			rep.Drift = append(rep.Drift, Drift{EnvelopeID: id, Expected: f.Net()})
		}
	}
	sort.Slice(rep.Drift, func(i, j int) bool { return rep.Drift[i].EnvelopeID < rep.Drift[j].EnvelopeID })
	return rep, nil
}

// Sweep checks every tenant that owns data and logs the ones with drift.
func (r *Reconciler) Sweep(ctx context.Context) ([]Report, error) {
	tenants, err := r.repo.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	var (
		mu      sync.Mutex
		reports = make([]Report, 0, len(tenants))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, id := range tenants {
		g.Go(func() error {
			rep, err := r.CheckTenant(gctx, id)
			if err != nil {
				return fmt.Errorf("check tenant %d: %w", id, err)
			}
			mu.Lock()
			reports = append(reports, rep)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].UserID < reports[j].UserID })
	unhealthy := 0
	for _, rep := range reports {
		if !rep.Healthy() {
			unhealthy++
			slog.WarnContext(ctx, "Envelope drift detected",
				log.FieldUserID, rep.UserID,
				"drift", len(rep.Drift))
		}
	}
	slog.InfoContext(ctx, "Reconciliation sweep completed",
		log.FieldOperation, log.OpReconcile,
		"tenants", len(reports),
		"unhealthy", unhealthy)
	return reports, nil
}
