package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// GrantStore is the slice of the auth store the sweeper needs.
type GrantStore interface {
	SweepExpiredGrants(ctx context.Context, grace time.Duration) (int, error)
}

// GrantSweeper trims stale re-auth grant markers. The markers outlive the
// freshness window so the gate can tell an expired grant from one that
// never existed; this worker removes the ones nobody will ask about
// anymore.
type GrantSweeper struct {
	store    GrantStore
	interval time.Duration
	grace    time.Duration
}

func NewGrantSweeper(store GrantStore, interval, grace time.Duration) *GrantSweeper {
	return &GrantSweeper{
		store:    store,
		interval: interval,
		grace:    grace,
	}
}

func (w *GrantSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.Info("Reauth grant sweeper started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Reauth grant sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *GrantSweeper) sweep(ctx context.Context) {
	swept, err := w.store.SweepExpiredGrants(ctx, w.grace)
	if err != nil {
		logrus.Errorf("Failed to sweep expired reauth grants: %v", err)
		return
	}
	if swept > 0 {
		logrus.Infof("Swept %d expired reauth grants", swept)
	}
}
