// Package audit maintains the transition history. The registry never
// deletes records on its own; the pruner enforces the configured retention
// window in the background.
package audit

import (
	"context"
	"time"

	"github.com/custodian-sh/custodian/internal/logging"
	"github.com/custodian-sh/custodian/internal/metrics"
	"github.com/custodian-sh/custodian/internal/store"
)

// Pruner removes transition records past the retention window.
type Pruner struct {
	store     store.Store
	logger    *logging.Logger
	metrics   *metrics.Metrics
	retention time.Duration
	interval  time.Duration
}

// NewPruner creates a pruner. A retention of zero disables pruning.
func NewPruner(s store.Store, logger *logging.Logger, m *metrics.Metrics, retention, interval time.Duration) *Pruner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Pruner{
		store:     s,
		logger:    logger,
		metrics:   m,
		retention: retention,
		interval:  interval,
	}
}

// Run prunes on the configured interval until the context is canceled. The
// first pass happens immediately, so short-lived deployments still enforce
// retention.
func (p *Pruner) Run(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Info("Audit pruning disabled")
		return
	}

	p.logger.Info("Audit pruner started", map[string]interface{}{
		"retention": p.retention.String(),
		"interval":  p.interval.String(),
	})

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.prune(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Audit pruner stopped")
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().Add(-p.retention)
	pruned, err := p.store.PruneTransitions(ctx, cutoff)
	if err != nil {
		p.logger.Error("Audit prune failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if p.metrics != nil {
		p.metrics.AddAuditPruned(pruned)
	}
	if pruned > 0 {
		p.logger.Info("Audit prune complete", map[string]interface{}{
			"pruned": pruned,
			"cutoff": cutoff.Format(time.RFC3339),
		})
	}
}
