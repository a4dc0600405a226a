package services

import (
	"context"
	"log/slog"

	"finanzas/internal/cache"
	"finanzas/internal/core"
	"finanzas/internal/events"
	"finanzas/internal/log"
)

// StatsCache holds per-tenant ledger totals. Every write path invalidates
// the tenant's entry.
type StatsCache = cache.Cache[int64, core.Stats]

// publish sends e without failing the caller: the write it describes has
// already committed.
func publish(ctx context.Context, p events.Publisher, e events.LedgerEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", e.Type,
			log.FieldUserID, e.UserID,
			log.FieldError, err)
	}
}

func invalidate(c StatsCache, userID int64) {
	if c != nil {
		c.Delete(userID)
	}
}
