package sync

import (
	"context"
	"fmt"
	"time"
)

// Status summarizes the stored configuration and the last sync time.
func (o *Orchestrator) Status(ctx context.Context) string {
	creds := o.creds.Get(ctx)
	if !creds.Configured() {
		return "Not configured"
	}

	if creds.LastSync.IsZero() {
		return "Configured (not synced yet)"
	}

	return describeSince(o.nowFunc().Sub(creds.LastSync))
}

func describeSince(elapsed time.Duration) string {
	minutes := int(elapsed / time.Minute)

	switch {
	case minutes < 1:
		return "Active (just synced)"
	case minutes < 60:
		return fmt.Sprintf("Active (synced %d min ago)", minutes)
	default:
		return fmt.Sprintf("Active (synced %dh ago)", minutes/60)
	}
}
