package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/ashita-ai/sparkwatch/internal/model"
)

// RunClock dispatches a TickDuration every interval until ctx is cancelled.
// Ticks before Init are no-ops in the reducer, so the clock can start with
// the process. A nil now selects time.Now.
func (m *Monitor) RunClock(ctx context.Context, interval time.Duration, now func() time.Time) error {
	if interval <= 0 {
		return errors.New("monitor: clock interval must be positive")
	}
	if now == nil {
		now = time.Now
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("monitor: clock started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor: clock stopped")
			return nil
		case <-ticker.C:
			if _, err := m.Dispatch(ctx, model.TickDuration{CurrentTime: now().UnixMilli()}); err != nil {
				m.logger.Warn("monitor: tick failed", "error", err)
			}
		}
	}
}
