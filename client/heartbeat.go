package client

import (
	"context"
	"time"

	"github.com/zainbaq/medical-ml/errors"
)

// DefaultHeartbeatInterval keeps a service comfortably inside the
// registry's default 60s liveness window.
const DefaultHeartbeatInterval = 30 * time.Second

// RunHeartbeat sends a heartbeat for id every interval until ctx is done.
// Failures are logged at debug level and the loop keeps going. When the
// registry no longer knows id (it restarted with an empty store) the
// service is registered again from the record last passed to Register.
func (c *Client) RunHeartbeat(ctx context.Context, id string, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.beat(ctx, id)
		}
	}
}

func (c *Client) beat(ctx context.Context, id string) {
	_, err := c.Heartbeat(ctx, id)
	if err == nil {
		return
	}
	if !errors.IsNotFound(err) {
		c.logger.Debug("Heartbeat failed", "service_id", id, "error", err)
		return
	}

	c.mu.Lock()
	rec, ok := c.registered[id]
	c.mu.Unlock()
	if !ok {
		c.logger.Warn("Registry lost service and no record is known to re-register", "service_id", id)
		return
	}

	c.logger.Info("Registry lost service, registering again", "service_id", id)
	if err := c.Register(ctx, rec); err != nil {
		c.logger.Debug("Re-registration failed", "service_id", id, "error", err)
	}
}
