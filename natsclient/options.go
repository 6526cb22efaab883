package natsclient

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/zainbaq/medical-ml/metric"
)

// ClientOption configures a Client
type ClientOption func(*Client) error

// WithMaxReconnects sets the maximum reconnect attempts (-1 for unlimited)
func WithMaxReconnects(maxReconnects int) ClientOption {
	return func(c *Client) error {
		c.maxReconnects = maxReconnects
		return nil
	}
}

// WithReconnectWait sets the wait between reconnect attempts
func WithReconnectWait(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d < 0 {
			return fmt.Errorf("reconnect wait cannot be negative: %v", d)
		}
		c.reconnectWait = d
		return nil
	}
}

// WithTimeout sets the connect timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive: %v", d)
		}
		c.timeout = d
		return nil
	}
}

// WithDrainTimeout bounds Close
func WithDrainTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("drain timeout must be positive: %v", d)
		}
		c.drainTimeout = d
		return nil
	}
}

// WithHandlerTimeout bounds each subscription handler call
func WithHandlerTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("handler timeout must be positive: %v", d)
		}
		c.handlerTimeout = d
		return nil
	}
}

// WithCircuitBreaker sets how many consecutive connect failures open the
// circuit and for how long it stays open.
func WithCircuitBreaker(threshold int32, backoff time.Duration) ClientOption {
	return func(c *Client) error {
		if threshold <= 0 || backoff <= 0 {
			return fmt.Errorf("circuit breaker threshold and backoff must be positive")
		}
		c.circuitThreshold = threshold
		c.circuitBackoff = backoff
		return nil
	}
}

// WithCredentials sets user/password authentication
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithToken sets token authentication
func WithToken(token string) ClientOption {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithName sets the client name reported to the server
func WithName(name string) ClientOption {
	return func(c *Client) error {
		c.name = name
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithHealthChangeCallback is called asynchronously when connectivity changes
func WithHealthChangeCallback(fn func(healthy bool)) ClientOption {
	return func(c *Client) error {
		c.onHealthChange = fn
		return nil
	}
}

// WithMetrics reports connection status in m
func WithMetrics(m *metric.Metrics) ClientOption {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}
