package natsclient

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/zainbaq/medical-ml/errors"
	"github.com/zainbaq/medical-ml/metric"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Error values
var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
	ErrClosed       = stderrors.New("client closed")
)

// Handler processes one message. Returning a non-nil reply answers a
// request; the reply is ignored for plain publishes.
type Handler func(ctx context.Context, subject string, data []byte) ([]byte, error)

// Client wraps a NATS connection with status tracking, a connect circuit
// breaker and slog logging.
type Client struct {
	url    string
	status atomic.Value // ConnectionStatus
	logger *slog.Logger

	conn *nats.Conn
	subs []*nats.Subscription

	// Circuit breaker over Connect attempts
	failures         atomic.Int32
	circuitThreshold int32
	circuitBackoff   time.Duration
	openUntil        atomic.Value // time.Time

	maxReconnects  int
	reconnectWait  time.Duration
	timeout        time.Duration
	drainTimeout   time.Duration
	handlerTimeout time.Duration

	username string
	password string
	token    string
	name     string

	metrics        *metric.Metrics
	onHealthChange func(bool)

	mu     sync.RWMutex
	closed atomic.Bool
}

// NewClient creates a new NATS client with optional configuration
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:              url,
		logger:           slog.Default().With("component", "natsclient"),
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		timeout:          5 * time.Second,
		drainTimeout:     10 * time.Second,
		handlerTimeout:   10 * time.Second,
		circuitThreshold: 5,
		circuitBackoff:   30 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.status.Store(StatusDisconnected)
	c.openUntil.Store(time.Time{})
	return c, nil
}

// URL returns the NATS server URL
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	if until := c.openUntil.Load().(time.Time); !until.IsZero() && time.Now().Before(until) {
		return StatusCircuitOpen
	}
	return c.status.Load().(ConnectionStatus)
}

// IsHealthy returns true if the connection is up
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures returns consecutive failed connect attempts
func (c *Client) Failures() int32 {
	return c.failures.Load()
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
	if c.metrics != nil {
		c.metrics.RecordNATSStatus(status == StatusConnected)
	}
}

func (c *Client) notifyHealth(healthy bool) {
	c.mu.RLock()
	fn := c.onHealthChange
	c.mu.RUnlock()
	if fn != nil {
		go fn(healthy)
	}
}

// recordFailure counts a failed connect and opens the circuit at the threshold.
func (c *Client) recordFailure() {
	if n := c.failures.Add(1); n >= c.circuitThreshold {
		c.openUntil.Store(time.Now().Add(c.circuitBackoff))
		c.failures.Store(0)
		c.logger.Warn("NATS circuit breaker opened", "failures", n, "backoff", c.circuitBackoff)
	}
}

func (c *Client) resetCircuit() {
	c.failures.Store(0)
	c.openUntil.Store(time.Time{})
}

func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}
	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.name != "" {
		opts = append(opts, nats.Name(c.name))
	}
	return opts
}

// Connect establishes the connection, bounded by ctx and the connect timeout.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("Connecting to NATS", "url", c.url)

	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.connectionOptions()...)
		done <- result{conn, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			c.recordFailure()
			c.setStatus(StatusDisconnected)
			return errors.WrapTransient(res.err, "Client", "Connect", "establish connection")
		}
		c.mu.Lock()
		c.conn = res.conn
		c.mu.Unlock()
	case <-ctx.Done():
		c.recordFailure()
		c.setStatus(StatusDisconnected)
		// a late connection is closed rather than leaked
		go func() {
			if res := <-done; res.conn != nil {
				res.conn.Close()
			}
		}()
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "connection cancelled")
	}

	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.logger.Info("Connected to NATS", "url", c.url)
	c.notifyHealth(true)
	return nil
}

// WaitForConnection blocks until the client is connected or ctx ends
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.IsHealthy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.WrapTransient(ctx.Err(), "Client", "WaitForConnection", "wait for connection")
		case <-ticker.C:
		}
	}
}

func (c *Client) connection() (*nats.Conn, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return nil, ErrNotConnected
	}
	return conn, nil
}

// Publish publishes data on subject
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", "publish "+subject)
	}
	return nil
}

// Request sends data on subject and waits for one reply, bounded by ctx.
func (c *Client) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	msg, err := conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "Request", "request "+subject)
	}
	return msg.Data, nil
}

// Subscribe registers handler on subject. Each message gets a context
// derived from ctx with the handler timeout. When the message carries a
// reply subject and the handler returns data, the data is sent back.
func (c *Client) Subscribe(ctx context.Context, subject string, handler Handler) error {
	return c.subscribe(ctx, subject, "", handler)
}

// QueueSubscribe is Subscribe with a queue group, so that several registry
// replicas share request load.
func (c *Client) QueueSubscribe(ctx context.Context, subject, queue string, handler Handler) error {
	return c.subscribe(ctx, subject, queue, handler)
}

func (c *Client) subscribe(ctx context.Context, subject, queue string, handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return ErrNotConnected
	}

	cb := func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
		defer cancel()

		reply, err := handler(msgCtx, msg.Subject, msg.Data)
		if err != nil {
			c.logger.Warn("NATS handler failed", "subject", msg.Subject, "error", err)
		}
		if msg.Reply != "" && reply != nil {
			if err := msg.Respond(reply); err != nil {
				c.logger.Warn("NATS respond failed", "subject", msg.Subject, "error", err)
			}
		}
	}

	var (
		sub *nats.Subscription
		err error
	)
	if queue == "" {
		sub, err = c.conn.Subscribe(subject, cb)
	} else {
		sub, err = c.conn.QueueSubscribe(subject, queue, cb)
	}
	if err != nil {
		return errors.WrapTransient(err, "Client", "Subscribe", "subscribe "+subject)
	}

	c.subs = append(c.subs, sub)
	return nil
}

// Close unsubscribes, drains the connection within ctx or the drain
// timeout, and clears credentials. Calling Close more than once is safe.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	subs := c.subs
	conn := c.conn
	c.subs = nil
	c.conn = nil
	c.username, c.password, c.token = "", "", ""
	c.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, errors.Wrap(err, "Client", "Close", "unsubscribe"))
		}
	}

	if conn != nil {
		drainTimeout := c.drainTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
				drainTimeout = remaining
			}
		}

		drained := make(chan error, 1)
		go func() {
			if err := conn.Drain(); err != nil {
				drained <- err
				return
			}
			for !conn.IsClosed() {
				time.Sleep(10 * time.Millisecond)
			}
			drained <- nil
		}()

		select {
		case err := <-drained:
			if err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
				errs = append(errs, errors.Wrap(err, "Client", "Close", "drain connection"))
			}
		case <-time.After(drainTimeout):
			errs = append(errs, errors.WrapTransient(errors.ErrConnectionTimeout, "Client", "Close", "drain"))
		case <-ctx.Done():
			errs = append(errs, errors.Wrap(ctx.Err(), "Client", "Close", "drain"))
		}
		conn.Close()
	}

	c.setStatus(StatusDisconnected)
	return stderrors.Join(errs...)
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	if c.closed.Load() {
		return
	}
	c.setStatus(StatusReconnecting)
	c.logger.Warn("NATS disconnected", "error", err)
	c.notifyHealth(false)
}

func (c *Client) handleReconnect(_ *nats.Conn) {
	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.logger.Info("NATS reconnected", "url", c.url)
	c.notifyHealth(true)
}

func (c *Client) handleClosed(_ *nats.Conn) {
	c.setStatus(StatusDisconnected)
	c.notifyHealth(false)
}

func (c *Client) handleError(_ *nats.Conn, sub *nats.Subscription, err error) {
	subject := ""
	if sub != nil {
		subject = sub.Subject
	}
	c.logger.Error("NATS error", "subject", subject, "error", err)
}
